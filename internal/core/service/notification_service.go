package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var ErrNotificationQueueClosed = errors.New("notification queue closed")

const notifyTimeout = 5 * time.Second

// NotificationService fans completed checkouts out to order reviewers and the
// event stream from a pool of workers. Each checkout is announced once.
type NotificationService struct {
	notifier port.Notifier
	idem     port.IdempotencyStore
	events   port.EventPublisher
	adminIDs []int64
	logger   *zap.Logger

	queue     chan domain.CheckoutCompleted
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewNotificationService(
	notifier port.Notifier,
	idem port.IdempotencyStore,
	events port.EventPublisher,
	adminIDs []int64,
	queueSize int,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifier: notifier,
		idem:     idem,
		events:   events,
		adminIDs: adminIDs,
		logger:   logger,
		queue:    make(chan domain.CheckoutCompleted, queueSize),
	}
}

func (s *NotificationService) Start(workers int) {
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
	s.logger.Info("notification workers started", zap.Int("workers", workers))
}

func (s *NotificationService) Enqueue(ctx context.Context, event domain.CheckoutCompleted) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotificationQueueClosed
	}

	select {
	case s.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *NotificationService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *NotificationService) workerLoop(id int) {
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := s.Process(ctx, event); err != nil {
			s.logger.Error("checkout notification failed",
				zap.Int("worker", id),
				zap.Int64("order_id", event.OrderID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Process announces one completed checkout. Repeats for the same checkout id
// are dropped unless no admin received the previous attempt.
func (s *NotificationService) Process(ctx context.Context, event domain.CheckoutCompleted) error {
	key := "notify:" + event.CheckoutID
	first, err := s.idem.SetIdempotency(ctx, key)
	if err != nil {
		return err
	}
	if !first {
		s.logger.Debug("checkout already announced", zap.String("checkout_id", event.CheckoutID))
		return nil
	}

	var errs []error
	msg := adminNewOrder(event)
	for _, adminID := range s.adminIDs {
		if err := s.notifier.Notify(ctx, adminID, msg); err != nil {
			errs = append(errs, fmt.Errorf("notify admin %d: %w", adminID, err))
		}
	}

	if len(s.adminIDs) > 0 && len(errs) == len(s.adminIDs) {
		// Nobody was told; let a redelivery try again.
		if err := s.idem.ClearIdempotency(ctx, key); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	if err := s.events.PublishCheckoutCompleted(ctx, event); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
