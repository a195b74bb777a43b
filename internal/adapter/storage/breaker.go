package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerOrderRepository fails fast with ErrStoreUnavailable while the
// durable store keeps failing. Domain outcomes do not count as failures.
type BreakerOrderRepository struct {
	next port.OrderRepository
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerOrderRepository(next port.OrderRepository, settings BreakerSettings, logger *zap.Logger) *BreakerOrderRepository {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "orders",
		Timeout: settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerOrderRepository{next: next, cb: cb}
}

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T

	res, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("orders breaker: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	return res.(T), nil
}

func (b *BreakerOrderRepository) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := execute(b.cb, func() (struct{}, error) {
		return struct{}{}, b.next.CreateOrder(ctx, order)
	})
	return err
}

func (b *BreakerOrderRepository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return execute(b.cb, func() (*domain.Order, error) {
		return b.next.GetOrder(ctx, id)
	})
}

func (b *BreakerOrderRepository) GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error) {
	return execute(b.cb, func() (*domain.Order, error) {
		return b.next.GetOrderByCheckoutID(ctx, checkoutID)
	})
}

func (b *BreakerOrderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return execute(b.cb, func() ([]domain.Order, error) {
		return b.next.ListOrdersByUser(ctx, userID)
	})
}

func (b *BreakerOrderRepository) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return execute(b.cb, func() ([]domain.Order, error) {
		return b.next.ListOrders(ctx, status)
	})
}

func (b *BreakerOrderRepository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	return execute(b.cb, func() (*domain.Order, error) {
		return b.next.UpdateOrderStatus(ctx, id, status, trackingNumber)
	})
}
