package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CheckoutService runs checkout sessions through the Machine and persists
// them between interactions.
type CheckoutService struct {
	sessions   port.SessionRepository
	reconciler *Reconciler
	orders     *OrderService
	machine    *Machine
	logger     *zap.Logger
	now        func() time.Time
}

func NewCheckoutService(sessions port.SessionRepository, reconciler *Reconciler, orders *OrderService, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		sessions:   sessions,
		reconciler: reconciler,
		orders:     orders,
		machine:    NewMachine(),
		logger:     logger,
		now:        time.Now,
	}
}

// Active returns the user's session, or nil when no checkout is in progress.
func (s *CheckoutService) Active(ctx context.Context, userID int64) (*domain.Session, error) {
	return s.sessions.GetSession(ctx, userID)
}

// Start opens a checkout for a non-empty reconciled cart. On domain.ErrEmptyCart
// the returned reply still carries the pruning notice, if any.
func (s *CheckoutService) Start(ctx context.Context, userID int64) (*domain.Reply, error) {
	existing, err := s.sessions.GetSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrCheckoutInProgress
	}

	rc, err := s.reconciler.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := domain.NewReply()
	if len(rc.Pruned) > 0 {
		reply.Add(prunedNotice(rc.Pruned))
	}
	if rc.IsEmpty() {
		return reply, domain.ErrEmptyCart
	}

	session := domain.NewSession(userID, s.now())
	created, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrCheckoutInProgress
	}

	s.logger.Info("checkout started", zap.Int64("user_id", userID), zap.String("checkout_id", session.ID))
	reply.Add(stepPrompt(session.Step))
	reply.Step = session.Step
	return reply, nil
}

// Handle applies one event to the active session. Invalid input re-prompts
// the current step and is not an error.
func (s *CheckoutService) Handle(ctx context.Context, session *domain.Session, ev domain.Event) (*domain.Reply, error) {
	log := s.logger.With(zap.Int64("user_id", session.UserID), zap.String("checkout_id", session.ID))

	outcome, err := s.machine.Apply(session, ev)
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, domain.ErrOnlinePaymentDisabled) {
			log.Error("fatal inconsistency: session in unknown step", zap.String("step", string(session.Step)))
			return nil, err
		}

		// A rejected input is still activity; keep the session alive.
		session.UpdatedAt = s.now()
		if serr := s.sessions.SaveSession(ctx, session); serr != nil {
			return nil, serr
		}

		reply, perr := s.prompt(ctx, session)
		if perr != nil {
			return nil, perr
		}
		reply.Messages = append([]domain.Message{{Text: explain(err)}}, reply.Messages...)
		return reply, nil
	}

	switch outcome {
	case OutcomeCancelled:
		if err := s.sessions.DeleteSession(ctx, session.UserID); err != nil {
			return nil, err
		}
		log.Info("checkout cancelled", zap.String("step", string(session.Step)))
		return domain.NewReply(checkoutCancelled()), nil

	case OutcomeConfirmed:
		order, rc, err := s.orders.Commit(ctx, session)
		if errors.Is(err, domain.ErrEmptyCartAtCommit) {
			reply := domain.NewReply()
			if rc != nil && len(rc.Pruned) > 0 {
				reply.Add(prunedNotice(rc.Pruned))
			}
			return reply.Add(domain.Message{Text: explain(err)}), nil
		}
		if err != nil {
			return nil, err
		}
		reply := domain.NewReply()
		if rc != nil && len(rc.Pruned) > 0 {
			reply.Add(prunedNotice(rc.Pruned))
		}
		return reply.Add(orderCreated(order)), nil
	}

	session.UpdatedAt = s.now()
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return s.prompt(ctx, session)
}

// Prompt re-renders the current step, used when the user sends something
// unrelated while a checkout is open.
func (s *CheckoutService) Prompt(ctx context.Context, session *domain.Session) (*domain.Reply, error) {
	reply, err := s.prompt(ctx, session)
	if err != nil {
		return nil, err
	}
	reply.Messages = append([]domain.Message{{Text: explain(domain.ErrCheckoutInProgress)}}, reply.Messages...)
	return reply, nil
}

func (s *CheckoutService) prompt(ctx context.Context, session *domain.Session) (*domain.Reply, error) {
	if session.Step != domain.StepConfirmation {
		reply := domain.NewReply(stepPrompt(session.Step))
		reply.Step = session.Step
		return reply, nil
	}

	// The summary always reflects a fresh reconciliation.
	rc, err := s.reconciler.Reconcile(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	reply := domain.NewReply()
	if len(rc.Pruned) > 0 {
		reply.Add(prunedNotice(rc.Pruned))
	}
	if rc.IsEmpty() {
		if err := s.sessions.DeleteSession(ctx, session.UserID); err != nil {
			return nil, err
		}
		return reply.Add(domain.Message{Text: explain(domain.ErrEmptyCartAtCommit)}), nil
	}

	reply.Add(orderSummary(session, rc))
	reply.Step = session.Step
	return reply, nil
}
