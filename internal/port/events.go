package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type EventPublisher interface {
	PublishCartChanged(ctx context.Context, event domain.CartChanged) error
	PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error
}

type Notifier interface {
	// Notify delivers a rendered message to a user identity.
	Notify(ctx context.Context, userID int64, msg domain.Message) error
}

type Outbox interface {
	Notifier

	// Drain removes and returns pending messages for the user, oldest first.
	Drain(ctx context.Context, userID int64, max int) ([]domain.Message, error)
}
