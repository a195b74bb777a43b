package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order and assigns its ID.
	// Returns domain.ErrDuplicateCheckout if an order for the checkout exists.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder returns nil when not found.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// GetOrderByCheckoutID returns nil when not found.
	GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error)

	// ListOrdersByUser returns the user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error)

	// ListOrders returns all orders, or only those with the given status, newest first.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateOrderStatus returns nil when not found. A nil tracking number keeps the current one.
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber *string) (*domain.Order, error)
}

type UserRepository interface {
	// EnsureUser registers the user on first contact.
	EnsureUser(ctx context.Context, userID int64) error

	// UpdateUserContact stores the latest recipient name and phone.
	UpdateUserContact(ctx context.Context, userID int64, name, phone string) error

	// GetUser returns nil when not found.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}
