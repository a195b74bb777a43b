package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CartRepository interface {
	// AddItem atomically increases a quantity and returns the new value.
	// Returns domain.ErrQuantityCeilingExceeded and leaves the cart unchanged
	// if the result would exceed the ceiling.
	AddItem(ctx context.Context, userID int64, key string, delta int) (int, error)

	// SetQuantity sets an absolute quantity; n <= 0 removes the item.
	SetQuantity(ctx context.Context, userID int64, key string, n int) error

	// RemoveItem is a no-op on a missing cart and returns
	// domain.ErrItemNotInCart when the cart exists without the key.
	RemoveItem(ctx context.Context, userID int64, key string) error

	// GetCart never returns a nil map.
	GetCart(ctx context.Context, userID int64) (domain.Cart, error)

	Clear(ctx context.Context, userID int64) error
}

type SessionRepository interface {
	// CreateSession stores the session only if the user has none; returns false otherwise.
	CreateSession(ctx context.Context, session *domain.Session) (bool, error)

	// GetSession returns nil when the user has no live session.
	GetSession(ctx context.Context, userID int64) (*domain.Session, error)

	// SaveSession overwrites an existing session and refreshes its idle TTL.
	// Returns domain.ErrNoActiveCheckout if the session expired or was deleted.
	SaveSession(ctx context.Context, session *domain.Session) error

	DeleteSession(ctx context.Context, userID int64) error
}

type UserLocker interface {
	// AcquireUserLock returns a token when the lock was free.
	AcquireUserLock(ctx context.Context, userID int64, ttl time.Duration) (string, bool, error)

	// ReleaseUserLock releases only if the token still owns the lock.
	ReleaseUserLock(ctx context.Context, userID int64, token string) error
}

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency forgets a key so the guarded work can run again.
	ClearIdempotency(ctx context.Context, key string) error
}
