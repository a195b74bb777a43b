package messaging

import (
	"context"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
)

type (
	CartChangedHandler       func(ctx context.Context, event domain.CartChanged)
	CheckoutCompletedHandler func(ctx context.Context, event domain.CheckoutCompleted)
)

// Bus delivers events to in-process subscribers synchronously. It is used when
// no Kafka brokers are configured.
type Bus struct {
	mu                sync.RWMutex
	cartChanged       []CartChangedHandler
	checkoutCompleted []CheckoutCompletedHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnCartChanged(h CartChangedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cartChanged = append(b.cartChanged, h)
}

func (b *Bus) OnCheckoutCompleted(h CheckoutCompletedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkoutCompleted = append(b.checkoutCompleted, h)
}

func (b *Bus) PublishCartChanged(ctx context.Context, event domain.CartChanged) error {
	b.mu.RLock()
	handlers := append([]CartChangedHandler(nil), b.cartChanged...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

func (b *Bus) PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error {
	b.mu.RLock()
	handlers := append([]CheckoutCompletedHandler(nil), b.checkoutCompleted...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}
