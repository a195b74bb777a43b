package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CartService wraps the cart store with catalog checks for additions and
// emits CartChanged after every successful mutation.
type CartService struct {
	carts   port.CartRepository
	catalog *Catalog
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

func NewCartService(carts port.CartRepository, catalog *Catalog, events port.EventPublisher, logger *zap.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// AddProduct adds one unit of a catalog product. Unknown products and products
// whose whole stock is already in the cart are refused.
func (s *CartService) AddProduct(ctx context.Context, userID int64, key string) (domain.Product, int, error) {
	p, err := s.catalog.Lookup(key)
	if err != nil {
		return domain.Product{}, 0, err
	}
	if p.Available <= 0 {
		return p, 0, domain.ErrOutOfStock
	}

	qty, err := s.increaseWithinStock(ctx, userID, p, false)
	return p, qty, err
}

// Increase adds one unit of a line already in the cart.
func (s *CartService) Increase(ctx context.Context, userID int64, key string) (int, error) {
	p, err := s.catalog.Lookup(key)
	if err != nil {
		return 0, err
	}
	return s.increaseWithinStock(ctx, userID, p, true)
}

func (s *CartService) increaseWithinStock(ctx context.Context, userID int64, p domain.Product, inCart bool) (int, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return 0, err
	}

	current, ok := cart[p.Barcode]
	if inCart && !ok {
		return 0, domain.ErrItemNotInCart
	}
	if current >= p.Available {
		return current, fmt.Errorf("%w: %d available", domain.ErrOutOfStock, p.Available)
	}

	qty, err := s.carts.AddItem(ctx, userID, p.Barcode, 1)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, userID, p.Barcode, qty, domain.CartOpAdd)
	return qty, nil
}

// Decrease removes one unit; the line disappears at zero.
func (s *CartService) Decrease(ctx context.Context, userID int64, key string) (int, error) {
	qty, err := s.carts.AddItem(ctx, userID, key, -1)
	if err != nil {
		return 0, err
	}

	op := domain.CartOpAdd
	if qty == 0 {
		op = domain.CartOpRemove
	}
	s.publish(ctx, userID, key, qty, op)
	return qty, nil
}

func (s *CartService) SetQuantity(ctx context.Context, userID int64, key string, n int) error {
	if err := s.carts.SetQuantity(ctx, userID, key, n); err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	s.publish(ctx, userID, key, n, domain.CartOpSet)
	return nil
}

func (s *CartService) Remove(ctx context.Context, userID int64, key string) error {
	if err := s.carts.RemoveItem(ctx, userID, key); err != nil {
		return err
	}
	s.publish(ctx, userID, key, 0, domain.CartOpRemove)
	return nil
}

// prune removes a line found invalid by reconciliation. A line that is
// already gone counts as pruned.
func (s *CartService) prune(ctx context.Context, userID int64, key string) error {
	err := s.carts.RemoveItem(ctx, userID, key)
	if err != nil && !errors.Is(err, domain.ErrItemNotInCart) {
		return err
	}
	s.publish(ctx, userID, key, 0, domain.CartOpPrune)
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID int64) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, userID, "", 0, domain.CartOpClear)
	return nil
}

func (s *CartService) Get(ctx context.Context, userID int64) (domain.Cart, error) {
	return s.carts.GetCart(ctx, userID)
}

func (s *CartService) publish(ctx context.Context, userID int64, key string, qty int, op domain.CartOp) {
	event := domain.CartChanged{
		UserID:   userID,
		Key:      key,
		Quantity: qty,
		Op:       op,
		At:       s.now(),
	}
	if err := s.events.PublishCartChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish cart change",
			zap.Int64("user_id", userID),
			zap.String("op", string(op)),
			zap.Error(err),
		)
	}
}
