package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Reconciler derives the valid view of a cart. Lines missing from the catalog
// or asking for more than is in stock are removed from the store, not clamped.
type Reconciler struct {
	carts   *CartService
	catalog *Catalog
	logger  *zap.Logger
}

func NewReconciler(carts *CartService, catalog *Catalog, logger *zap.Logger) *Reconciler {
	return &Reconciler{carts: carts, catalog: catalog, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context, userID int64) (*domain.ReconciledCart, error) {
	snap, stale, err := r.catalog.Snapshot()
	if err != nil {
		return nil, err
	}

	raw, err := r.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rc := &domain.ReconciledCart{
		UserID: userID,
		Lines:  []domain.CartLine{},
		Total:  decimal.Zero,
		Stale:  stale,
	}

	for _, key := range keys {
		qty := raw[key]
		p, ok := snap.Get(key)

		var reason domain.PruneReason
		switch {
		case !ok:
			reason = domain.PruneNotFound
		case p.Available < qty:
			reason = domain.PruneInsufficientStock
		}

		if reason != "" {
			if err := r.carts.prune(ctx, userID, key); err != nil {
				return nil, err
			}
			r.logger.Info("cart line pruned",
				zap.Int64("user_id", userID),
				zap.String("key", key),
				zap.Int("quantity", qty),
				zap.Int("available", p.Available),
				zap.String("reason", string(reason)),
			)
			rc.Pruned = append(rc.Pruned, domain.PrunedLine{
				Key:       key,
				Quantity:  qty,
				Available: p.Available,
				Reason:    reason,
			})
			continue
		}

		subtotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		rc.Lines = append(rc.Lines, domain.CartLine{Product: p, Quantity: qty, Subtotal: subtotal})
		rc.Total = rc.Total.Add(subtotal)
	}

	return rc, nil
}
