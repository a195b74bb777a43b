package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
)

func TestReconcile_PrunesInvalidLines(t *testing.T) {
	sugar := product("4820000000042", "C-3", "Цукор", "40.50", 10)
	env := newTestEnv(t, []domain.Product{tea, coffee, sugar})
	ctx := context.Background()

	_, err := env.store.AddItem(ctx, 1, tea.Barcode, 2)
	require.NoError(t, err)
	_, err = env.store.AddItem(ctx, 1, coffee.Barcode, 3)
	require.NoError(t, err)
	_, err = env.store.AddItem(ctx, 1, sugar.Barcode, 1)
	require.NoError(t, err)

	// coffee drops below the cart quantity, sugar is delisted
	env.source.set(tea, product(coffee.Barcode, coffee.Article, coffee.Name, "150.00", 1))
	_, err = env.catalog.Refresh(ctx)
	require.NoError(t, err)

	rc, err := env.recon.Reconcile(ctx, 1)
	require.NoError(t, err)

	require.Len(t, rc.Lines, 1)
	assert.Equal(t, tea.Barcode, rc.Lines[0].Product.Barcode)
	assert.Equal(t, "200.00", rc.Total.StringFixed(2))
	assert.False(t, rc.Stale)

	require.Len(t, rc.Pruned, 2)
	assert.Equal(t, domain.PrunedLine{Key: coffee.Barcode, Quantity: 3, Available: 1, Reason: domain.PruneInsufficientStock}, rc.Pruned[0])
	assert.Equal(t, sugar.Barcode, rc.Pruned[1].Key)
	assert.Equal(t, domain.PruneNotFound, rc.Pruned[1].Reason)

	cart, err := env.store.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Cart{tea.Barcode: 2}, cart)
	assert.Equal(t, []domain.CartOp{domain.CartOpPrune, domain.CartOpPrune}, env.events.cartOps())
}

func TestReconcile_LinesSortedAndTotalled(t *testing.T) {
	env := newTestEnv(t, []domain.Product{tea, coffee})
	ctx := context.Background()

	_, err := env.store.AddItem(ctx, 1, coffee.Barcode, 1)
	require.NoError(t, err)
	_, err = env.store.AddItem(ctx, 1, tea.Barcode, 2)
	require.NoError(t, err)

	rc, err := env.recon.Reconcile(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rc.Lines, 2)
	assert.Equal(t, tea.Barcode, rc.Lines[0].Product.Barcode)
	assert.Equal(t, "200.00", rc.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "350.00", rc.Total.StringFixed(2))
	assert.Empty(t, rc.Pruned)
	assert.Equal(t, map[string]int{tea.Barcode: 2, coffee.Barcode: 1}, rc.Quantities())
}

func TestReconcile_StaleCatalog(t *testing.T) {
	env := newTestEnv(t, []domain.Product{tea})
	ctx := context.Background()

	env.source.fail(errors.New("share offline"))
	_, err := env.catalog.Refresh(ctx)
	require.Error(t, err)

	rc, err := env.recon.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rc.Stale)
	assert.True(t, rc.IsEmpty())
}

func TestReconcile_CatalogNeverLoaded(t *testing.T) {
	store := storage.NewMemoryAdapter(storage.RedisOptions{}, 0)
	defer store.Close()
	logger := zaptest.NewLogger(t)

	catalog := NewCatalog(newMockSource(tea), 0, time.Second, logger)
	carts := NewCartService(store, catalog, &recordingEvents{}, logger)
	recon := NewReconciler(carts, catalog, logger)

	_, err := store.AddItem(context.Background(), 1, "anything", 1)
	require.NoError(t, err)

	_, err = recon.Reconcile(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	cart, err := store.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cart["anything"], "nothing is pruned without a catalog")
}
