package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/core/domain"
)

type failingOrders struct {
	*MemoryAdapter
	err   error
	calls int
}

func (f *failingOrders) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryAdapter.GetOrder(ctx, id)
}

func TestBreaker_OpensOnStoreFailures(t *testing.T) {
	repo := &failingOrders{
		MemoryAdapter: NewMemoryAdapter(RedisOptions{}, 0),
		err:           storeError("query order", errors.New("connection refused")),
	}
	b := NewBreakerOrderRepository(repo, BreakerSettings{MaxFailures: 2, Timeout: time.Minute}, zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := b.GetOrder(ctx, 1)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, repo.calls)
}

func TestBreaker_DomainErrorsDoNotTrip(t *testing.T) {
	mem := NewMemoryAdapter(RedisOptions{}, 0)
	b := NewBreakerOrderRepository(mem, BreakerSettings{MaxFailures: 1, Timeout: time.Minute}, zaptest.NewLogger(t))

	ctx := context.Background()
	require.NoError(t, b.CreateOrder(ctx, &domain.Order{CheckoutID: "x", UserID: 1}))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.CreateOrder(ctx, &domain.Order{CheckoutID: "x", UserID: 1}), domain.ErrDuplicateCheckout)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	missing, err := b.GetOrder(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	orders, err := b.ListOrdersByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestBreaker_CorruptRowsDoNotTrip(t *testing.T) {
	_, corrupt := scanOrderRow(corruptItemsRow{})
	require.Error(t, corrupt)

	repo := &failingOrders{MemoryAdapter: NewMemoryAdapter(RedisOptions{}, 0), err: corrupt}
	b := NewBreakerOrderRepository(repo, BreakerSettings{MaxFailures: 1, Timeout: time.Minute}, zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := b.GetOrder(ctx, 5)
		assert.ErrorIs(t, err, domain.ErrInternalInconsistency)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 3, repo.calls)
}
