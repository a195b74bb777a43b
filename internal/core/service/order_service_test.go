package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func seedOrders(t *testing.T, env *testEnv, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := env.store.CreateOrder(context.Background(), &domain.Order{
			CheckoutID:     fmt.Sprintf("seed-%d-%d", userID, i),
			UserID:         userID,
			Lines:          []domain.OrderLine{{Key: tea.Barcode, Name: tea.Name, Quantity: 1, UnitPrice: tea.UnitPrice}},
			DeliveryMethod: domain.DeliverySelfPickup,
			Address:        "Самовивіз",
			TotalPrice:     decimal.RequireFromString("100.00"),
			Status:         domain.OrderStatusNew,
			CreatedAt:      time.Now(),
		})
		require.NoError(t, err)
	}
}

func TestPaginate(t *testing.T) {
	orders := make([]domain.Order, 12)
	for i := range orders {
		orders[i].ID = int64(12 - i)
	}

	tests := []struct {
		name      string
		page      int
		wantPage  int
		wantLen   int
		wantFirst int64
	}{
		{"first", 1, 1, 5, 12},
		{"last partial", 3, 3, 2, 2},
		{"below range", 0, 1, 5, 12},
		{"beyond range", 9, 3, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paginate(orders, tt.page, 5)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, 12, p.Total)
			require.Len(t, p.Orders, tt.wantLen)
			assert.Equal(t, tt.wantFirst, p.Orders[0].ID)
		})
	}

	empty := paginate(nil, 1, 5)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Empty(t, empty.Orders)
}

func TestOrderHistory(t *testing.T) {
	env := newTestEnv(t, []domain.Product{tea})
	seedOrders(t, env, 7, 6)
	seedOrders(t, env, 8, 1)

	page, err := env.orders.History(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, int64(1), page.Orders[0].ID, "oldest order is last")

	reply := env.send(t, 7, cmd(CmdOrders, "1"))
	assert.Contains(t, replyText(reply), "сторінка 1 з 2")
	assert.Contains(t, replyText(reply), "В обробці")

	reply = env.send(t, 9, cmd(CmdOrders, ""))
	assert.Contains(t, replyText(reply), "не маєте жодного замовлення")
}

func TestAdminOrders(t *testing.T) {
	env := newTestEnv(t, []domain.Product{tea})
	ctx := context.Background()
	seedOrders(t, env, 7, 3)

	_, err := env.orders.UpdateStatus(ctx, 1, domain.OrderStatusShipped, nil)
	require.NoError(t, err)

	all, err := env.orders.AdminOrders(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	fresh, err := env.orders.AdminOrders(ctx, domain.OrderStatusNew, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Total)

	_, err = env.orders.AdminOrders(ctx, "lost", 1)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t, []domain.Product{tea})
	ctx := context.Background()
	seedOrders(t, env, 7, 1)

	ttn := "20450000000000"
	order, err := env.orders.UpdateStatus(ctx, 1, domain.OrderStatusShipped, &ttn)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, ttn, order.TrackingNumber)

	require.Equal(t, 1, env.notifier.count(7))
	assert.Contains(t, env.notifier.sent[7][0].Text, "Відправлено")
	assert.Contains(t, env.notifier.sent[7][0].Text, ttn)

	order, err = env.orders.UpdateStatus(ctx, 1, domain.OrderStatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, ttn, order.TrackingNumber, "tracking number kept")

	_, err = env.orders.UpdateStatus(ctx, 42, domain.OrderStatusDelivered, nil)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = env.orders.UpdateStatus(ctx, 1, "teleported", nil)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.orders.Get(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
