package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true&multiStatements=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	return db
}

func newTestOrder(userID int64) *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Order{
		CheckoutID: uuid.New().String(),
		UserID:     userID,
		Lines: []domain.OrderLine{
			{Key: "4820000000017", Name: "Кабель USB-C", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
		},
		RecipientName:  "Іван Петренко",
		Phone:          "+380501234567",
		DeliveryMethod: domain.DeliverySelfPickup,
		Address:        "Самовивіз",
		PaymentMethod:  domain.PaymentCash.DisplayName(),
		TotalPrice:     decimal.RequireFromString("7.00"),
		Status:         domain.OrderStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func cleanupMySQLUser(t *testing.T, db *sql.DB, userID int64) {
	t.Cleanup(func() {
		ctx := context.Background()
		db.ExecContext(ctx, `DELETE FROM orders WHERE user_id = ?`, userID)
		db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
		db.Close()
	})
}

func TestMySQLCreateOrder_Success(t *testing.T) {
	db := getMySQLDB(t)
	userID := testUserID()
	cleanupMySQLUser(t, db, userID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	order := newTestOrder(userID)
	require.NoError(t, adapter.CreateOrder(ctx, order))
	assert.NotZero(t, order.ID)

	got, err := adapter.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.CheckoutID, got.CheckoutID)
	assert.True(t, order.TotalPrice.Equal(got.TotalPrice))
	assert.Equal(t, order.Lines[0].Key, got.Lines[0].Key)
	assert.Equal(t, domain.OrderStatusNew, got.Status)

	user, err := adapter.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestMySQLCreateOrder_DuplicateCheckout(t *testing.T) {
	db := getMySQLDB(t)
	userID := testUserID()
	cleanupMySQLUser(t, db, userID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	order := newTestOrder(userID)
	require.NoError(t, adapter.CreateOrder(ctx, order))

	dup := newTestOrder(userID)
	dup.CheckoutID = order.CheckoutID
	assert.ErrorIs(t, adapter.CreateOrder(ctx, dup), domain.ErrDuplicateCheckout)

	got, err := adapter.GetOrderByCheckoutID(ctx, order.CheckoutID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.ID)
}

func TestMySQLListAndUpdateOrders(t *testing.T) {
	db := getMySQLDB(t)
	userID := testUserID()
	cleanupMySQLUser(t, db, userID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	first := newTestOrder(userID)
	require.NoError(t, adapter.CreateOrder(ctx, first))
	second := newTestOrder(userID)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, adapter.CreateOrder(ctx, second))

	orders, err := adapter.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)

	tracking := "20450000000000"
	updated, err := adapter.UpdateOrderStatus(ctx, first.ID, domain.OrderStatusShipped, &tracking)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.Equal(t, tracking, updated.TrackingNumber)

	updated, err = adapter.UpdateOrderStatus(ctx, first.ID, domain.OrderStatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, tracking, updated.TrackingNumber)

	shipped, err := adapter.ListOrders(ctx, domain.OrderStatusDelivered)
	require.NoError(t, err)
	found := false
	for _, o := range shipped {
		if o.ID == first.ID {
			found = true
		}
		assert.Equal(t, domain.OrderStatusDelivered, o.Status)
	}
	assert.True(t, found)

	missing, err := adapter.UpdateOrderStatus(ctx, -1, domain.OrderStatusShipped, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMySQLUserContact(t *testing.T) {
	db := getMySQLDB(t)
	userID := testUserID()
	cleanupMySQLUser(t, db, userID)

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	user, err := adapter.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, adapter.EnsureUser(ctx, userID))
	require.NoError(t, adapter.EnsureUser(ctx, userID))
	require.NoError(t, adapter.UpdateUserContact(ctx, userID, "Іван Петренко", "+380501234567"))

	user, err = adapter.GetUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Іван Петренко", user.Name)
	assert.Equal(t, "+380501234567", user.Phone)
}

// corruptItemsRow yields an order row whose items column is not valid JSON.
type corruptItemsRow struct{}

func (corruptItemsRow) Scan(dest ...any) error {
	*dest[0].(*int64) = 5
	*dest[3].(*[]byte) = []byte("{not json")
	return nil
}

func TestScanOrder_CorruptItemsIsInconsistency(t *testing.T) {
	order, err := scanOrderRow(corruptItemsRow{})
	assert.Nil(t, order)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternalInconsistency)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, domain.KindInternalInconsistency, domain.KindOf(err))
}
