package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/adapter/messaging"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type fixedSource []domain.Product

func (s fixedSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	return s, nil
}

func (s fixedSource) Name() string { return "fixed" }

type integrationEnv struct {
	redis         *RedisAdapter
	db            *MySQLAdapter
	carts         *service.CartService
	orders        *service.OrderService
	notifications *service.NotificationService
	userID        int64
	adminID       int64
}

func setupIntegration(t *testing.T) *integrationEnv {
	rdb := getRedisClient(t)
	db := getMySQLDB(t)
	logger := zaptest.NewLogger(t)

	userID := testUserID()
	adminID := userID + 1
	cleanupUser(t, rdb, userID)
	cleanupMySQLUser(t, db, userID)
	t.Cleanup(func() {
		rdb.Del(context.Background(), outboxKey(adminID))
	})

	catalog := service.NewCatalog(fixedSource{{
		Barcode:   "4820000000011",
		Article:   "A-1",
		Name:      "Чай чорний",
		UnitPrice: decimal.RequireFromString("100.00"),
		Available: 5,
	}}, 0, time.Second, logger)
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	redisAdapter := NewRedisAdapter(rdb, RedisOptions{})
	mysqlAdapter := NewMySQLAdapter(db)
	bus := messaging.NewBus()

	notifications := service.NewNotificationService(redisAdapter, redisAdapter, bus, []int64{adminID}, 10, logger)
	notifications.Start(1)
	t.Cleanup(notifications.Close)

	carts := service.NewCartService(redisAdapter, catalog, bus, logger)
	recon := service.NewReconciler(carts, catalog, logger)
	orders := service.NewOrderService(
		NewBreakerOrderRepository(mysqlAdapter, BreakerSettings{}, logger),
		mysqlAdapter, redisAdapter, carts, recon, notifications, redisAdapter,
		service.OrderServiceConfig{}, logger,
	)

	return &integrationEnv{
		redis:         redisAdapter,
		db:            mysqlAdapter,
		carts:         carts,
		orders:        orders,
		notifications: notifications,
		userID:        userID,
		adminID:       adminID,
	}
}

func (e *integrationEnv) confirmedSession(t *testing.T) *domain.Session {
	session := domain.NewSession(e.userID, time.Now())
	session.Step = domain.StepConfirmation
	session.Fields[domain.FieldDeliveryMethod] = string(domain.DeliverySelfPickup)
	session.Fields[domain.FieldAddress] = "Самовивіз"
	session.Fields[domain.FieldRecipientName] = "Петренко Іван"
	session.Fields[domain.FieldPhone] = "+380501234567"
	session.Fields[domain.FieldPaymentMethod] = domain.PaymentCash.DisplayName()

	created, err := e.redis.CreateSession(context.Background(), session)
	require.NoError(t, err)
	require.True(t, created)
	return session
}

func TestIntegration_CommitCheckout(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	_, _, err := env.carts.AddProduct(ctx, env.userID, "4820000000011")
	require.NoError(t, err)
	_, err = env.carts.Increase(ctx, env.userID, "4820000000011")
	require.NoError(t, err)

	session := env.confirmedSession(t)

	order, rc, err := env.orders.Commit(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.NotZero(t, order.ID)
	assert.Equal(t, "200", order.TotalPrice.String())

	stored, err := env.db.GetOrderByCheckoutID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, order.ID, stored.ID)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, 2, stored.Lines[0].Quantity)

	cart, err := env.redis.GetCart(ctx, env.userID)
	require.NoError(t, err)
	assert.Empty(t, cart)

	active, err := env.redis.GetSession(ctx, env.userID)
	require.NoError(t, err)
	assert.Nil(t, active)

	user, err := env.db.GetUser(ctx, env.userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "+380501234567", user.Phone)

	// replaying the confirmation returns the same order
	again, _, err := env.orders.Commit(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)

	env.notifications.Close()
	msgs, err := env.redis.Drain(ctx, env.adminID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestIntegration_ConcurrentConfirmCreatesOneOrder(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	_, _, err := env.carts.AddProduct(ctx, env.userID, "4820000000011")
	require.NoError(t, err)
	session := env.confirmedSession(t)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{})
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, _, err := env.orders.Commit(ctx, session)
			if err != nil {
				return
			}
			mu.Lock()
			ids[order.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)

	history, err := env.db.ListOrdersByUser(ctx, env.userID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIntegration_EmptyCartAtCommit(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	session := env.confirmedSession(t)

	order, rc, err := env.orders.Commit(ctx, session)
	assert.ErrorIs(t, err, domain.ErrEmptyCartAtCommit)
	assert.Nil(t, order)
	require.NotNil(t, rc)
	assert.True(t, rc.IsEmpty())

	active, err := env.redis.GetSession(ctx, env.userID)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := env.db.ListOrdersByUser(ctx, env.userID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
