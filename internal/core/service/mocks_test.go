package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

func product(barcode, article, name, price string, qty int) domain.Product {
	return domain.Product{
		Barcode:   barcode,
		Article:   article,
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Available: qty,
	}
}

// Mock CatalogSource
type mockSource struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
	release  chan struct{}
	calls    atomic.Int32
}

func newMockSource(products ...domain.Product) *mockSource {
	return &mockSource{products: products}
}

func (m *mockSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	m.calls.Add(1)

	m.mu.Lock()
	release := m.release
	m.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Product(nil), m.products...), nil
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) set(products ...domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
	m.err = nil
}

func (m *mockSource) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Mock EventPublisher
type recordingEvents struct {
	mu        sync.Mutex
	cart      []domain.CartChanged
	completed []domain.CheckoutCompleted
	err       error
}

func (r *recordingEvents) PublishCartChanged(ctx context.Context, event domain.CartChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = append(r.cart, event)
	return r.err
}

func (r *recordingEvents) PublishCheckoutCompleted(ctx context.Context, event domain.CheckoutCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, event)
	return r.err
}

func (r *recordingEvents) cartOps() []domain.CartOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]domain.CartOp, 0, len(r.cart))
	for _, e := range r.cart {
		ops = append(ops, e.Op)
	}
	return ops
}

// Mock Notifier
type recordingNotifier struct {
	mu   sync.Mutex
	sent map[int64][]domain.Message
	err  error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[int64][]domain.Message)}
}

func (r *recordingNotifier) Notify(ctx context.Context, userID int64, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent[userID] = append(r.sent[userID], msg)
	return nil
}

func (r *recordingNotifier) count(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent[userID])
}

// Mock CheckoutNotifier
type recordingQueue struct {
	mu     sync.Mutex
	events []domain.CheckoutCompleted
}

func (q *recordingQueue) Enqueue(ctx context.Context, event domain.CheckoutCompleted) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// failingOrders fails every write with the configured error.
type failingOrders struct {
	port.OrderRepository
	createErr error
	zeroID    bool
}

func (f *failingOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	if f.zeroID {
		return nil
	}
	return f.createErr
}

// countingSessions records saves on top of a real session store.
type countingSessions struct {
	port.SessionRepository
	saves atomic.Int32
}

func (c *countingSessions) SaveSession(ctx context.Context, session *domain.Session) error {
	c.saves.Add(1)
	return c.SessionRepository.SaveSession(ctx, session)
}

type testEnv struct {
	store    *storage.MemoryAdapter
	source   *mockSource
	events   *recordingEvents
	notifier *recordingNotifier
	queue    *recordingQueue

	catalog  *Catalog
	carts    *CartService
	recon    *Reconciler
	orders   *OrderService
	checkout *CheckoutService
	conv     *Conversation
}

type envOption func(*testEnv, *port.OrderRepository)

func withOrders(wrap func(port.OrderRepository) port.OrderRepository) envOption {
	return func(_ *testEnv, orders *port.OrderRepository) {
		*orders = wrap(*orders)
	}
}

func newTestEnv(t *testing.T, products []domain.Product, opts ...envOption) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	env := &testEnv{
		store:    storage.NewMemoryAdapter(storage.RedisOptions{CartCeiling: 99}, 0),
		source:   newMockSource(products...),
		events:   &recordingEvents{},
		notifier: newRecordingNotifier(),
		queue:    &recordingQueue{},
	}
	t.Cleanup(env.store.Close)

	var orders port.OrderRepository = env.store
	for _, opt := range opts {
		opt(env, &orders)
	}

	env.catalog = NewCatalog(env.source, 0, time.Second, logger)
	_, err := env.catalog.Refresh(context.Background())
	require.NoError(t, err)

	env.carts = NewCartService(env.store, env.catalog, env.events, logger)
	env.recon = NewReconciler(env.carts, env.catalog, logger)
	env.orders = NewOrderService(orders, env.store, env.store, env.carts, env.recon, env.queue, env.notifier,
		OrderServiceConfig{PageSize: 5, AdminPageSize: 10}, logger)
	env.checkout = NewCheckoutService(env.store, env.recon, env.orders, logger)
	env.conv = NewConversation(env.store, env.store, env.catalog, env.carts, env.recon, env.checkout, env.orders,
		5*time.Second, logger)
	return env
}

func (e *testEnv) send(t *testing.T, userID int64, ev domain.Event) *domain.Reply {
	t.Helper()
	reply, err := e.conv.Handle(context.Background(), userID, ev)
	require.NoError(t, err)
	require.NotNil(t, reply)
	return reply
}

func cmd(name, arg string) domain.Event {
	return domain.Event{Kind: domain.EventCommand, Value: name, Text: arg}
}

func text(s string) domain.Event {
	return domain.Event{Kind: domain.EventText, Text: s}
}

func sel(v string) domain.Event {
	return domain.Event{Kind: domain.EventSelect, Value: v}
}

func replyText(r *domain.Reply) string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n")
}

var (
	tea    = product("4820000000011", "A-1", "Чай чорний", "100.00", 5)
	coffee = product("4820000000028", "B-2", "Кава мелена", "150.00", 3)
)
