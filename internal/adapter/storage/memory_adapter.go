package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

type memoryCart struct {
	items     domain.Cart
	expiresAt time.Time
}

type memorySession struct {
	session   domain.Session
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryAdapter keeps carts, sessions, orders and users in process. It is used
// with STORE_TYPE=memory for local runs; state does not survive restarts.
type MemoryAdapter struct {
	mu          sync.Mutex
	opts        RedisOptions
	carts       map[int64]*memoryCart
	sessions    map[int64]*memorySession
	locks       map[int64]memoryLock
	idempotency map[string]time.Time
	outbox      map[int64][]domain.Message
	orders      []domain.Order
	users       map[int64]*domain.User
	nextOrderID int64
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMemoryAdapter(opts RedisOptions, cleanupInterval time.Duration) *MemoryAdapter {
	m := &MemoryAdapter{
		opts:        opts.withDefaults(),
		carts:       make(map[int64]*memoryCart),
		sessions:    make(map[int64]*memorySession),
		locks:       make(map[int64]memoryLock),
		idempotency: make(map[string]time.Time),
		outbox:      make(map[int64][]domain.Message),
		users:       make(map[int64]*domain.User),
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

func (m *MemoryAdapter) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryAdapter) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, c := range m.carts {
		if now.After(c.expiresAt) {
			delete(m.carts, id)
		}
	}
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, id)
		}
	}
	for id, l := range m.locks {
		if now.After(l.expiresAt) {
			delete(m.locks, id)
		}
	}
	for k, exp := range m.idempotency {
		if now.After(exp) {
			delete(m.idempotency, k)
		}
	}
}

func (m *MemoryAdapter) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

// liveCart must be called with mu held.
func (m *MemoryAdapter) liveCart(userID int64) *memoryCart {
	c, ok := m.carts[userID]
	if !ok {
		return nil
	}
	if m.now().After(c.expiresAt) {
		delete(m.carts, userID)
		return nil
	}
	return c
}

func (m *MemoryAdapter) AddItem(ctx context.Context, userID int64, key string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.liveCart(userID)
	current := 0
	if c != nil {
		current = c.items[key]
	}
	if current == 0 && delta < 0 {
		return 0, domain.ErrItemNotInCart
	}

	updated := current + delta
	if updated > m.opts.CartCeiling {
		return 0, domain.ErrQuantityCeilingExceeded
	}

	if c == nil {
		c = &memoryCart{items: make(domain.Cart)}
		m.carts[userID] = c
	}
	if updated <= 0 {
		delete(c.items, key)
		updated = 0
	} else {
		c.items[key] = updated
	}
	m.touchCart(userID, c)
	return updated, nil
}

// touchCart must be called with mu held.
func (m *MemoryAdapter) touchCart(userID int64, c *memoryCart) {
	if len(c.items) == 0 {
		delete(m.carts, userID)
		return
	}
	c.expiresAt = m.now().Add(m.opts.CartTTL)
}

func (m *MemoryAdapter) SetQuantity(ctx context.Context, userID int64, key string, n int) error {
	if n <= 0 {
		return m.RemoveItem(ctx, userID, key)
	}
	if n > m.opts.CartCeiling {
		return domain.ErrQuantityCeilingExceeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.liveCart(userID)
	if c == nil {
		c = &memoryCart{items: make(domain.Cart)}
		m.carts[userID] = c
	}
	c.items[key] = n
	m.touchCart(userID, c)
	return nil
}

func (m *MemoryAdapter) RemoveItem(ctx context.Context, userID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.liveCart(userID)
	if c == nil {
		return nil
	}
	if _, ok := c.items[key]; !ok {
		return domain.ErrItemNotInCart
	}
	delete(c.items, key)
	m.touchCart(userID, c)
	return nil
}

func (m *MemoryAdapter) GetCart(ctx context.Context, userID int64) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(domain.Cart)
	if c := m.liveCart(userID); c != nil {
		for k, v := range c.items {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryAdapter) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, userID)
	return nil
}

func copySession(s domain.Session) *domain.Session {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return &s
}

// liveSession must be called with mu held.
func (m *MemoryAdapter) liveSession(userID int64) *memorySession {
	s, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	if m.now().After(s.expiresAt) {
		delete(m.sessions, userID)
		return nil
	}
	return s
}

func (m *MemoryAdapter) CreateSession(ctx context.Context, session *domain.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveSession(session.UserID) != nil {
		return false, nil
	}
	m.sessions[session.UserID] = &memorySession{
		session:   *copySession(*session),
		expiresAt: m.now().Add(m.opts.SessionTTL),
	}
	return true, nil
}

func (m *MemoryAdapter) GetSession(ctx context.Context, userID int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSession(userID)
	if s == nil {
		return nil, nil
	}
	return copySession(s.session), nil
}

func (m *MemoryAdapter) SaveSession(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSession(session.UserID)
	if s == nil {
		return domain.ErrNoActiveCheckout
	}
	s.session = *copySession(*session)
	s.expiresAt = m.now().Add(m.opts.SessionTTL)
	return nil
}

func (m *MemoryAdapter) DeleteSession(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

func (m *MemoryAdapter) AcquireUserLock(ctx context.Context, userID int64, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[userID]; ok && m.now().Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.New().String()
	m.locks[userID] = memoryLock{token: token, expiresAt: m.now().Add(ttl)}
	return token, true, nil
}

func (m *MemoryAdapter) ReleaseUserLock(ctx context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[userID]; ok && l.token == token {
		delete(m.locks, userID)
	}
	return nil
}

func (m *MemoryAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exp, ok := m.idempotency[key]; ok && m.now().Before(exp) {
		return false, nil
	}
	m.idempotency[key] = m.now().Add(idempotencyKeyTTL)
	return true, nil
}

func (m *MemoryAdapter) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.idempotency, key)
	return nil
}

func (m *MemoryAdapter) Notify(ctx context.Context, userID int64, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outbox[userID] = append(m.outbox[userID], msg)
	return nil
}

func (m *MemoryAdapter) Drain(ctx context.Context, userID int64, max int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.outbox[userID]
	if max > len(pending) {
		max = len(pending)
	}
	if max <= 0 {
		return []domain.Message{}, nil
	}

	out := make([]domain.Message, max)
	copy(out, pending[:max])
	m.outbox[userID] = pending[max:]
	return out, nil
}

func (m *MemoryAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.CheckoutID == order.CheckoutID {
			return domain.ErrDuplicateCheckout
		}
	}

	m.nextOrderID++
	order.ID = m.nextOrderID
	m.orders = append(m.orders, *order)
	return nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.ID == id {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryAdapter) GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.CheckoutID == checkoutID {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryAdapter) filterOrders(keep func(domain.Order) bool) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *MemoryAdapter) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return m.filterOrders(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return m.filterOrders(func(o domain.Order) bool { return status == "" || o.Status == status }), nil
}

func (m *MemoryAdapter) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber *string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.orders {
		if m.orders[i].ID != id {
			continue
		}
		m.orders[i].Status = status
		if trackingNumber != nil {
			m.orders[i].TrackingNumber = *trackingNumber
		}
		m.orders[i].UpdatedAt = m.now()
		updated := m.orders[i]
		return &updated, nil
	}
	return nil, nil
}

func (m *MemoryAdapter) EnsureUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		now := m.now()
		m.users[userID] = &domain.User{ID: userID, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (m *MemoryAdapter) UpdateUserContact(ctx context.Context, userID int64, name, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	u, ok := m.users[userID]
	if !ok {
		u = &domain.User{ID: userID, CreatedAt: now}
		m.users[userID] = u
	}
	u.Name, u.Phone, u.UpdatedAt = name, phone, now
	return nil
}

func (m *MemoryAdapter) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	found := *u
	return &found, nil
}
