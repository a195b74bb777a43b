package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type CatalogStatus struct {
	Source    string    `json:"source"`
	Loaded    bool      `json:"loaded"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	Products  int       `json:"products"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"last_error,omitempty"`
}

// Catalog serves product lookups from the last loaded snapshot. Reloads run on
// a ticker and on demand; concurrent reload requests share one load.
type Catalog struct {
	source   port.CatalogSource
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	snapshot atomic.Pointer[domain.CatalogSnapshot]
	stale    atomic.Bool
	group    singleflight.Group

	mu      sync.Mutex
	lastErr error

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCatalog(source port.CatalogSource, interval, timeout time.Duration, logger *zap.Logger) *Catalog {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Catalog{
		source:   source,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(zap.String("catalog_source", source.Name())),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start performs the first load and schedules periodic reloads. A failed first
// load is returned but the schedule still runs, so the catalog recovers once
// the source becomes readable.
func (c *Catalog) Start(ctx context.Context) error {
	_, err := c.Refresh(ctx)

	if c.interval > 0 {
		c.wg.Add(1)
		go c.reloadLoop()
	}
	return err
}

func (c *Catalog) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

func (c *Catalog) reloadLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Refresh(context.Background())
		case <-c.stopCh:
			return
		}
	}
}

// Refresh reloads the whole catalog and swaps the snapshot. On failure the
// previous snapshot keeps serving and is marked stale.
func (c *Catalog) Refresh(ctx context.Context) (*domain.CatalogSnapshot, error) {
	ch := c.group.DoChan("reload", func() (any, error) {
		// Detached from the first caller; every waiter shares this load.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.load(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CatalogSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Catalog) load(ctx context.Context) (*domain.CatalogSnapshot, error) {
	start := c.now()

	products, err := c.source.LoadProducts(ctx)
	if err != nil {
		c.stale.Store(c.snapshot.Load() != nil)
		c.setLastErr(err)
		c.logger.Error("catalog reload failed, serving previous snapshot",
			zap.Bool("has_snapshot", c.snapshot.Load() != nil),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}

	snap, skipped := domain.NewCatalogSnapshot(products, c.now())
	for _, row := range skipped {
		c.logger.Warn("catalog row skipped",
			zap.Int("row", row.Row),
			zap.String("key", row.Key),
			zap.String("reason", row.Reason),
		)
	}

	c.snapshot.Store(snap)
	c.stale.Store(false)
	c.setLastErr(nil)

	c.logger.Info("catalog reloaded",
		zap.Int("products", snap.Len()),
		zap.Int("skipped", len(skipped)),
		zap.Duration("took", c.now().Sub(start)),
	)
	return snap, nil
}

func (c *Catalog) setLastErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

// Snapshot returns the current snapshot and whether it is stale.
func (c *Catalog) Snapshot() (*domain.CatalogSnapshot, bool, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, false, fmt.Errorf("%w: not loaded yet", domain.ErrCatalogUnavailable)
	}
	return snap, c.stale.Load(), nil
}

func (c *Catalog) Lookup(key string) (domain.Product, error) {
	snap, _, err := c.Snapshot()
	if err != nil {
		return domain.Product{}, err
	}

	p, ok := snap.Get(key)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Find resolves user input as a barcode first, then as an article.
func (c *Catalog) Find(query string) ([]domain.Product, error) {
	snap, _, err := c.Snapshot()
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrProductNotFound
	}
	if p, ok := snap.Get(query); ok {
		return []domain.Product{p}, nil
	}
	if variants := snap.ByArticle(query); len(variants) > 0 {
		return variants, nil
	}
	return nil, domain.ErrProductNotFound
}

func (c *Catalog) Status() CatalogStatus {
	st := CatalogStatus{
		Source: c.source.Name(),
		Stale:  c.stale.Load(),
	}
	if snap := c.snapshot.Load(); snap != nil {
		st.Loaded = true
		st.LoadedAt = snap.LoadedAt
		st.Products = snap.Len()
	}

	c.mu.Lock()
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()
	return st
}
