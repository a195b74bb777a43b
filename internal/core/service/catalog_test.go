package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestCatalog_NotLoaded(t *testing.T) {
	c := NewCatalog(newMockSource(tea), 0, time.Second, zaptest.NewLogger(t))

	_, err := c.Lookup(tea.Barcode)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	_, _, err = c.Snapshot()
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	assert.False(t, c.Status().Loaded)
}

func TestCatalog_LookupAndFind(t *testing.T) {
	green := product("4820000000035", "A-1", "Чай зелений", "110.00", 2)
	noBarcode := product("", "C-3", "Цукор", "40.50", 10)
	c := NewCatalog(newMockSource(tea, coffee, green, noBarcode), 0, time.Second, zaptest.NewLogger(t))

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())

	p, err := c.Lookup(coffee.Barcode)
	require.NoError(t, err)
	assert.Equal(t, "Кава мелена", p.Name)

	// article used as the key when the row has no barcode
	p, err = c.Lookup("C-3")
	require.NoError(t, err)
	assert.Equal(t, "C-3", p.Barcode)

	found, err := c.Find(" A-1 ")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, tea.Barcode, found[0].Barcode)
	assert.Equal(t, green.Barcode, found[1].Barcode)

	found, err = c.Find(green.Barcode)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = c.Find("missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = c.Lookup("missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalog_SkipsInvalidRows(t *testing.T) {
	negative := product("111", "N-1", "Брак", "-1.00", 1)
	duplicate := product(tea.Barcode, "A-9", "Дубль", "1.00", 1)
	c := NewCatalog(newMockSource(tea, negative, duplicate), 0, time.Second, zaptest.NewLogger(t))

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	p, err := c.Lookup(tea.Barcode)
	require.NoError(t, err)
	assert.Equal(t, tea.Name, p.Name, "first row wins")
}

func TestCatalog_FailedReloadKeepsSnapshot(t *testing.T) {
	source := newMockSource(tea)
	c := NewCatalog(source, 0, time.Second, zaptest.NewLogger(t))
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	source.fail(errors.New("file locked"))
	_, err = c.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	p, err := c.Lookup(tea.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Available)

	_, stale, err := c.Snapshot()
	require.NoError(t, err)
	assert.True(t, stale)

	st := c.Status()
	assert.True(t, st.Loaded)
	assert.True(t, st.Stale)
	assert.Contains(t, st.LastError, "file locked")

	source.set(product(tea.Barcode, tea.Article, tea.Name, "100.00", 1))
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	p, err = c.Lookup(tea.Barcode)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Available)
	assert.False(t, c.Status().Stale)
	assert.Empty(t, c.Status().LastError)
}

func TestCatalog_FailedFirstLoadIsNotStale(t *testing.T) {
	source := newMockSource()
	source.fail(errors.New("no such file"))
	c := NewCatalog(source, 0, time.Second, zaptest.NewLogger(t))

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	c.Stop()

	st := c.Status()
	assert.False(t, st.Loaded)
	assert.False(t, st.Stale)
}

func TestCatalog_ConcurrentRefreshSharesOneLoad(t *testing.T) {
	source := newMockSource(tea)
	source.release = make(chan struct{})
	c := NewCatalog(source, 0, time.Second, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCatalog_ScheduledReload(t *testing.T) {
	source := newMockSource(tea)
	c := NewCatalog(source, 10*time.Millisecond, time.Second, zaptest.NewLogger(t))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	source.set(product(tea.Barcode, tea.Article, "Чай новий", "100.00", 5))
	assert.Eventually(t, func() bool {
		p, err := c.Lookup(tea.Barcode)
		return err == nil && p.Name == "Чай новий"
	}, time.Second, 5*time.Millisecond)
}
