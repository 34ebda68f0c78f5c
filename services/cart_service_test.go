package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/norun9/storefront-cartservice/cart"
	"github.com/norun9/storefront-cartservice/cartstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// countingStore wraps a store and counts calls; failSave makes every Save fail.
type countingStore struct {
	cartstore.ICartStore

	mu       sync.Mutex
	loads    int
	saves    int
	failSave bool
	failLoad error
}

func (c *countingStore) Load(ctx context.Context, scope string) ([]cart.LineItem, error) {
	c.mu.Lock()
	c.loads++
	failLoad := c.failLoad
	c.mu.Unlock()
	if failLoad != nil {
		return nil, failLoad
	}
	return c.ICartStore.Load(ctx, scope)
}

func (c *countingStore) Save(ctx context.Context, scope string, items []cart.LineItem) error {
	c.mu.Lock()
	c.saves++
	fail := c.failSave
	c.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return c.ICartStore.Save(ctx, scope, items)
}

func newStore() *countingStore {
	return &countingStore{ICartStore: cartstore.NewLocalCartStore(quietLogger())}
}

func newService(t *testing.T, store cartstore.ICartStore, opts ...Option) *CartService {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	svc, err := NewCartService(store, opts...)
	require.NoError(t, err)
	return svc
}

var redMug = cart.Candidate{Title: "Red Mug", Price: 12.5, Img: "img/mug.png"}

func TestFirstLoadIsEmpty(t *testing.T) {
	svc := newService(t, newStore())

	c, err := svc.GetCart(context.Background(), "shopper")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.TotalCount())
}

func TestAddItemWritesThrough(t *testing.T) {
	store := newStore()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)

	assert.Equal(t, 2, c.TotalCount())
	assert.Equal(t, "33.24", c.Totals().Total.String())

	saved, err := store.ICartStore.Load(ctx, "shopper")
	require.NoError(t, err)
	assert.Equal(t, []cart.LineItem{{ID: "red-mug-12.5", Title: "Red Mug", Price: 12.5, Img: "img/mug.png", Qty: 2}}, saved)
	assert.Equal(t, 2, store.saves)
}

func TestScopeLoadedOnce(t *testing.T) {
	store := newStore()
	svc := newService(t, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.AddItem(ctx, "shopper", redMug)
		require.NoError(t, err)
	}
	_, err := svc.GetCart(ctx, "shopper")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}

func TestResumesPersistedCart(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "shopper", []cart.LineItem{
		{ID: "lamp-70", Title: "Lamp", Price: 70, Qty: 1},
	}))

	svc := newService(t, store)
	c, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "lamp-70", items[0].ID)
	assert.Equal(t, "red-mug-12.5", items[1].ID)
}

func TestCorruptStoredCartStartsEmpty(t *testing.T) {
	store := newStore()
	store.failLoad = fmt.Errorf("decode: %w", cartstore.ErrCorrupt)
	svc := newService(t, store)

	c, err := svc.GetCart(context.Background(), "shopper")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadErrorIsReturnedAndNotCached(t *testing.T) {
	store := newStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "shopper", []cart.LineItem{
		{ID: "lamp-70", Title: "Lamp", Price: 70, Qty: 3},
	}))
	store.failLoad = errors.New("connection refused")
	svc := newService(t, store)

	_, err := svc.GetCart(ctx, "shopper")
	assert.Error(t, err)
	_, err = svc.AddItem(ctx, "shopper", redMug)
	assert.Error(t, err)
	assert.Equal(t, 1, store.saves, "a failed load must not write")

	store.mu.Lock()
	store.failLoad = nil
	store.mu.Unlock()

	c, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	assert.Equal(t, 4, c.TotalCount())
	saved, err := store.ICartStore.Load(ctx, "shopper")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, 3, saved[0].Qty)
}

func TestRedisLoadingKeepsDurableCart(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cartstore.NewRedisCartStore(mr.Addr(), cartstore.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "shopper", []cart.LineItem{
		{ID: "lamp-70", Title: "Lamp", Price: 70, Qty: 3},
	}))
	svc := newService(t, store)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, err = svc.GetCart(ctx, "shopper")
	require.Error(t, err)
	mr.SetError("")

	_, err = svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	saved, err := store.Load(ctx, "shopper")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, cart.LineItem{ID: "lamp-70", Title: "Lamp", Price: 70, Qty: 3}, saved[0])
	assert.Equal(t, "red-mug-12.5", saved[1].ID)
}

func TestWriteFailureKeepsMemoryAuthoritative(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	store := newStore()
	store.failSave = true
	svc := newService(t, store, WithMeterProvider(mp))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalCount())

	// nothing reached the store, the session still has both units
	saved, err := store.ICartStore.Load(ctx, "shopper")
	require.NoError(t, err)
	assert.Empty(t, saved)
	c, err = svc.GetCart(ctx, "shopper")
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalCount())

	// no retry
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, int64(2), counterValue(t, reader, "cart.store.write_failures"))
	assert.Equal(t, int64(2), counterValue(t, reader, "cart.mutations"))
}

func TestChangeQty(t *testing.T) {
	store := newStore()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)

	c, err := svc.ChangeQty(ctx, "shopper", "red-mug-12.5", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalCount())

	c, err = svc.ChangeQty(ctx, "shopper", "red-mug-12.5", -3)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	saves := store.saves
	c, err = svc.ChangeQty(ctx, "shopper", "red-mug-12.5", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, saves, store.saves, "unknown id must not write")
}

func TestRemoveItem(t *testing.T) {
	svc := newService(t, newStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "shopper", cart.Candidate{Title: "Lamp", Price: 70})
	require.NoError(t, err)

	c, err := svc.RemoveItem(ctx, "shopper", "red-mug-12.5")
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "73.50", c.Totals().Total.String())

	c, err = svc.RemoveItem(ctx, "shopper", "red-mug-12.5")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestScopesAreIsolated(t *testing.T) {
	svc := newService(t, newStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "a", redMug)
	require.NoError(t, err)
	b, err := svc.GetCart(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestSnapshotsAreDetached(t *testing.T) {
	svc := newService(t, newStore())
	ctx := context.Background()

	snap, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	snap.Add(redMug)
	snap.Add(redMug)

	c, err := svc.GetCart(ctx, "shopper")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalCount())
}

func TestConcurrentAddsInOneScope(t *testing.T) {
	svc := newService(t, newStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, "shopper", redMug)
		}()
	}
	wg.Wait()

	c, err := svc.GetCart(ctx, "shopper")
	require.NoError(t, err)
	assert.Equal(t, 50, c.TotalCount())
}

func TestEvictedScopeReloadsFromStore(t *testing.T) {
	store := newStore()
	svc := newService(t, store, WithSessionCacheSize(1))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "a", redMug)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "b", redMug)
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalCount())
	assert.Equal(t, 3, store.loads)
}

func TestSessionEvictedWhileLockedIsNotMutated(t *testing.T) {
	store := newStore()
	svc := newService(t, store, WithSessionCacheSize(1))
	ctx := context.Background()

	stale, err := svc.lockSession(ctx, "a")
	require.NoError(t, err)

	done := make(chan *cart.Cart)
	go func() {
		c, err := svc.AddItem(ctx, "a", redMug)
		assert.NoError(t, err)
		done <- c
	}()
	time.Sleep(20 * time.Millisecond)

	// "b" takes the only cache slot while "a" is still locked
	_, err = svc.AddItem(ctx, "b", redMug)
	require.NoError(t, err)
	stale.mu.Unlock()

	c := <-done
	assert.Equal(t, 1, c.TotalCount())
	assert.Equal(t, 0, stale.cart.Len(), "evicted session must not take the write")

	saved, err := store.ICartStore.Load(ctx, "a")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].Qty)
}

func TestCancelledContext(t *testing.T) {
	svc := newService(t, newStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidCacheSize(t *testing.T) {
	_, err := NewCartService(newStore(), WithSessionCacheSize(0))
	assert.Error(t, err)
}

func TestOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	svc := newService(t, newStore(), WithTracerProvider(tp))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "shopper", redMug)
	require.NoError(t, err)
	_, err = svc.ChangeQty(ctx, "shopper", "red-mug-12.5", -1)
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"AddItem", "ChangeQty"}, names)
}

func counterValue(t *testing.T, reader sdkmetric.Reader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
