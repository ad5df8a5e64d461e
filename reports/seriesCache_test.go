package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memoryStore) Set(ctx context.Context, key string, obj any, ttl time.Duration) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

type countingBuilder struct {
	calls int
	err   error
}

func (c *countingBuilder) BuildSeries(ctx context.Context, q revenue.Query) (*revenue.Series, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &revenue.Series{
		StoreID: q.StoreID,
		Period:  q.Period,
		Totals:  revenue.NewPeriodTotals(2, decimal.RequireFromString("20.50"), 3),
		Buckets: revenue.ZeroSeries(q.Period),
		Source:  revenue.SourceSynthesized,
	}, nil
}

func newTestCache(next revenue.Builder, enabled bool) (*CachedBuilder, *memoryStore) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := newMemoryStore()
	return &CachedBuilder{
		next:    next,
		store:   store,
		logger:  logger,
		enabled: enabled,
		ttl:     time.Minute,
		slow:    time.Hour,
	}, store
}

func marchQuery(statuses revenue.StatusFilter) revenue.Query {
	return revenue.Query{StoreID: "7", Period: revenue.MonthPeriod(2025, time.March), Statuses: statuses}
}

func TestCachedBuilder_ServesRepeatsFromCache(t *testing.T) {
	next := &countingBuilder{}
	cache, store := newTestCache(next, true)
	q := marchQuery(revenue.OnlyStatuses("completed"))

	first, err := cache.BuildSeries(context.Background(), q)
	if err != nil {
		t.Fatalf("first BuildSeries: %v", err)
	}
	second, err := cache.BuildSeries(context.Background(), q)
	if err != nil {
		t.Fatalf("second BuildSeries: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 reconciliation, got %d", next.calls)
	}
	if !second.Totals.Revenue.Equal(first.Totals.Revenue) || len(second.Buckets) != 31 || second.Period.Days() != 31 {
		t.Fatalf("cached series differs: %+v", second)
	}
	if ttl := store.ttls[SeriesCacheKey(q)]; ttl != time.Minute {
		t.Fatalf("expected the configured ttl, got %s", ttl)
	}
}

func TestCachedBuilder_KeyDependsOnStatuses(t *testing.T) {
	next := &countingBuilder{}
	cache, _ := newTestCache(next, true)

	if _, err := cache.BuildSeries(context.Background(), marchQuery(revenue.AllStatuses())); err != nil {
		t.Fatalf("BuildSeries: %v", err)
	}
	if _, err := cache.BuildSeries(context.Background(), marchQuery(revenue.OnlyStatuses("completed"))); err != nil {
		t.Fatalf("BuildSeries: %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("expected distinct filters to miss the cache, got %d reconciliations", next.calls)
	}
}

func TestCachedBuilder_DisabledOrEmptyFilterPassesThrough(t *testing.T) {
	next := &countingBuilder{}
	disabled, store := newTestCache(next, false)
	q := marchQuery(revenue.AllStatuses())
	for i := 0; i < 2; i++ {
		if _, err := disabled.BuildSeries(context.Background(), q); err != nil {
			t.Fatalf("BuildSeries: %v", err)
		}
	}
	if next.calls != 2 || len(store.data) != 0 {
		t.Fatalf("a disabled cache must not store anything (calls=%d, keys=%d)", next.calls, len(store.data))
	}

	enabled, store := newTestCache(next, true)
	if _, err := enabled.BuildSeries(context.Background(), marchQuery(revenue.OnlyStatuses())); err != nil {
		t.Fatalf("BuildSeries: %v", err)
	}
	if len(store.data) != 0 {
		t.Fatalf("the empty-status short-circuit must not be cached")
	}
}

func TestCachedBuilder_ErrorsAreNotCached(t *testing.T) {
	next := &countingBuilder{err: revenue.ErrAggregateUnavailable}
	cache, store := newTestCache(next, true)

	_, err := cache.BuildSeries(context.Background(), marchQuery(revenue.AllStatuses()))
	if !errors.Is(err, revenue.ErrAggregateUnavailable) {
		t.Fatalf("expected ErrAggregateUnavailable, got %v", err)
	}
	if len(store.data) != 0 {
		t.Fatalf("failed reconciliations must not be cached")
	}
}

func TestSeriesCacheKey(t *testing.T) {
	q := marchQuery(revenue.OnlyStatuses("processing", "completed"))
	expected := "RevenueSeries:7:custom:2025-03-01:2025-03-31:[completed,processing]"
	if got := SeriesCacheKey(q); got != expected {
		t.Fatalf("expected %s, got %s", expected, got)
	}
}
