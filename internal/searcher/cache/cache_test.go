package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

func result(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		Words:     []string{"quick", "fox"},
		TotalHits: 1,
		Results: []ranker.ScoredMatch{
			{Sentence: "The quick brown fox", Source: "a.txt", LineOffset: 0, Score: 12.5},
		},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("quick fox", 5), Key("  QUICK   Fox ", 5))
	assert.NotEqual(t, Key("quick fox", 5), Key("fox quick", 5))
	assert.NotEqual(t, Key("quick fox", 5), Key("quick fox", 10))
	assert.Len(t, Key("x", 1), 32)
}

func TestLookup_CachesResults(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(NewLRUStore(16, time.Minute), time.Minute, m)
	ctx := context.Background()

	calls := 0
	search := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return result("quick fox"), nil
	}

	got, outcome, err := c.Lookup(ctx, "quick fox", 5, search)
	require.NoError(t, err)
	assert.Equal(t, Miss, outcome)
	assert.Equal(t, 1, got.TotalHits)

	got, outcome, err = c.Lookup(ctx, "Quick  FOX", 5, search)
	require.NoError(t, err)
	assert.Equal(t, Hit, outcome)
	assert.Equal(t, "Quick  FOX", got.Query)
	assert.Equal(t, result("").Results, got.Results)
	assert.Equal(t, 1, calls)

	assert.Equal(t, Stats{Hits: 1, Misses: 1, Lookups: 2, HitRatio: 0.5}, c.Stats())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestLookup_ErrorsNotCached(t *testing.T) {
	c := New(NewLRUStore(16, time.Minute), time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.Lookup(context.Background(), "fox", 5, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, outcome, err := c.Lookup(context.Background(), "fox", 5, func(context.Context) (*executor.SearchResult, error) {
		return result("fox"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, Miss, outcome)
}

func TestLookup_SharesConcurrentMisses(t *testing.T) {
	c := New(NewLRUStore(16, time.Minute), time.Minute, nil)
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _, err := c.Lookup(context.Background(), "fox", 5, func(context.Context) (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return result("fox"), nil
			})
			assert.NoError(t, err)
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.LessOrEqual(t, calls.Load(), int32(8))

	_, outcome, err := c.Lookup(context.Background(), "fox", 5, func(context.Context) (*executor.SearchResult, error) {
		t.Error("search must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Hit, outcome)
}

func TestLookup_WaiterGivesUp(t *testing.T) {
	c := New(NewLRUStore(16, time.Minute), time.Minute, nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Lookup(ctx, "fox", 5, func(context.Context) (*executor.SearchResult, error) {
		<-release
		return result("fox"), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperrors.StatusClientClosedRequest, apperrors.Status(err))
}

func TestInvalidate(t *testing.T) {
	store := NewLRUStore(16, time.Minute)
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	search := func(context.Context) (*executor.SearchResult, error) { return result("x"), nil }

	for _, q := range []string{"fox", "dog"} {
		_, _, err := c.Lookup(ctx, q, 5, search)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len())

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, 0, store.Len())
	_, outcome, err := c.Lookup(ctx, "fox", 5, search)
	require.NoError(t, err)
	assert.Equal(t, Miss, outcome)
}

func TestLRUStore_Evicts(t *testing.T) {
	s := NewLRUStore(2, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)
	v, ok, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Flush(context.Context) (int, error) { return 0, errors.New("store down") }

func TestLookup_StoreFailureFallsThrough(t *testing.T) {
	c := New(failingStore{}, time.Minute, nil)

	got, outcome, err := c.Lookup(context.Background(), "fox", 5, func(context.Context) (*executor.SearchResult, error) {
		return result("fox"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, Miss, outcome)
	assert.Equal(t, 1, got.TotalHits)
	assert.Error(t, c.Invalidate(context.Background()))
}

type countingStore struct {
	failingStore
	calls atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.calls.Add(1)
	return s.failingStore.Get(ctx, key)
}

func TestBreakerStore_ShedsAfterFailures(t *testing.T) {
	inner := &countingStore{}
	store := NewBreakerStore(inner, resilience.NewBreaker("cache", resilience.BreakerConfig{
		Failures: 2,
		Cooldown: time.Hour,
	}))
	ctx := context.Background()

	for range 2 {
		_, _, err := store.Get(ctx, "k")
		assert.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, store.State())

	data, ok, err := store.Get(ctx, "k")
	assert.NoError(t, err, "open breaker reads as a miss")
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, int32(2), inner.calls.Load())

	_, err = store.Flush(ctx)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	store := NewBreakerStore(NewLRUStore(4, time.Minute), resilience.NewBreaker("cache", resilience.BreakerConfig{}))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	data, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	n, err := store.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, resilience.StateClosed, store.State())
}
