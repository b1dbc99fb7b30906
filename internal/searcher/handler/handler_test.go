package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

type lines []string

func (l lines) Name() string { return "corpus.txt" }

func (l lines) Lines(_ context.Context, fn func(source.Line) error) error {
	for i, text := range l {
		if err := fn(source.Line{Text: text, Source: "corpus.txt", Offset: i}); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
	agg     *analytics.Aggregator
	col     *analytics.Collector
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	idx, _, err := indexer.Build(context.Background(), lines{
		"The quick brown fox",
		"jumps over the lazy dog",
		"the fox sleeps",
	})
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	exec := executor.New(idx, config.SearchConfig{DefaultLimit: 2, MaxResults: 3, FuzzyLimit: 3}, m)
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(cache.NewLRUStore(32, time.Minute), time.Minute, m)
	}
	agg := analytics.NewAggregator()
	col := analytics.NewCollector(16, agg)
	col.Start(context.Background())

	mux := http.NewServeMux()
	New(exec, qc, col, m).Register(mux)
	return &fixture{mux: mux, metrics: m, agg: agg, col: col}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=the+fox")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "the fox", res.Query)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "corpus.txt", res.Results[0].Source)

	f.col.Close()
	assert.Equal(t, int64(1), f.agg.Summary(0).Searches)
}

func TestSearch_BadRequests(t *testing.T) {
	f := newFixture(t, false)

	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=",
		"/api/v1/search?q=fox&limit=abc",
		"/api/v1/search?q=fox&limit=0",
	} {
		rec := f.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestSearch_LimitClampedToMax(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=the&limit=100")
	require.Equal(t, http.StatusOK, rec.Code)
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.TotalHits)
	assert.Len(t, res.Results, 3)
}

func TestSearch_WhitespaceQueryIsEmptyResult(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=+++")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearch_ClientGoneIsNotAServerError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=fox", nil).WithContext(ctx))
	assert.Equal(t, 499, rec.Code)
	assert.JSONEq(t, `{"error":"request canceled"}`, rec.Body.String())
	assert.NotContains(t, buf.String(), "search failed")
}

func TestSearch_CacheHit(t *testing.T) {
	f := newFixture(t, true)

	f.do(t, http.MethodGet, "/api/v1/search?q=fox")
	f.do(t, http.MethodGet, "/api/v1/search?q=FOX")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal))

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 0.5, stats.HitRatio)

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	f.do(t, http.MethodGet, "/api/v1/search?q=fox")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CacheMissesTotal))
}

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexStats(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats indexer.BuildStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, 3, stats.Lines)
}

func TestIndexStats_NoIndex(t *testing.T) {
	mux := http.NewServeMux()
	New(executor.New(nil, config.SearchConfig{}, nil), nil, nil, nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=fox", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no index loaded")
}
