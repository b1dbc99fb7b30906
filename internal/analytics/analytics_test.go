package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollector_DeliversToAllPublishers(t *testing.T) {
	first := &recordingPublisher{err: errors.New("broker down")}
	agg := NewAggregator()
	c := NewCollector(16, first, agg)
	c.Start(context.Background())

	c.Track(SearchEvent{Type: EventSearch, Query: "fox", Words: []string{"fox"}, TotalHits: 2, LatencyMs: 3})
	c.Track(SearchEvent{Type: EventZeroResult, Query: "zebra", Words: []string{"zebra"}, LatencyMs: 1})
	c.Close()

	assert.Equal(t, 2, first.len())
	assert.Equal(t, "search", first.events[0].Key)
	assert.Equal(t, CollectorStats{Tracked: 2, Delivered: 2, Failed: 2}, c.Stats())
	s := agg.Summary(0)
	assert.Equal(t, int64(2), s.Searches)
	assert.Equal(t, int64(1), s.ByType[EventZeroResult])
}

func TestCollector_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(1, pub)

	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})

	c.Start(context.Background())
	c.Close()
	assert.Equal(t, 1, pub.len())
	assert.Equal(t, CollectorStats{Tracked: 2, Dropped: 1, Delivered: 1}, c.Stats())
}

func TestCollector_InstrumentCountsLostEvents(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(1, pub).Instrument(m)

	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	c.Start(context.Background())
	c.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsLost.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsLost.WithLabelValues("failed")))
}

func TestCollector_DrainsOnContextCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(8, pub)
	for range 5 {
		c.Track(SearchEvent{Query: "q"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)
	c.Close()

	assert.Equal(t, 5, pub.len())
}

func TestCollector_TrackAfterCloseIsDropped(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pub := &recordingPublisher{}
	c := NewCollector(8, pub).Instrument(m)
	c.Start(context.Background())
	c.Track(SearchEvent{Query: "before"})
	c.Close()

	assert.NotPanics(t, func() { c.Track(SearchEvent{Query: "after"}) })
	assert.NotPanics(t, c.Close)
	assert.Equal(t, 1, pub.len())
	assert.Equal(t, CollectorStats{Tracked: 2, Dropped: 1, Delivered: 1}, c.Stats())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsEventsLost.WithLabelValues("dropped")))
}

func TestCollector_TrackRacingClose(t *testing.T) {
	c := NewCollector(4, &recordingPublisher{})
	c.Start(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				c.Track(SearchEvent{Query: "q"})
			}
		})
	}
	c.Close()
	wg.Wait()

	s := c.Stats()
	assert.Equal(t, int64(400), s.Tracked)
	assert.Equal(t, s.Tracked, s.Delivered+s.Dropped)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, EventZeroResult, Classify(0, true, 1))
	assert.Equal(t, EventCacheHit, Classify(3, true, 1))
	assert.Equal(t, EventFuzzy, Classify(3, false, 1))
	assert.Equal(t, EventSearch, Classify(3, false, 0))
}

func TestAggregator_Summary(t *testing.T) {
	agg := NewAggregator()
	for _, e := range []SearchEvent{
		{Type: EventSearch, Query: "Quick  Fox", Words: []string{"quick", "fox"}, TotalHits: 3, LatencyMs: 10, Surface: "http"},
		{Type: EventCacheHit, Query: "quick fox", Words: []string{"quick", "fox"}, TotalHits: 3, LatencyMs: 20, CacheHit: true, Surface: "http"},
		{Type: EventFuzzy, Query: "lazy dgo", Words: []string{"lazy", "dgo"}, UnknownWords: []string{"dgo"}, TotalHits: 1, LatencyMs: 30, Surface: "repl"},
		{Type: EventZeroResult, Query: "zebra", Words: []string{"zebra"}, UnknownWords: []string{"zebra"}, LatencyMs: 40, Surface: "cli"},
	} {
		require.NoError(t, agg.Publish(context.Background(), kafka.Event{Value: e}))
	}

	s := agg.Summary(2)
	assert.Equal(t, int64(4), s.Searches)
	assert.Equal(t, map[EventType]int64{EventSearch: 1, EventCacheHit: 1, EventFuzzy: 1, EventZeroResult: 1}, s.ByType)
	assert.Equal(t, map[string]int64{"http": 2, "repl": 1, "cli": 1}, s.BySurface)
	assert.Equal(t, 0.25, s.CacheHitRatio)

	assert.Equal(t, 4, s.Latency.Samples)
	assert.Equal(t, 25.0, s.Latency.MeanMs)
	assert.Equal(t, int64(20), s.Latency.P50Ms)
	assert.Equal(t, int64(40), s.Latency.P99Ms)

	assert.Equal(t, []Count{{"quick fox", 2}, {"lazy dgo", 1}}, s.TopQueries, "queries are keyed by words and truncated to top")
	assert.Equal(t, []Count{{"zebra", 1}}, s.ZeroResult)
	assert.Equal(t, []Count{{"dgo", 1}, {"zebra", 1}}, s.TopUnknownWords)
}

func TestAggregator_LatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := range latencyWindow + 10 {
		agg.Record(SearchEvent{Query: "q", LatencyMs: int64(i)})
	}
	s := agg.Summary(0)
	assert.Equal(t, latencyWindow, s.Latency.Samples)
	// the oldest ten samples (0..9) were overwritten
	assert.Equal(t, 5009.5, s.Latency.MeanMs)
	assert.Equal(t, int64(5009), s.Latency.P50Ms)
	assert.Equal(t, int64(9909), s.Latency.P99Ms)
}

func TestAggregator_RejectsUnknownValues(t *testing.T) {
	err := NewAggregator().Publish(context.Background(), kafka.Event{Value: "nope"})
	assert.Error(t, err)
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Query: "fox", Words: []string{"fox"}, TotalHits: 1})
	agg.Record(SearchEvent{Query: "dog", Words: []string{"dog"}, TotalHits: 1})
	h := StatsHandler(agg)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(2), s.Searches)
	assert.Len(t, s.TopQueries, 1)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/stats?top=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
