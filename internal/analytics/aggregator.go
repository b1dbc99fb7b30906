package analytics

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
)

const (
	// latencyWindow bounds the samples kept for percentiles.
	latencyWindow = 10000
	defaultTop    = 10
)

// Summary is a point-in-time view of everything an Aggregator has seen.
type Summary struct {
	Searches      int64               `json:"searches"`
	ByType        map[EventType]int64 `json:"by_type"`
	BySurface     map[string]int64    `json:"by_surface"`
	CacheHitRatio float64             `json:"cache_hit_ratio"`
	Latency       LatencySummary      `json:"latency"`
	PerMinute     float64             `json:"searches_per_minute"`

	TopQueries      []Count `json:"top_queries"`
	ZeroResult      []Count `json:"zero_result_queries"`
	TopUnknownWords []Count `json:"top_unknown_words"`
}

type LatencySummary struct {
	Samples int     `json:"samples"`
	MeanMs  float64 `json:"mean_ms"`
	P50Ms   int64   `json:"p50_ms"`
	P95Ms   int64   `json:"p95_ms"`
	P99Ms   int64   `json:"p99_ms"`
}

// Count is one entry of a frequency table.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Aggregator folds search events into in-process counters. It is a Publisher
// so it can share a Collector with the Kafka producer.
//
// Queries are counted by their lower-cased words, so "Quick  Fox" and
// "quick fox" are one entry.
type Aggregator struct {
	mu        sync.Mutex
	started   time.Time
	searches  int64
	byType    map[EventType]int64
	bySurface map[string]int64
	queries   map[string]int64
	zero      map[string]int64
	unknown   map[string]int64
	latency   []int64
	cursor    int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		started:   time.Now(),
		byType:    make(map[EventType]int64),
		bySurface: make(map[string]int64),
		queries:   make(map[string]int64),
		zero:      make(map[string]int64),
		unknown:   make(map[string]int64),
	}
}

func (a *Aggregator) Publish(_ context.Context, event kafka.Event) error {
	switch e := event.Value.(type) {
	case SearchEvent:
		a.Record(e)
	case *SearchEvent:
		a.Record(*e)
	default:
		return fmt.Errorf("aggregator: unexpected event value %T", event.Value)
	}
	return nil
}

func (a *Aggregator) Record(e SearchEvent) {
	key := strings.Join(e.Words, " ")
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(e.Query))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.searches++
	a.byType[e.Type]++
	if e.Surface != "" {
		a.bySurface[e.Surface]++
	}
	a.queries[key]++
	if e.TotalHits == 0 {
		a.zero[key]++
	}
	for _, w := range e.UnknownWords {
		a.unknown[w]++
	}

	if len(a.latency) < latencyWindow {
		a.latency = append(a.latency, e.LatencyMs)
	} else {
		a.latency[a.cursor] = e.LatencyMs
		a.cursor = (a.cursor + 1) % latencyWindow
	}
}

// Summary reports the totals and the top entries of each frequency table.
// top <= 0 means 10.
func (a *Aggregator) Summary(top int) Summary {
	if top <= 0 {
		top = defaultTop
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		Searches:        a.searches,
		ByType:          maps.Clone(a.byType),
		BySurface:       maps.Clone(a.bySurface),
		Latency:         summarizeLatency(a.latency),
		TopQueries:      topCounts(a.queries, top),
		ZeroResult:      topCounts(a.zero, top),
		TopUnknownWords: topCounts(a.unknown, top),
	}
	if a.searches > 0 {
		s.CacheHitRatio = float64(a.byType[EventCacheHit]) / float64(a.searches)
	}
	if minutes := time.Since(a.started).Minutes(); minutes > 0 {
		s.PerMinute = float64(a.searches) / minutes
	}
	return s
}

func summarizeLatency(samples []int64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return LatencySummary{
		Samples: len(sorted),
		MeanMs:  float64(sum) / float64(len(sorted)),
		P50Ms:   nearestRank(sorted, 50),
		P95Ms:   nearestRank(sorted, 95),
		P99Ms:   nearestRank(sorted, 99),
	}
}

// nearestRank returns the pct-th percentile of sorted by the nearest-rank
// method.
func nearestRank(sorted []int64, pct int) int64 {
	rank := (pct*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}

// topCounts returns the n largest entries; equal counts are ordered by key.
func topCounts(counts map[string]int64, n int) []Count {
	out := make([]Count, 0, len(counts))
	for k, c := range counts {
		out = append(out, Count{Key: k, Count: c})
	}
	slices.SortFunc(out, func(x, y Count) int {
		if x.Count != y.Count {
			if x.Count > y.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Key, y.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
