// Package metrics owns every Prometheus collector the service exports. All
// series live under the linesearch namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linesearch"

type Metrics struct {
	// http
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// search
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	FuzzyLookupsTotal  prometheus.Counter
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	// index
	IndexLinesTotal    prometheus.Counter
	IndexWords         prometheus.Gauge
	IndexSourcesTotal  *prometheus.CounterVec
	IndexBuildDuration prometheus.Histogram

	// supporting services
	BreakerState        *prometheus.GaugeVec
	AnalyticsEventsLost *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, so tests can call New freely.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),

		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "queries_total",
			Help: "Searches by outcome: hit, zero_result, canceled or error.",
		}, []string{"result_type"}),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help:    "Time to answer a search, by how the query cache answered it.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2.5, 10),
		}, []string{"cache"}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results",
			Help:    "Lines returned per search.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
		}),
		FuzzyLookupsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "fuzzy_lookups_total",
			Help: "Vocabulary scans made to resolve an unknown query word.",
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Query cache hits.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Query cache misses.",
		}),

		IndexLinesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "lines_total",
			Help: "Non-blank lines indexed.",
		}),
		IndexWords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "words",
			Help: "Distinct words in the current index.",
		}),
		IndexSourcesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "sources_total",
			Help: "Line sources read, by status (indexed, skipped).",
		}, []string{"status"}),
		IndexBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "index", Name: "build_duration_seconds",
			Help:    "Wall time of an index build.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "breaker", Name: "state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}),
		AnalyticsEventsLost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analytics", Name: "events_lost_total",
			Help: "Analytics events not delivered: dropped on a full buffer or failed to publish.",
		}, []string{"outcome"}),
	}
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
