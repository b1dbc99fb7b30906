// Package handler exposes the search executor and its query cache over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// SearchExecutor is the part of *executor.Executor the API needs.
type SearchExecutor interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	Limit(requested int) int
	Index() *indexer.Index
}

type Handler struct {
	exec      SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New builds the search API. queryCache, collector and m may each be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		exec:      exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		log:       slog.Default().With("component", "search-api"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=<query>[&limit=n].
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	query, requested, err := searchParams(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	limit := h.exec.Limit(requested)

	res, outcome, err := h.lookup(ctx, query, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.FromContext(ctx).Debug("search abandoned by client", "query", query)
		} else {
			logger.FromContext(ctx).Error("search failed", "query", query, "error", err)
		}
		h.fail(w, err)
		return
	}

	took := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(string(outcome)).Observe(took.Seconds())
	}
	logger.FromContext(ctx).Info("search served",
		"query", query,
		"limit", limit,
		"hits", res.TotalHits,
		"returned", len(res.Results),
		"cache", outcome,
		"took_ms", took.Milliseconds(),
	)
	h.track(ctx, res, outcome == cache.Hit, took)
	h.reply(w, http.StatusOK, res)
}

func searchParams(r *http.Request) (query string, limit int, err error) {
	q := r.URL.Query()
	query = q.Get("q")
	if query == "" {
		return "", 0, apperrors.E(apperrors.ErrInvalidInput, "query parameter 'q' is required")
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return "", 0, apperrors.E(apperrors.ErrInvalidInput, "limit must be a positive integer, got %q", raw)
		}
	}
	return query, limit, nil
}

func (h *Handler) lookup(ctx context.Context, query string, limit int) (*executor.SearchResult, cache.Outcome, error) {
	if h.cache == nil {
		res, err := h.exec.Search(ctx, query, limit)
		return res, cache.Bypass, err
	}
	return h.cache.Lookup(ctx, query, limit, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.exec.Search(ctx, query, limit)
	})
}

func (h *Handler) track(ctx context.Context, res *executor.SearchResult, cacheHit bool, took time.Duration) {
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.SearchEvent{
		Type:         analytics.Classify(res.TotalHits, cacheHit, len(res.UnknownWords)),
		Query:        res.Query,
		Words:        res.Words,
		UnknownWords: res.UnknownWords,
		TotalHits:    res.TotalHits,
		Returned:     len(res.Results),
		LatencyMs:    took.Milliseconds(),
		CacheHit:     cacheHit,
		Surface:      "http",
		Timestamp:    time.Now().UTC(),
		RequestID:    logger.RequestID(ctx),
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, _ *http.Request) {
	idx := h.exec.Index()
	if idx == nil {
		h.fail(w, apperrors.E(apperrors.ErrIndexEmpty, "no index loaded"))
		return
	}
	h.reply(w, http.StatusOK, idx.Stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		h.reply(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.reply(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.fail(w, apperrors.E(apperrors.ErrDisabled, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.fail(w, err)
		return
	}
	h.reply(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) reply(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("writing response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.reply(w, apperrors.Status(err), map[string]string{"error": apperrors.Public(err)})
}
