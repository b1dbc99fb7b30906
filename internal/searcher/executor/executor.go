package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/tracing"
)

type SearchResult struct {
	Query        string               `json:"query"`
	Words        []string             `json:"words"`
	UnknownWords []string             `json:"unknown_words"`
	FuzzyMatches []fuzzy.Match        `json:"fuzzy_matches"`
	TotalHits    int                  `json:"total_hits"`
	Results      []ranker.ScoredMatch `json:"results"`
	Warning      string               `json:"warning,omitempty"`
}

type Executor struct {
	idx          *indexer.Index
	opts         Options
	defaultLimit int
	maxResults   int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New returns an executor over idx. m may be nil.
func New(idx *indexer.Index, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = ranker.DefaultTopK
	}
	maxResults := cfg.MaxResults
	if maxResults < defaultLimit {
		maxResults = defaultLimit
	}
	return &Executor{
		idx: idx,
		opts: Options{
			FuzzyLimit:    cfg.FuzzyLimit,
			MinSimilarity: cfg.MinSimilarity,
		},
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		metrics:      m,
		logger:       slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Index() *indexer.Index {
	return e.idx
}

// Limit maps a requested result count onto the configured bounds.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		return e.defaultLimit
	}
	if requested > e.maxResults {
		return e.maxResults
	}
	return requested
}

func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	limit = e.Limit(limit)
	log := e.logger
	if id := logger.RequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	if e.idx == nil {
		e.observe("error", 0)
		return nil, apperrors.E(apperrors.ErrIndexEmpty, "no index loaded")
	}

	ctx, span := tracing.Start(ctx, "search")
	defer func() {
		span.End()
		span.Log(ctx, log, slog.LevelDebug)
	}()

	q := parser.Parse(query)
	resolveCtx, resolveSpan := tracing.Start(ctx, "resolve")
	res, err := resolve(resolveCtx, q, e.idx.Inverted, e.idx.Lengths, e.opts)
	resolveSpan.End()
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			e.observe("error", 0)
			return nil, apperrors.E(apperrors.ErrTimeout, "search for %q timed out", query)
		case errors.Is(err, context.Canceled):
			e.observe("canceled", 0)
			return nil, fmt.Errorf("search for %q: %w: %w", query, apperrors.ErrCanceled, err)
		}
		e.observe("error", 0)
		return nil, fmt.Errorf("resolving query %q: %w", query, err)
	}
	if len(res.Unknown) > 0 && len(res.Known) > 0 && e.metrics != nil {
		e.metrics.FuzzyLookupsTotal.Inc()
	}

	resolveSpan.Set("anchor", res.Anchor, "candidates", len(res.Matches))

	_, rankSpan := tracing.Start(ctx, "rank")
	result := &SearchResult{
		Query:        query,
		Words:        q.Words,
		UnknownWords: res.Unknown,
		FuzzyMatches: res.Fuzzy,
		TotalHits:    len(res.Matches),
		Results:      ranker.Rank(res.Matches, limit),
		Warning:      unknownWordsWarning(res.Unknown),
	}
	rankSpan.End()

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	e.observe(resultType, len(result.Results))

	log.Info("search executed",
		"query", query,
		"anchor", res.Anchor,
		"unknown", len(res.Unknown),
		"hits", result.TotalHits,
		"returned", len(result.Results),
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Executor) observe(resultType string, returned int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" && resultType != "canceled" {
		e.metrics.SearchResultsCount.Observe(float64(returned))
	}
}

// Search returns the topK best lines of idx for query.
func Search(query string, idx *indexer.Index, topK int) []ranker.ScoredMatch {
	if idx == nil {
		return make([]ranker.ScoredMatch, 0)
	}
	res := Resolve(query, idx.Inverted, idx.Lengths, Options{})
	return ranker.Rank(res.Matches, topK)
}

func unknownWordsWarning(unknown []string) string {
	if len(unknown) < 2 {
		return ""
	}
	return fmt.Sprintf("only %q was matched approximately; ignored unknown words: %s",
		unknown[0], strings.Join(unknown[1:], ", "))
}
