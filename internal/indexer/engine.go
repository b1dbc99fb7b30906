package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/vocab"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/tracing"
)

// Index is a sealed inverted index together with its vocabulary grouped by
// word length. It is read-only and safe for concurrent queries.
type Index struct {
	Inverted *index.InvertedIndex
	Lengths  *vocab.LengthIndex
	Stats    BuildStats
}

// Empty reports whether no word was indexed.
func (i *Index) Empty() bool {
	return i == nil || i.Inverted.Len() == 0
}

type BuildStats struct {
	Sources        int           `json:"sources"`
	SourcesSkipped int           `json:"sources_skipped"`
	Lines          int           `json:"lines"`
	Occurrences    int           `json:"occurrences"`
	Words          int           `json:"words"`
	Duration       time.Duration `json:"duration_ns"`
}

type Engine struct {
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine returns an engine reading up to cfg.Workers sources at once. m may
// be nil.
func NewEngine(cfg config.CorpusConfig, m *metrics.Metrics) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Build indexes sources with the default corpus settings and no metrics.
func Build(ctx context.Context, sources ...source.Source) (*Index, BuildStats, error) {
	return NewEngine(config.Default().Corpus, nil).Build(ctx, sources...)
}

// Build reads every source and indexes its lines. Sources are read
// concurrently but merged in argument order, so the result does not depend on
// scheduling. A source that fails with ErrSourceUnavailable is logged and
// skipped along with any lines it produced. Any other error, including
// context cancellation, aborts the build.
func (e *Engine) Build(ctx context.Context, sources ...source.Source) (*Index, BuildStats, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "index.build")
	defer func() {
		span.End()
		span.Log(ctx, e.logger, slog.LevelDebug)
	}()

	buffers := make([][]source.Line, len(sources))
	failures := make([]error, len(sources))

	readCtx, readSpan := tracing.Start(ctx, "read")
	g, gctx := errgroup.WithContext(readCtx)
	g.SetLimit(e.workers)
	for i, src := range sources {
		g.Go(func() error {
			_, srcSpan := tracing.Start(readCtx, "source")
			defer srcSpan.End()
			srcSpan.Set("source", src.Name())
			var buf []source.Line
			err := src.Lines(gctx, func(l source.Line) error {
				buf = append(buf, l)
				return nil
			})
			if err != nil {
				if errors.Is(err, apperrors.ErrSourceUnavailable) {
					failures[i] = err
					return nil
				}
				return fmt.Errorf("reading source %s: %w", src.Name(), err)
			}
			buffers[i] = buf
			srcSpan.Set("lines", len(buf))
			return nil
		})
	}
	err := g.Wait()
	readSpan.End()
	if err != nil {
		return nil, BuildStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, BuildStats{}, err
	}

	_, mergeSpan := tracing.Start(ctx, "merge")
	inv := index.NewInvertedIndex()
	stats := BuildStats{Sources: len(sources)}
	for i, src := range sources {
		if failures[i] != nil {
			stats.SourcesSkipped++
			e.logger.Warn("skipping unavailable source",
				"source", src.Name(),
				"error", failures[i],
			)
			continue
		}
		for _, l := range buffers[i] {
			inv.AddLine(l.Text, l.Source, l.Offset)
		}
		buffers[i] = nil
	}
	inv.Seal()
	mergeSpan.End()

	_, vocabSpan := tracing.Start(ctx, "vocab")
	lengths := vocab.Build(inv)
	vocabSpan.End()

	stats.Lines = inv.Lines()
	stats.Occurrences = inv.Occurrences()
	stats.Words = inv.Len()
	stats.Duration = time.Since(start)
	span.Set("lines", stats.Lines, "words", stats.Words)

	if e.metrics != nil {
		e.metrics.IndexLinesTotal.Add(float64(stats.Lines))
		e.metrics.IndexWords.Set(float64(stats.Words))
		e.metrics.IndexSourcesTotal.WithLabelValues("indexed").Add(float64(stats.Sources - stats.SourcesSkipped))
		e.metrics.IndexSourcesTotal.WithLabelValues("skipped").Add(float64(stats.SourcesSkipped))
		e.metrics.IndexBuildDuration.Observe(stats.Duration.Seconds())
	}

	e.logger.Info("index built",
		"sources", stats.Sources,
		"skipped", stats.SourcesSkipped,
		"lines", stats.Lines,
		"words", stats.Words,
		"occurrences", stats.Occurrences,
		"duration", stats.Duration,
	)

	return &Index{Inverted: inv, Lengths: lengths, Stats: stats}, stats, nil
}
