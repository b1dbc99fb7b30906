package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

// app is the state shared by subcommands once configuration is loaded.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []func() error
}

func (a *app) init(cfg *config.Config) {
	a.cfg = cfg
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
}

// sources lists the configured line sources: the files under corpus.dir and,
// when enabled, the PostgreSQL table.
func (a *app) sources(ctx context.Context) ([]source.Source, error) {
	decoder, err := source.NewDecoder(a.cfg.Corpus.Encodings)
	if err != nil {
		return nil, err
	}
	files, err := source.Discover(a.cfg.Corpus.Dir, a.cfg.Corpus.Extensions, decoder)
	if err != nil {
		return nil, fmt.Errorf("discovering corpus files: %w", err)
	}
	srcs := make([]source.Source, 0, len(files)+1)
	for _, f := range files {
		srcs = append(srcs, f)
	}

	if a.cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		srcs = append(srcs, source.NewPostgresSource(db.DB, a.cfg.Postgres.Table))
	}
	return srcs, nil
}

func (a *app) buildIndex(ctx context.Context) (*indexer.Index, error) {
	srcs, err := a.sources(ctx)
	if err != nil {
		return nil, err
	}
	idx, _, err := indexer.NewEngine(a.cfg.Corpus, a.metrics).Build(ctx, srcs...)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return idx, nil
}

func (a *app) executor(idx *indexer.Index) *executor.Executor {
	return executor.New(idx, a.cfg.Search, a.metrics)
}

// collector returns a started analytics collector publishing to Kafka and to
// any extra publishers, or nil when there is nowhere to publish. A Kafka
// misconfiguration disables that publisher rather than the command.
func (a *app) collector(ctx context.Context, extra ...analytics.Publisher) *analytics.Collector {
	publishers := extra
	if a.cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(a.cfg.Kafka)
		if err != nil {
			slog.Warn("search analytics not published to kafka", "error", err)
		} else {
			a.closers = append(a.closers, producer.Close)
			publishers = append(publishers, producer)
			slog.Info("publishing search analytics to kafka", "topic", a.cfg.Kafka.Topic)
		}
	}
	if len(publishers) == 0 {
		return nil
	}
	c := analytics.NewCollector(10000, publishers...).Instrument(a.metrics)
	c.Start(ctx)
	return c
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}
