package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	defer a.close()
	cfg := a.cfg

	idx, err := a.buildIndex(ctx)
	if err != nil {
		return err
	}

	queryCache, remote, err := newQueryCache(ctx, cfg, a.metrics)
	if err != nil {
		return err
	}
	if remote != nil {
		a.closers = append(a.closers, remote.client.Close)
	}

	aggregator := analytics.NewAggregator()
	collector := a.collector(ctx, aggregator)
	defer collector.Close()

	checker := health.NewChecker(2 * time.Second)
	checker.Register("index", indexCheck(idx))
	if remote != nil {
		checker.Register("redis", remote.check)
	}

	h := handler.New(a.executor(idx), queryCache, collector, a.metrics)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.StatsHandler(aggregator))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout())(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		stop := make(chan struct{})
		defer close(stop)
		go limiter.Run(stop)
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	}
	chain = middleware.Metrics(a.metrics)(chain)
	chain = middleware.RequestID(chain)

	api := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := map[string]*http.Server{"api": api}
	if cfg.Metrics.Enabled {
		servers["metrics"] = metrics.NewServer(cfg.Metrics.Port, a.registry)
	}
	return serveUntilDone(ctx, servers, cfg.Server.ShutdownTimeout)
}

// serveUntilDone runs every server until ctx ends or one of them fails, then
// shuts all of them down within timeout.
func serveUntilDone(ctx context.Context, servers map[string]*http.Server, timeout time.Duration) error {
	log := logger.WithComponent("server")
	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range servers {
		g.Go(func() error {
			log.Info("listening", "server", name, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for name, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				log.Error("shutdown failed", "server", name, "error", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("search service stopped")
	return nil
}

// remoteCache is the Redis side of the query cache, kept so the server can
// close the client and report it in readiness.
type remoteCache struct {
	client *pkgredis.Client
	store  *cache.BreakerStore
}

func (rc *remoteCache) check(ctx context.Context) health.Result {
	if state := rc.store.State(); state != resilience.StateClosed {
		return health.Result{Status: health.StatusDegraded, Message: "circuit " + state.String()}
	}
	if err := rc.client.Ping(ctx); err != nil {
		return health.Result{Status: health.StatusDegraded, Message: err.Error()}
	}
	return health.Result{Status: health.StatusUp}
}

// newQueryCache builds the configured cache. Both results are nil for the
// none backend; remote is nil unless the backend is redis.
func newQueryCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*cache.QueryCache, *remoteCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheLRU:
		return cache.New(cache.NewLRUStore(cfg.Cache.Size, cfg.Cache.TTL), cfg.Cache.TTL, m), nil, nil
	case config.CacheRedis:
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis cache: %w", err)
		}
		logger.WithComponent("cache").Info("query cache on redis", "addr", client.Addr(), "ttl", cfg.Cache.TTL)
		breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			Failures:      cfg.Cache.BreakerFailures,
			Cooldown:      cfg.Cache.BreakerReset,
			OnStateChange: breakerGauge(m),
		})
		remote := &remoteCache{
			client: client,
			store:  cache.NewBreakerStore(cache.NewRedisStore(client, ""), breaker),
		}
		return cache.New(remote.store, cfg.Cache.TTL, m), remote, nil
	default:
		return nil, nil, nil
	}
}

// breakerGauge mirrors breaker transitions into m.BreakerState.
func breakerGauge(m *metrics.Metrics) func(string, resilience.State, resilience.State) {
	if m == nil {
		return nil
	}
	return func(name string, _, to resilience.State) {
		m.BreakerState.WithLabelValues(name).Set(float64(to))
	}
}

func indexCheck(idx *indexer.Index) health.Check {
	return func(context.Context) health.Result {
		if idx.Empty() {
			return health.Result{Status: health.StatusDown, Message: "index has no words"}
		}
		return health.Result{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d words from %d lines", idx.Stats.Words, idx.Stats.Lines),
		}
	}
}
