// Package cache memoises search results per (normalised words, limit). The
// bytes live in a Store; concurrent misses on one key run the search once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

const keyPrefix = "linesearch:q:"

// Outcome says how a lookup was answered.
type Outcome string

const (
	Hit    Outcome = "hit"
	Miss   Outcome = "miss"
	Shared Outcome = "shared" // one search answered several concurrent callers
	Bypass Outcome = "bypass" // no cache configured
)

// Stats is a snapshot of the lookup counters.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Lookups  int64   `json:"lookups"`
	HitRatio float64 `json:"hit_ratio"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	flight  singleflight.Group
	metrics *metrics.Metrics
	log     *slog.Logger

	hits, misses atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		log:     slog.Default().With("component", "query-cache"),
	}
}

// Lookup answers (query, limit) from the store or by calling search. Callers
// arriving while a search for the same key is running wait for it instead of
// starting their own; the shared search is not cancelled when one waiter
// gives up. Errors are returned to every waiter and never stored.
func (c *QueryCache) Lookup(
	ctx context.Context,
	query string,
	limit int,
	search func(context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, Outcome, error) {
	key := Key(query, limit)
	if res, ok := c.load(ctx, key); ok {
		c.count(Hit)
		res.Query = query
		return res, Hit, nil
	}
	c.count(Miss)

	ch := c.flight.DoChan(key, func() (any, error) {
		res, err := search(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.save(context.WithoutCancel(ctx), key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, Miss, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, Miss, r.Err
		}
		res := *r.Val.(*executor.SearchResult)
		res.Query = query
		if r.Shared {
			return &res, Shared, nil
		}
		return &res, Miss, nil
	}
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	n, err := c.store.Flush(ctx)
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.log.Info("query cache invalidated", "entries", n)
	return nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	s.Lookups = s.Hits + s.Misses
	if s.Lookups > 0 {
		s.HitRatio = float64(s.Hits) / float64(s.Lookups)
	}
	return s
}

// load treats an unreadable entry like a missing one.
func (c *QueryCache) load(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res executor.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.log.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (c *QueryCache) save(ctx context.Context, key string, res *executor.SearchResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.log.Error("encoding cache entry", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *QueryCache) count(o Outcome) {
	if o == Hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.metrics == nil {
		return
	}
	if o == Hit {
		c.metrics.CacheHitsTotal.Inc()
	} else {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key is the store key for a query: a digest of its lower-cased words and the
// limit. Case and spacing differences map to the same key; word order does
// not.
func Key(query string, limit int) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(tokenizer.Tokenize(query), "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(limit)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
