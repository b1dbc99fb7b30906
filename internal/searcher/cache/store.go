package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pkgredis "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// Store holds encoded search results by key. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context) (int, error)
}

// LRUStore is an in-process Store bounded by entry count. Entries also expire
// after the TTL given to NewLRUStore; per-call TTLs are ignored.
type LRUStore struct {
	lru *expirable.LRU[string, []byte]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *LRUStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.lru.Add(key, value)
	return nil
}

func (s *LRUStore) Flush(_ context.Context) (int, error) {
	n := s.lru.Len()
	s.lru.Purge()
	return n, nil
}

func (s *LRUStore) Len() int {
	return s.lru.Len()
}

// RedisStore keeps entries in Redis under a shared prefix so they can be
// flushed without touching other keys.
type RedisStore struct {
	client *pkgredis.Client
	prefix string
}

func NewRedisStore(client *pkgredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = keyPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.client.Get(ctx, s.prefix+key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, ttl)
}

func (s *RedisStore) Flush(ctx context.Context) (int, error) {
	return s.client.DeletePrefix(ctx, s.prefix)
}

// BreakerStore routes calls to a remote Store through a circuit breaker.
// While the breaker is open reads are misses and writes are dropped, so a
// dead cache costs searches nothing beyond the recomputation.
type BreakerStore struct {
	next    Store
	breaker *resilience.Breaker
}

func NewBreakerStore(next Store, breaker *resilience.Breaker) *BreakerStore {
	return &BreakerStore{next: next, breaker: breaker}
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data []byte
		ok   bool
	)
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, ok, err = s.next.Get(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, false, nil
	}
	return data, ok, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil
	}
	return err
}

// Flush reports an open breaker as an error; an invalidation that did not
// happen must not look like one that did.
func (s *BreakerStore) Flush(ctx context.Context) (int, error) {
	var n int
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.next.Flush(ctx)
		return err
	})
	return n, err
}

func (s *BreakerStore) State() resilience.State {
	return s.breaker.State()
}
