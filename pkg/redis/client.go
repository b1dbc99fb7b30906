// Package redis is the thin go-redis/v9 layer under the remote query cache:
// byte values with a TTL, plus removal of every key under a prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/resilience"
)

// scanBatch is the COUNT hint per SCAN page and the number of keys removed
// per UNLINK.
const scanBatch = 256

type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient dials cfg.Addr and does not return until a PING succeeds or the
// retry budget is spent.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	c := &Client{rdb: rdb, addr: cfg.Addr}
	ping := func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.Ping(pctx)
	}
	if err := resilience.Retry(ctx, "redis-ping", resilience.Backoff{}, ping); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// Get returns the value at key. A missing key is (nil, false, nil).
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix unlinks every key starting with prefix, one SCAN page at a
// time, and returns how many were removed. Keys written during the scan may
// survive.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		removed int
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			removed += int(n)
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys under %s: %w", len(keys), prefix, err)
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Close() error {
	return c.rdb.Close()
}
