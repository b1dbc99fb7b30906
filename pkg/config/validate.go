package config

import (
	"errors"
	"fmt"
)

// Validate reports every setting the service cannot run with, joined into
// one error.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	s := c.Search
	check(s.DefaultLimit > 0, "search.defaultLimit must be positive, got %d", s.DefaultLimit)
	check(s.MaxResults >= s.DefaultLimit,
		"search.maxResults (%d) must be >= search.defaultLimit (%d)", s.MaxResults, s.DefaultLimit)
	check(s.FuzzyLimit > 0, "search.fuzzyLimit must be positive, got %d", s.FuzzyLimit)
	check(s.MinSimilarity >= 0 && s.MinSimilarity <= 100,
		"search.minSimilarity must be within [0,100], got %v", s.MinSimilarity)

	check(c.Corpus.Workers > 0, "corpus.workers must be positive, got %d", c.Corpus.Workers)

	switch c.Cache.Backend {
	case CacheNone, CacheRedis:
	case CacheLRU:
		check(c.Cache.Size > 0, "cache.size must be positive for the lru backend")
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want %s, %s or %s)",
			c.Cache.Backend, CacheNone, CacheLRU, CacheRedis))
	}

	check(c.Server.HandlerTimeout >= 0, "server.handlerTimeout must not be negative, got %v", c.Server.HandlerTimeout)
	if c.Server.HandlerTimeout > 0 && c.Server.WriteTimeout > 0 {
		check(c.Server.HandlerTimeout < c.Server.WriteTimeout,
			"server.handlerTimeout (%v) must be shorter than server.writeTimeout (%v)",
			c.Server.HandlerTimeout, c.Server.WriteTimeout)
	}
	check(c.Server.RateLimit >= 0, "server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	if c.Server.RateLimit > 0 {
		check(c.Server.RateWindow > 0, "server.rateWindow must be positive when rate limiting is enabled")
	}

	if c.Kafka.Enabled {
		check(len(c.Kafka.Brokers) > 0, "kafka.brokers must not be empty when kafka is enabled")
		check(c.Kafka.Topic != "", "kafka.topic must be set when kafka is enabled")
	}
	if c.Postgres.Enabled {
		check(c.Postgres.Table != "", "postgres.table must be set when postgres is enabled")
	}

	return errors.Join(errs...)
}
