package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envPrefix starts every environment variable Load reads.
const envPrefix = "LS_"

// envVar binds one environment variable to a setter; set returns an error
// for a value it cannot parse.
type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"CORPUS_DIR", str(func(c *Config) *string { return &c.Corpus.Dir })},
	{"CORPUS_EXTENSIONS", list(func(c *Config) *[]string { return &c.Corpus.Extensions })},
	{"CORPUS_WORKERS", integer(func(c *Config) *int { return &c.Corpus.Workers })},

	{"SEARCH_DEFAULT_LIMIT", integer(func(c *Config) *int { return &c.Search.DefaultLimit })},
	{"SEARCH_MAX_RESULTS", integer(func(c *Config) *int { return &c.Search.MaxResults })},

	{"SERVER_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"SERVER_HANDLER_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Server.HandlerTimeout })},
	{"SERVER_RATE_LIMIT", integer(func(c *Config) *int { return &c.Server.RateLimit })},
	{"SERVER_CORS_ORIGINS", list(func(c *Config) *[]string { return &c.Server.CORSOrigins })},

	{"POSTGRES_ENABLED", boolean(func(c *Config) *bool { return &c.Postgres.Enabled })},
	{"POSTGRES_HOST", str(func(c *Config) *string { return &c.Postgres.Host })},
	{"POSTGRES_PORT", integer(func(c *Config) *int { return &c.Postgres.Port })},
	{"POSTGRES_DATABASE", str(func(c *Config) *string { return &c.Postgres.Database })},
	{"POSTGRES_USER", str(func(c *Config) *string { return &c.Postgres.User })},
	{"POSTGRES_PASSWORD", str(func(c *Config) *string { return &c.Postgres.Password })},
	{"POSTGRES_TABLE", str(func(c *Config) *string { return &c.Postgres.Table })},

	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},

	{"KAFKA_ENABLED", boolean(func(c *Config) *bool { return &c.Kafka.Enabled })},
	{"KAFKA_BROKERS", list(func(c *Config) *[]string { return &c.Kafka.Brokers })},
	{"KAFKA_TOPIC", str(func(c *Config) *string { return &c.Kafka.Topic })},

	{"LOGGING_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOGGING_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},

	{"METRICS_ENABLED", boolean(func(c *Config) *bool { return &c.Metrics.Enabled })},
	{"METRICS_PORT", integer(func(c *Config) *int { return &c.Metrics.Port })},
}

// applyEnv overrides cfg from every non-empty LS_* variable lookup finds.
// All malformed values are reported together.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := lookup(envPrefix + ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s=%q: %w", envPrefix, ev.name, v, err))
		}
	}
	return errors.Join(errs...)
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func list(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*field(c) = out
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("not an integer")
		}
		*field(c) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("not a boolean")
		}
		*field(c) = b
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.New("not a duration")
		}
		*field(c) = d
		return nil
	}
}
