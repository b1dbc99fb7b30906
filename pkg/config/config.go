// Package config is the single source of runtime settings: built-in
// defaults, then an optional YAML file, then LS_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Postgres PostgresConfig `yaml:"postgres"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig says where line files live and how their bytes are decoded.
// Encodings are tried in order; the first that decodes a whole file wins.
type CorpusConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Encodings  []string `yaml:"encodings"`
	Workers    int      `yaml:"workers"`
}

// PostgresConfig enables the table-backed line source and the load command.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	Table           string        `yaml:"table"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN renders the settings as lib/pq key=value pairs. Values containing
// spaces or quotes are single-quoted.
func (p PostgresConfig) DSN() string {
	pairs := []struct{ k, v string }{
		{"host", p.Host},
		{"port", fmt.Sprint(p.Port)},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.Database},
		{"sslmode", p.SSLMode},
	}
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv.k)
		b.WriteByte('=')
		b.WriteString(dsnValue(kv.v))
	}
	return b.String()
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
	return "'" + v + "'"
}

// SearchConfig bounds result counts and the fuzzy fallback. MinSimilarity
// (0-100) drops fuzzy candidates scoring below it.
type SearchConfig struct {
	DefaultLimit  int     `yaml:"defaultLimit"`
	MaxResults    int     `yaml:"maxResults"`
	FuzzyLimit    int     `yaml:"fuzzyLimit"`
	MinSimilarity float64 `yaml:"minSimilarity"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// HandlerTimeout bounds one API request. It must leave room under
	// WriteTimeout to write the timeout reply; zero derives it from
	// WriteTimeout.
	HandlerTimeout time.Duration `yaml:"handlerTimeout"`

	// RateLimit is the number of requests one client may make per
	// RateWindow. Zero disables limiting.
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`

	// CORSOrigins lists browser origins allowed to call the API; "*" allows
	// any. Empty disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// RequestTimeout is the budget the timeout middleware gives a handler:
// HandlerTimeout when set, otherwise WriteTimeout less a tenth (at least a
// second) so the 504 reply still fits before the connection deadline. Zero
// disables the middleware.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.HandlerTimeout > 0 || s.WriteTimeout <= 0 {
		return s.HandlerTimeout
	}
	if d := s.WriteTimeout - max(time.Second, s.WriteTimeout/10); d > 0 {
		return d
	}
	return s.WriteTimeout / 2
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// CacheConfig picks where query results are memoised. Size applies to lru
// only.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`

	// Consecutive store failures that open the breaker, and how long it
	// stays open. Only the redis backend goes through the breaker.
	BreakerFailures int           `yaml:"breakerFailures"`
	BreakerReset    time.Duration `yaml:"breakerReset"`
}

// Cache backends.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// KafkaConfig is where search analytics events are published, if anywhere.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LoggingConfig: Level is any slog level name, Format is text or json.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load builds the configuration from defaults, the YAML file at path (if
// any) and the environment, then validates it. Unknown YAML keys are errors.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default is the built-in configuration, ignoring files and the environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:        "Data",
			Extensions: []string{".txt"},
			Encodings:  []string{"utf-8", "windows-1252"},
			Workers:    4,
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "linesearch",
			User:            "linesearch",
			Password:        "localdev",
			SSLMode:         "disable",
			Table:           "corpus_lines",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Search: SearchConfig{
			DefaultLimit:  5,
			MaxResults:    50,
			FuzzyLimit:    3,
			MinSimilarity: 0,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			HandlerTimeout:  25 * time.Second,
			RateWindow:      time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Backend: CacheLRU,
			Size:    1024,
			TTL:     60 * time.Second,

			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "search-analytics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}
