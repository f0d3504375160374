// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a .env file, a YAML file and REHEARSAL_* env vars on top.
// - Errors returned from Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the availability backend: memory or postgres.
	Store string `koanf:"store"`

	PostgresDSN                string `koanf:"postgres_dsn"`
	PostgresMaxOpenConns       int    `koanf:"postgres_max_open_conns"`
	PostgresMaxIdleConns       int    `koanf:"postgres_max_idle_conns"`
	PostgresConnMaxLifetimeMin int    `koanf:"postgres_conn_max_lifetime_min"`
	PostgresAutoMigrate        bool   `koanf:"postgres_auto_migrate"`

	// RedisAddr enables the result cache when set.
	RedisAddr       string `koanf:"redis_addr"`
	RedisPassword   string `koanf:"redis_password"`
	RedisDB         int    `koanf:"redis_db"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// RefreshQueueSize bounds the in-memory refresh queue.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// StrictIntervals rejects zero-length availability records.
	StrictIntervals bool `koanf:"strict_intervals"`

	// JWTSecret verifies HS256 bearer tokens. Empty trusts the X-User-ID header.
	JWTSecret string `koanf:"jwt_secret"`

	// TrustUserHeader allows an empty JWTSecret with the postgres store.
	TrustUserHeader bool `koanf:"trust_user_header"`

	// Metrics naming. Labels are attached to every series and are only
	// settable from the YAML file.
	MetricsEnabled         bool              `koanf:"metrics_enabled"`
	MetricsNamespace       string            `koanf:"metrics_namespace"`
	MetricsSubsystem       string            `koanf:"metrics_subsystem"`
	MetricsPrefix          string            `koanf:"metrics_prefix"`
	MetricsLabels          map[string]string `koanf:"metrics_labels"`
	MetricsIntervalSeconds int               `koanf:"metrics_interval_seconds"`

	// MQTTBroker enables ranking notifications when set, e.g. "tcp://localhost:1883".
	MQTTBroker      string `koanf:"mqtt_broker"`
	MQTTClientID    string `koanf:"mqtt_client_id"`
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		Store:                      StoreMemory,
		PostgresMaxOpenConns:       10,
		PostgresMaxIdleConns:       5,
		PostgresConnMaxLifetimeMin: 30,
		PostgresAutoMigrate:        true,
		CacheTTLSeconds:            300,
		RefreshQueueSize:           10_000,
		WorkerCount:                runtime.NumCPU(),
		MetricsEnabled:             true,
		MetricsNamespace:           "rehearsal",
		MetricsSubsystem:           "planner",
		MetricsIntervalSeconds:     10,
		MQTTClientID:               "rehearsal-planner",
		MQTTTopicPrefix:            "rehearsal",
	}
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// MetricsInterval returns how often gauges are sampled.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalSeconds) * time.Second
}

// PostgresConnMaxLifetime returns the pooled connection lifetime.
func (c *Config) PostgresConnMaxLifetime() time.Duration {
	return time.Duration(c.PostgresConnMaxLifetimeMin) * time.Minute
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: store must be memory or postgres, got %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required when store is postgres", ErrInvalidConfig)
	case c.Store == StorePostgres && c.JWTSecret == "" && !c.TrustUserHeader:
		return fmt.Errorf("%w: jwt_secret is required when store is postgres unless trust_user_header is set", ErrInvalidConfig)
	case c.RefreshQueueSize <= 0:
		return fmt.Errorf("%w: refresh_queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.CacheTTLSeconds < 0:
		return fmt.Errorf("%w: cache_ttl_seconds must not be negative", ErrInvalidConfig)
	case c.MetricsIntervalSeconds <= 0:
		return fmt.Errorf("%w: metrics_interval_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}
