// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers file, .env and environment values over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" log records.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// StoreBackend selects the player store: memory, mongo, postgres or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// MongoHost is a bare host as deployed originally (port 27017 implied).
	MongoHost string `koanf:"mongo_host"`
	// MongoURI takes precedence over MongoHost when set.
	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`

	// PostgresDSN is a pgx connection string.
	PostgresDSN string `koanf:"postgres_dsn"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// ShardCount configures the number of shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// APISecret signs /api/update bodies (string form).
	APISecret string `koanf:"api_secret"`

	// PasswdSecret signs /api/passwd bodies (raw bytes).
	PasswdSecret string `koanf:"passwd_secret"`

	// RateLimitBackend selects memory or redis counters.
	RateLimitBackend  string        `koanf:"rate_limit_backend"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// AllowedOrigins is the CORS allow list; "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// TrustedProxies lists proxy addresses or CIDR ranges whose
	// X-Real-IP/X-Forwarded-For headers identify the client. Empty means
	// clients are keyed on their socket address only.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// MetricsLabels are constant labels attached to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// WebhookQueueSize bounds the in-memory webhook queue.
	WebhookQueueSize int `koanf:"webhook_queue_size"`

	// WebhookWorkerCount sets the number of webhook workers.
	WebhookWorkerCount int `koanf:"webhook_worker_count"`

	// DedupeSize sets how many webhook delivery ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":5000",
		StoreBackend:       "memory",
		MongoDatabase:      "lounge",
		MongoCollection:    "players",
		SQLitePath:         "lounge.db",
		ShardCount:         16,
		RateLimitBackend:   "memory",
		RateLimitRequests:  5,
		RateLimitWindow:    time.Minute,
		AllowedOrigins:     []string{"*"},
		TrustedProxies:     []string{},
		MetricsNamespace:   "lounge",
		MetricsLabels:      map[string]string{},
		MaxBodyBytes:       1 << 20,
		WebhookQueueSize:   1024,
		WebhookWorkerCount: 2,
		DedupeSize:         10_000,
		ShutdownTimeout:    10 * time.Second,
	}
}
