package config

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "LOUNGE_"
	envConfigFile = "LOUNGE_CONFIG"
	envDotEnvFile = "LOUNGE_ENV_FILE"
	defaultDotEnv = ".env"
)

// legacyEnv maps the variable names of the original deployment to keys.
var legacyEnv = map[string]string{
	"MONGODB_HOST": "mongo_host",
	"API_SECRET":   "api_secret",
	"PASS_SECRET":  "passwd_secret",
}

// listKeys are split on commas when they come from the environment.
var listKeys = []string{"allowed_origins", "trusted_proxies"}

// mapKeys are parsed as comma separated name=value pairs from the environment.
var mapKeys = []string{"metrics_labels"}

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if LOUNGE_CONFIG is set
//  3. legacy env names (MONGODB_HOST, API_SECRET, PASS_SECRET)
//  4. env (prefix LOUNGE_)
//
// Before the environment is read, a .env file is loaded into it without
// overriding variables that are already set: LOUNGE_ENV_FILE when given
// (it must exist), else ./.env when present.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	legacy := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		return legacyEnv[key], value
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("%w: legacy env: %w", ErrLoadConfig, err)
	}

	// LOUNGE_RATE_LIMIT_WINDOW -> rate_limit_window (flat keys).
	prefixed := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == "config" || key == "env_file" {
			return "", nil
		}
		if slices.Contains(listKeys, key) {
			return key, splitList(value)
		}
		if slices.Contains(mapKeys, key) {
			return key, splitPairs(value)
		}
		return key, value
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	if path := os.Getenv(envDotEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
		return nil
	}
	if _, err := os.Stat(defaultDotEnv); err == nil {
		if err := godotenv.Load(defaultDotEnv); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, defaultDotEnv, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitPairs(s string) map[string]any {
	out := map[string]any{}
	for _, part := range splitList(s) {
		name, value, _ := strings.Cut(part, "=")
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// validMetricName reports whether s is usable as a Prometheus namespace or
// label name.
func validMetricName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// Validate reports every problem with c, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		invalid("addr must not be empty")
	}
	if c.APISecret == "" {
		invalid("api_secret (API_SECRET) must not be empty")
	}
	if c.PasswdSecret == "" {
		invalid("passwd_secret (PASS_SECRET) must not be empty")
	}

	switch c.StoreBackend {
	case "memory":
	case "mongo":
		if c.MongoURI == "" && c.MongoHost == "" {
			invalid("mongo backend needs mongo_uri or mongo_host (MONGODB_HOST)")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			invalid("postgres backend needs postgres_dsn")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			invalid("sqlite backend needs sqlite_path")
		}
	default:
		invalid("unknown store_backend %q", c.StoreBackend)
	}

	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			invalid("redis rate limiting needs redis_addr")
		}
	default:
		invalid("unknown rate_limit_backend %q", c.RateLimitBackend)
	}
	if c.RateLimitRequests <= 0 {
		invalid("rate_limit_requests must be positive")
	}
	if c.RateLimitWindow <= 0 {
		invalid("rate_limit_window must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		invalid("max_body_bytes must be positive")
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(strings.TrimSpace(p)) {
			invalid("trusted_proxies entry %q is not an address or CIDR range", p)
		}
	}
	if !validMetricName(c.MetricsNamespace) {
		invalid("metrics_namespace %q is not a valid metric name", c.MetricsNamespace)
	}
	for name := range c.MetricsLabels {
		if !validMetricName(name) || strings.HasPrefix(name, "__") {
			invalid("metrics_labels name %q is not a valid label name", name)
		}
	}

	return errors.Join(errs...)
}
