// Package ratelimit limits API requests per client key (the source address).
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Backend names, as used by the rate_limit_backend setting.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	defaultRequests = 5
	defaultWindow   = time.Minute
)

// ErrInvalidPolicy is returned for non-positive request counts or windows.
var ErrInvalidPolicy = errors.New("rate limit requests and window must be positive")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait when not allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy is N requests per window.
type Policy struct {
	Requests int
	Window   time.Duration
}

// DefaultPolicy is 5 requests per minute.
func DefaultPolicy() Policy {
	return Policy{Requests: defaultRequests, Window: defaultWindow}
}

func (p Policy) validate() error {
	if p.Requests <= 0 || p.Window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}
