package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "lounge:ratelimit:"

// RedisLimiter is a fixed-window counter shared by every replica: each key
// gets one counter per window, created with INCR and expired with the window.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
	prefix string
	now    func() time.Time
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithKeyPrefix overrides the key prefix (default "lounge:ratelimit:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRedisLimiter returns a limiter counting in client.
func NewRedisLimiter(client redis.UniversalClient, policy Policy, opts ...RedisOption) (*RedisLimiter, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	l := &RedisLimiter{client: client, policy: policy, prefix: defaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow implements Limiter. Redis failures are returned, not treated as allowed.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	window := now.UnixNano() / int64(l.policy.Window)
	windowEnd := time.Unix(0, (window+1)*int64(l.policy.Window))
	redisKey := l.prefix + key + ":" + strconv.FormatInt(window, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	if incr.Val() > int64(l.policy.Requests) {
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}
