package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/tracing"
)

// INCR the window counter, start the window on first hit, report count and remaining ttl
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`)

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter returns a no-op limiter when limit or window is not positive.
func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) interfaces.RateLimiter {
	if limit <= 0 || window <= 0 {
		return NewNoopLimiter()
	}
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*dto.RateLimitDecision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RedisLimiter.Allow")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("limiter.key", l.prefix+key)

	values, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		err = fmt.Errorf("rate limit script: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(values) != 2 {
		err = fmt.Errorf("rate limit script: unexpected reply %v", values)
		tracing.TraceErr(span, err)
		return nil, err
	}

	count, ttl := values[0], time.Duration(values[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return decide(count, l.limit, ttl), nil
}

func decide(count int64, limit int, ttl time.Duration) *dto.RateLimitDecision {
	if count > int64(limit) {
		return &dto.RateLimitDecision{Allowed: false, RetryAfter: roundUpSecond(ttl)}
	}
	return &dto.RateLimitDecision{Allowed: true, Remaining: limit - int(count)}
}

func roundUpSecond(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}
