package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
)

const maxIdleKeys = 10000

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket for a single process. It backs
// local runs without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter returns a no-op limiter when limit or window is not positive.
func NewMemoryLimiter(limit int, window time.Duration) interfaces.RateLimiter {
	if limit <= 0 || window <= 0 {
		return NewNoopLimiter()
	}
	return newMemoryLimiter(limit, window)
}

func newMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (*dto.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= maxIdleKeys {
			l.prune(now)
		}
		every := l.window / time.Duration(l.limit)
		entry = &memoryEntry{limiter: rate.NewLimiter(rate.Every(every), l.limit)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &dto.RateLimitDecision{Allowed: false, RetryAfter: roundUpSecond(l.window)}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &dto.RateLimitDecision{Allowed: false, RetryAfter: roundUpSecond(delay)}, nil
	}
	return &dto.RateLimitDecision{Allowed: true, Remaining: int(entry.limiter.TokensAt(now))}, nil
}

// drop keys idle for a full window; their buckets are full again anyway
func (l *MemoryLimiter) prune(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.entries, key)
		}
	}
}

type noopLimiter struct{}

// NewNoopLimiter allows everything; used when rate limiting is disabled.
func NewNoopLimiter() interfaces.RateLimiter {
	return noopLimiter{}
}

func (noopLimiter) Allow(context.Context, string) (*dto.RateLimitDecision, error) {
	return &dto.RateLimitDecision{Allowed: true}, nil
}
