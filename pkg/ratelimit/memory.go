package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token-bucket limiter per key. Idle keys expire from the
// cache once their bucket would have refilled anyway.
type MemoryLimiter struct {
	interval time.Duration
	limiters *cache.Cache
	mu       sync.Mutex
	now      func() time.Time
}

func NewMemoryLimiter(interval time.Duration) *MemoryLimiter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &MemoryLimiter{
		interval: interval,
		limiters: cache.New(2*interval, 4*interval),
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now

	return l
}

func (l *MemoryLimiter) TryAcquire(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if cached, found := l.limiters.Get(key); found {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
	}

	reservation := limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)

		return Decision{RetryAfter: delay}, nil
	}

	l.limiters.Set(key, limiter, 2*l.interval)

	return Decision{Allowed: true}, nil
}
