package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares the cooldown across processes with SET NX PX.
type RedisLimiter struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
}

func NewRedisLimiter(client redis.UniversalClient, interval time.Duration) *RedisLimiter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &RedisLimiter{client: client, interval: interval, prefix: "tripwire:ratelimit:"}
}

func (l *RedisLimiter) TryAcquire(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + key

	acquired, err := l.client.SetNX(ctx, redisKey, time.Now().UTC().Format(time.RFC3339Nano), l.interval).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to acquire rate limit for %s: %w", key, err)
	}

	if acquired {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read rate limit ttl for %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = l.interval
	}

	return Decision{RetryAfter: ttl}, nil
}
