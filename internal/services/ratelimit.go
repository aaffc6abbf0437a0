package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
)

// Limiter enforces a fixed number of requests per source over a sliding window.
type Limiter interface {
	// Check reports whether one more request fits and how many remain before it is counted.
	Check(ctx context.Context, source, endpoint string) (allowed bool, remaining int, err error)
	// Record counts one request against the window.
	Record(ctx context.Context, source, endpoint string) error
}

// SQLLimiter keeps one row per counted request and sums the window on read.
type SQLLimiter struct {
	store  RateLimitStore
	max    int
	window time.Duration
	now    Clock
}

func NewSQLLimiter(store RateLimitStore, max int, window time.Duration) *SQLLimiter {
	return &SQLLimiter{store: store, max: max, window: window, now: systemClock}
}

// WithClock replaces the time source.
func (l *SQLLimiter) WithClock(now Clock) *SQLLimiter {
	l.now = now
	return l
}

func (l *SQLLimiter) Check(ctx context.Context, source, endpoint string) (bool, int, error) {
	used, err := l.store.SumSince(ctx, source, endpoint, l.now().Add(-l.window))
	if err != nil {
		return false, 0, fmt.Errorf("sum rate limit window: %w", err)
	}
	return remainingFor(l.max, used)
}

func (l *SQLLimiter) Record(ctx context.Context, source, endpoint string) error {
	return l.store.Insert(ctx, &models.RateLimit{
		IPAddress:    source,
		Endpoint:     endpoint,
		RequestCount: 1,
		WindowStart:  l.now(),
	})
}

// RedisLimiter keeps one sorted set per (endpoint, source), scored by request time in milliseconds.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	now    Clock
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window, now: systemClock}
}

func (l *RedisLimiter) WithClock(now Clock) *RedisLimiter {
	l.now = now
	return l
}

func rateLimitKey(endpoint, source string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, source)
}

func (l *RedisLimiter) Check(ctx context.Context, source, endpoint string) (bool, int, error) {
	since := l.now().Add(-l.window).UnixMilli()
	used, err := l.client.ZCount(ctx, rateLimitKey(endpoint, source), strconv.FormatInt(since, 10), "+inf").Result()
	if err != nil {
		return false, 0, fmt.Errorf("count rate limit window: %w", err)
	}
	return remainingFor(l.max, int(used))
}

func (l *RedisLimiter) Record(ctx context.Context, source, endpoint string) error {
	key := rateLimitKey(endpoint, source)
	now := l.now()
	cutoff := now.Add(-l.window).UnixMilli()

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit hit: %w", err)
	}
	return nil
}

func remainingFor(max, used int) (bool, int, error) {
	if used >= max {
		return false, 0, nil
	}
	return true, max - used, nil
}
