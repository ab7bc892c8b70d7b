package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds how often a firm may trigger a manual generation run.
// A runaway "Generate Now" button must not turn into a scan storm.
type RateLimiter interface {
	Allow(ctx context.Context, firmID string) (bool, error)
	Limit() int
}

type slidingWindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter returns a Redis-backed sliding-window rate limiter allowing
// limit triggers per window for each firm.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &slidingWindowLimiter{client: client, limit: limit, window: window}
}

func (r *slidingWindowLimiter) Limit() int { return r.limit }

// Allow records the trigger and reports whether it is within the window
// budget. A sorted set per firm holds the nanosecond timestamps of recent
// triggers; entries older than the window are evicted on each call.
func (r *slidingWindowLimiter) Allow(ctx context.Context, firmID string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	key := "generate:ratelimit:" + firmID

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10)})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline for firm %q: %w", firmID, err)
	}
	return countCmd.Val() <= int64(r.limit), nil
}
