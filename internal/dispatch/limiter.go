package dispatch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"autodialer/pkg/utils"
)

// Limiter paces call placements. Wait blocks until one placement may proceed
// or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter is an in-process token bucket.
type RateLimiter struct {
	l *rate.Limiter
}

// NewRateLimiter allows perSecond placements per second with the given burst.
// perSecond <= 0 disables pacing.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{l: rate.NewLimiter(limit, burst)}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.l.Wait(ctx)
}

type allowFunc func(ctx context.Context) (bool, time.Duration, error)

// RedisLimiter is a sliding-log limiter shared by every process dialing from
// the same provider account. No trailing window of its length ever holds more
// than limit placements, including across what would be a fixed-window rollover.
type RedisLimiter struct {
	allow   allowFunc
	minWait time.Duration
}

// NewRedisLimiter allows limit placements per window across all processes using key.
func NewRedisLimiter(rdb *redis.Client, key string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		allow: func(ctx context.Context) (bool, time.Duration, error) {
			return utils.AllowRate(ctx, rdb, key, limit, window)
		},
		minWait: 10 * time.Millisecond,
	}
}

func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, retryAfter, err := r.allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if retryAfter < r.minWait {
			retryAfter = r.minWait
		}
		t := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
