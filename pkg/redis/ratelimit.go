package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter on Redis. One INCR plus a
// window-sized EXPIRE per hit; every gateway instance shares the same
// counters, so the limit holds across the fleet.
type RateLimiter struct {
	adapter RedisAdapter
	prefix  string
	window  time.Duration
	max     int64
}

type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func NewRateLimiter(adapter RedisAdapter, prefix string, window time.Duration, max int64) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RateLimiter{
		adapter: adapter,
		prefix:  prefix,
		window:  window,
		max:     max,
	}
}

// Allow counts one hit against the key's current window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	now := time.Now()
	windowStart := now.Truncate(l.window)
	redisKey := l.prefix + key + ":" + windowStart.UTC().Format("20060102150405")

	client := l.adapter.Client()
	count, err := client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}
	if count == 1 {
		// First hit of the window owns the expiry. A second beyond the
		// window guards against a counter surviving into the next one.
		if err := client.Expire(ctx, redisKey, l.window+time.Second).Err(); err != nil {
			return nil, err
		}
	}

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}

	if count > l.max {
		return &RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: windowStart.Add(l.window).Sub(now),
		}, nil
	}
	return &RateLimitResult{Allowed: true, Remaining: remaining}, nil
}
