package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitPrefix = "rate:trader:"

type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	client Counter
	limit  int64
	window time.Duration
	scope  string
}

func NewRateLimiter(client Counter, scope string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		scope:  scope,
	}
}

func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	const op = "RateLimiter.Allow"

	redisKey := rateLimitPrefix + r.scope + ":" + key

	count, err := r.client.Incr(ctx, redisKey)
	if err != nil {
		return false, fmt.Errorf("%s: incr: %w", op, err)
	}

	// the window starts with the first hit
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window); err != nil {
			return false, fmt.Errorf("%s: expire: %w", op, err)
		}
	}

	return count <= r.limit, nil
}
