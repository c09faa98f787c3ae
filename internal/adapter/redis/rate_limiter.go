package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed window counter per key.
type RateLimiter struct {
	client Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one request for key and reports whether it fits the window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	key = "rate_limit:" + key

	current, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}
	if current == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set window: %w", err)
		}
	}
	return current <= int64(l.limit), nil
}
