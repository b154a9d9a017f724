package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every instance through Redis.
// Each window is a key: INCR ratelimit:{key}, EXPIRE on first hit.
type RateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, max: int64(max), window: window}
}

// Allow counts one request for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.key(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	// A missing TTL means this request opened the window (or a previous EXPIRE was lost).
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= l.max, nil
}

func (l *RateLimiter) key(key string) string {
	return "ratelimit:" + key
}
