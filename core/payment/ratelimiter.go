package payment

import (
	"context"
	"fmt"
	"time"

	sharedredis "github.com/ledgerwire/shared/redis"
)

// RedisRateLimiter is the production RateLimiter: atomic increment-with-
// expire per key, the same Incr+Expire pair shared/redis already wraps a
// client for.
type RedisRateLimiter struct {
	client *sharedredis.Client
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(client *sharedredis.Client, limit int64, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, action, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", action, key)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, r.window)
	}
	return count <= r.limit, nil
}
