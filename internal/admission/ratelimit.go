package admission

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements RateLimiter on top of Redis SET...NX, the
// put-if-absent primitive described in SPEC_FULL.md §4.3 step 1.
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter wraps a Redis client as a RateLimiter.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Allow implements RateLimiter.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}
