package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCounter implements Counter on Redis INCR with an expiry set when the
// key is first created, giving fixed-window semantics shared across gateway
// replicas.
type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a Counter backed by the given Redis client.
func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

// Incr implements Counter.
func (c *redisCounter) Incr(ctx context.Context, key string, span time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, span).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Close implements Counter.
func (c *redisCounter) Close() error {
	return c.client.Close()
}
