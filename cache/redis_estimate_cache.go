package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const namespace = "loyaltycast:"

// RedisEstimateCache stores segment estimates in Redis under a namespaced key
type RedisEstimateCache struct {
	client redis.Cmdable
}

// NewRedisEstimateCache creates a cache backed by client
func NewRedisEstimateCache(client redis.Cmdable) *RedisEstimateCache {
	return &RedisEstimateCache{client: client}
}

// Connect parses a redis:// URL and pings the server
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.WithFields(log.Fields{
		"addr": opts.Addr,
		"db":   opts.DB,
	}).Info("Connected to Redis")
	return client, nil
}

// Get returns the cached count and whether it was present
func (c *RedisEstimateCache) Get(ctx context.Context, key string) (int, bool, error) {
	raw, err := c.client.Get(ctx, namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt estimate under %s: %w", key, err)
	}
	return count, true, nil
}

// Set stores count under key for ttl
func (c *RedisEstimateCache) Set(ctx context.Context, key string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, namespace+key, count, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
