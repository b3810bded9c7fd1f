package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/munuiq/insights-engine/pkg/config"
)

// NewRedisClient creates a Redis client for the response cache. Returns
// nil if Redis is not configured (host is empty), in which case the cache
// falls back to process memory.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return client, nil
}
