// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"taas-es-processor/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client shared by the bus and the retry queue.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client. Reads must outlive the bus block
// timeout, so ReadTimeout is derived from it.
func NewRedis(cfg config.RedisConfig, blockTimeout time.Duration) *RedisClient {
	readTimeout := 3 * time.Second
	if blockTimeout+time.Second > readTimeout {
		readTimeout = blockTimeout + time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  readTimeout,
		WriteTimeout: 3 * time.Second,
		// one blocking stream reader per topic, plus the queue and publisher
		PoolSize:     40,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
