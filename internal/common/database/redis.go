// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"wifidog-auth/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client together with the key namespace it owns.
type RedisClient struct {
	Client    redis.UniversalClient
	KeyPrefix string
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb, KeyPrefix: cfg.KeyPrefix}, nil
}

// NewRedisFromClient wraps an existing client (miniredis, redismock).
func NewRedisFromClient(client redis.UniversalClient, keyPrefix string) *RedisClient {
	return &RedisClient{Client: client, KeyPrefix: keyPrefix}
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

// Key joins parts under the configured prefix: Key("session", id) -> "wifidog:session:<id>".
func (c *RedisClient) Key(parts ...string) string {
	key := c.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}
