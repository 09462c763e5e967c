// internal/common/database/redis.go
package database

import (
	"context"
	"time"

	"rulebook-classifier/internal/common/config"
	"rulebook-classifier/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the client used for the rulebook cache.
type RedisClient struct {
	Client    *redis.Client
	KeyPrefix string
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb, KeyPrefix: cfg.KeyPrefix}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.NewCacheOperationFailedError("ping", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
