package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"time"

	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/loader"
	"rulebook-classifier/internal/rulebook"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through cache over another Source. Redis failures are
// logged and bypassed; only the underlying source can fail a Get.
type RedisCache struct {
	client redis.Cmdable
	next   Source
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, next Source, ttl time.Duration, prefix string, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "rulebook-cache"}),
	}
}

func (c *RedisCache) Key(organization string) string {
	return c.prefix + organization
}

func (c *RedisCache) Get(ctx context.Context, organization string) (*rulebook.Rulebook, error) {
	key := c.Key(organization)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		rb, decodeErr := loader.DecodeRulebook(bytes.NewReader(cached), loader.FormatJSON, "redis:"+key)
		if decodeErr == nil {
			return rb, nil
		}
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{
			"key":   key,
			"error": decodeErr.Error(),
		})
	case stderrors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.Warn("cache read failed, using source", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return c.next.Get(ctx, organization)
	}

	rb, err := c.next.Get(ctx, organization)
	if err != nil {
		return nil, err
	}

	document, err := loader.Marshal(loader.FormatJSON, rb)
	if err == nil {
		err = c.client.Set(ctx, key, document, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return rb, nil
}

func (c *RedisCache) Organizations(ctx context.Context) ([]string, error) {
	return c.next.Organizations(ctx)
}

// Invalidate drops the cached copy so the next Get reads the source.
func (c *RedisCache) Invalidate(ctx context.Context, organization string) error {
	return c.client.Del(ctx, c.Key(organization)).Err()
}
