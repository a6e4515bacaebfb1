package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"eligo/internal/catalog"
	id "eligo/pkg/domain"
)

const keyPrefix = "eligo:catalog:live:"

// RedisLiveness caches catalog liveness answers in Redis. Concurrent misses
// for the same product share one backing lookup. Redis failures fall back to
// the backing reader.
type RedisLiveness struct {
	client redis.Cmdable
	next   catalog.LivenessReader
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewRedisLiveness(client redis.Cmdable, next catalog.LivenessReader, ttl time.Duration, logger *slog.Logger) *RedisLiveness {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLiveness{client: client, next: next, ttl: ttl, logger: logger}
}

func (c *RedisLiveness) Exists(ctx context.Context, productID id.CatalogProductID) (bool, error) {
	key := keyPrefix + productID.String()

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		live, err := c.next.Exists(ctx, productID)
		if err != nil {
			return false, err
		}
		value := "0"
		if live {
			value = "1"
		}
		if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
		}
		return live, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Invalidate drops the cached answer for productID.
func (c *RedisLiveness) Invalidate(ctx context.Context, productID id.CatalogProductID) error {
	return c.client.Del(ctx, keyPrefix+productID.String()).Err()
}
