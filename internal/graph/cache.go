package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "trapper/pkg/domain"

	platformredis "trapper/internal/platform/redis"
)

const canonicalKeyPrefix = "trapper:canonical:"

// RedisCanonicalCache caches merge-chain resolutions in Redis. Cache misses
// and Redis failures both fall through to a graph walk, so the cache is
// strictly an optimization.
type RedisCanonicalCache struct {
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCanonicalCache wraps a Redis client. A zero ttl means entries do
// not expire and rely on invalidation at merge time.
func NewRedisCanonicalCache(client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *RedisCanonicalCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCanonicalCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCanonicalCache) Get(ctx context.Context, entityID id.EntityID) (id.EntityID, bool) {
	raw, err := c.client.Get(ctx, canonicalKeyPrefix+entityID.String()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("canonical cache read failed", "entity_id", entityID.String(), "error", err)
		}
		return id.EntityID{}, false
	}
	canonical, err := id.ParseEntityID(raw)
	if err != nil {
		c.logger.Warn("dropping malformed canonical cache entry", "entity_id", entityID.String())
		c.Invalidate(ctx, entityID)
		return id.EntityID{}, false
	}
	return canonical, true
}

func (c *RedisCanonicalCache) Put(ctx context.Context, entityID, canonical id.EntityID) {
	err := c.client.Set(ctx, canonicalKeyPrefix+entityID.String(), canonical.String(), c.ttl).Err()
	if err != nil {
		c.logger.Warn("canonical cache write failed", "entity_id", entityID.String(), "error", err)
	}
}

func (c *RedisCanonicalCache) Invalidate(ctx context.Context, entityID id.EntityID) {
	if err := c.client.Del(ctx, canonicalKeyPrefix+entityID.String()).Err(); err != nil {
		c.logger.Warn("canonical cache invalidation failed", "entity_id", entityID.String(), "error", err)
	}
}
