package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ucsindex/engine/internal/domain"
)

const redisKeyPrefix = "ucs:quote:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache shares cached quotes between service instances.
type RedisCache struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisCache creates a cache backed by client. A non-positive ttl uses DefaultTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return newRedisCache(client, ttl)
}

func newRedisCache(client redisClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get treats Redis errors as misses so the read path falls back to the store.
func (c *RedisCache) Get(ctx context.Context, date time.Time, assetID string) (domain.Quote, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+quoteKey(date, assetID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis cache get failed", "asset", assetID, "error", err)
		}
		return domain.Quote{}, false
	}

	var q domain.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		slog.Warn("redis cache entry unreadable", "asset", assetID, "error", err)
		return domain.Quote{}, false
	}
	return q, true
}

func (c *RedisCache) Set(ctx context.Context, q domain.Quote) {
	raw, err := json.Marshal(q)
	if err != nil {
		slog.Warn("encoding quote for redis cache", "asset", q.AssetID, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+quoteKey(q.Date, q.AssetID), raw, c.ttl).Err(); err != nil {
		slog.Warn("redis cache set failed", "asset", q.AssetID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, date time.Time, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	keys := make([]string, len(assetIDs))
	for i, id := range assetIDs {
		keys[i] = redisKeyPrefix + quoteKey(date, id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating redis cache: %w", err)
	}
	return nil
}
