package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/rehearsal/internal/domain/types"
	"github.com/okian/rehearsal/pkg/metrics"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "rehearsal:optimal-times:"
)

// RedisCache keeps JSON-encoded answers in Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a cache over an existing client.
func NewRedisCache(client redis.UniversalClient, opts ...Option) *RedisCache {
	c := &RedisCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(groupID string) string {
	return c.prefix + groupID
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, groupID string) (types.OptimalTimes, error) {
	raw, err := c.client.Get(ctx, c.key(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return types.OptimalTimes{}, ErrCacheMiss
	}
	if err != nil {
		metrics.RecordCacheError()
		return types.OptimalTimes{}, fmt.Errorf("cache: get %s: %w", groupID, err)
	}

	var out types.OptimalTimes
	if err := json.Unmarshal(raw, &out); err != nil {
		// A corrupt entry behaves like a miss; the caller recomputes and overwrites it.
		metrics.RecordCacheError()
		return types.OptimalTimes{}, ErrCacheMiss
	}
	metrics.RecordCacheHit()
	return out, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, groupID string, value types.OptimalTimes) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", groupID, err)
	}
	if err := c.client.Set(ctx, c.key(groupID), raw, c.ttl).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache: set %s: %w", groupID, err)
	}
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, groupIDs ...string) error {
	if len(groupIDs) == 0 {
		return nil
	}
	keys := make([]string, len(groupIDs))
	for i, id := range groupIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
