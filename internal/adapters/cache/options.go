package cache

import "time"

// Option applies a configuration option to the RedisCache.
type Option func(*RedisCache)

// WithTTL sets how long entries live. Zero keeps them until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the namespace for cache keys.
func WithKeyPrefix(prefix string) Option {
	return func(c *RedisCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}
