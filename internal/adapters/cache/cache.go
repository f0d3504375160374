// Package cache stores computed optimal-time answers per group.
package cache

import (
	"context"

	"github.com/okian/rehearsal/internal/domain/types"
)

// Cache holds the latest formatted answer for a group.
type Cache interface {
	// Get returns the cached answer or ErrCacheMiss.
	Get(ctx context.Context, groupID string) (types.OptimalTimes, error)
	Set(ctx context.Context, groupID string, value types.OptimalTimes) error
	Delete(ctx context.Context, groupIDs ...string) error
}

// NopCache never stores anything.
type NopCache struct{}

// Get implements Cache.
func (NopCache) Get(context.Context, string) (types.OptimalTimes, error) {
	return types.OptimalTimes{}, ErrCacheMiss
}

// Set implements Cache.
func (NopCache) Set(context.Context, string, types.OptimalTimes) error { return nil }

// Delete implements Cache.
func (NopCache) Delete(context.Context, ...string) error { return nil }
