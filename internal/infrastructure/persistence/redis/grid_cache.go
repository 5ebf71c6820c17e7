package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRID CACHE
// Each cached grid is a plain string key. Its key is also added to the index
// set of its tenant scope, which InvalidateTenant reads and deletes.
//
// Every scope also has a generation counter. InvalidateTenant increments it
// before deleting, and Set writes under WATCH only while the counter still
// holds the value read before the grid was built. A grid built from data
// older than the last invalidation is therefore never stored.
// ══════════════════════════════════════════════════════════════════════════════

// GridCache caches serialized assessment grids.
type GridCache struct {
	cache *Cache
}

// NewGridCache creates a new GridCache.
func NewGridCache(cache *Cache) *GridCache {
	return &GridCache{cache: cache}
}

// IndexKey returns the set holding every grid key cached for a tenant scope.
func IndexKey(tenantScope string) string {
	if tenantScope == "" {
		tenantScope = ScopeAllTenants
	}
	return PrefixGridIndex + tenantScope
}

// GenerationKey returns the invalidation counter of a tenant scope.
func GenerationKey(tenantScope string) string {
	if tenantScope == "" {
		tenantScope = ScopeAllTenants
	}
	return PrefixGridGeneration + tenantScope
}

// Generation returns the current invalidation counter of a tenant scope.
func (g *GridCache) Generation(ctx context.Context, tenantScope string) (int64, error) {
	gen, err := g.cache.client.Get(ctx, GenerationKey(tenantScope)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("grid cache generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached grid or nil on a miss.
func (g *GridCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}

	data, err := g.cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("grid cache get: %w", err)
	}
	return data, nil
}

// Set stores a grid and records its key in the tenant scope index. It stores
// nothing and returns false when the scope moved past generation.
func (g *GridCache) Set(ctx context.Context, key, tenantScope string, generation int64, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		return false, ErrCacheInvalidTTL
	}

	genKey := GenerationKey(tenantScope)
	index := IndexKey(tenantScope)
	stored := false
	err := g.cache.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			pipe.SAdd(ctx, index, key)
			// The index outlives its newest entry by one TTL at most.
			pipe.Expire(ctx, index, 2*ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("grid cache set: %w", err)
	}
	return stored, nil
}

// InvalidateTenant drops every grid cached for the tenant and every grid
// spanning all tenants.
func (g *GridCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	scopes := []string{ScopeAllTenants}
	if tenantID != "" && tenantID != ScopeAllTenants {
		scopes = append(scopes, tenantID)
	}

	// Generations move first so a concurrent Set either fails its WATCH or
	// lands in the index before it is read below.
	for _, scope := range scopes {
		if err := g.cache.client.Incr(ctx, GenerationKey(scope)).Err(); err != nil {
			return fmt.Errorf("grid cache invalidate %s: %w", scope, err)
		}
	}

	for _, scope := range scopes {
		index := IndexKey(scope)
		keys, err := g.cache.client.SMembers(ctx, index).Result()
		if err != nil {
			return fmt.Errorf("grid cache invalidate %s: %w", index, err)
		}

		if err := g.cache.client.Del(ctx, append(keys, index)...).Err(); err != nil {
			return fmt.Errorf("grid cache invalidate %s: %w", index, err)
		}
	}
	return nil
}
