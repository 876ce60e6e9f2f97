package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListingsCache caches raw market-data API payloads so a re-run after a
// downstream failure does not spend API credits again. Cache problems are
// reported but never fatal: the fetcher is the source of truth.
type ListingsCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewListingsCache creates a new listings cache
func NewListingsCache(redis *RedisCache, ttl time.Duration) *ListingsCache {
	return &ListingsCache{
		redis: redis,
		ttl:   ttl,
	}
}

// cacheKey identifies one fetch parameter combination.
// Format: listings:<limit>:<start>:<convert>
func (c *ListingsCache) cacheKey(limit, start int, convert string) string {
	return fmt.Sprintf("listings:%d:%d:%s", limit, start, convert)
}

// Get returns the cached records for the given fetch parameters. The second
// return value reports a hit; a missing key is not an error.
func (c *ListingsCache) Get(ctx context.Context, limit, start int, convert string) ([]json.RawMessage, bool, error) {
	data, err := c.redis.Get(ctx, c.cacheKey(limit, start, convert))
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached listings: %w", err)
	}

	return records, true, nil
}

// Set stores the records for the given fetch parameters with the configured TTL
func (c *ListingsCache) Set(ctx context.Context, limit, start int, convert string, records []json.RawMessage) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	return c.redis.Set(ctx, c.cacheKey(limit, start, convert), data, c.ttl)
}

// Invalidate removes the cached payload for the given fetch parameters
func (c *ListingsCache) Invalidate(ctx context.Context, limit, start int, convert string) error {
	return c.redis.Del(ctx, c.cacheKey(limit, start, convert))
}
