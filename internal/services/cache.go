package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mtaa-app/mtaa-backend/internal/database"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL for read-mostly reference data like neighborhoods
	DefaultCacheTTL = 6 * time.Hour
)

// CacheService is a thin JSON cache over Redis. Misses and Redis errors
// are reported as cache misses; callers always fall back to the source
// of truth.
type CacheService struct{}

// Get retrieves a value from cache
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := database.RedisClient.Get(ctx, CacheKeyPrefix+key).Result()
	if err != nil {
		return false, nil // Cache miss, not an error
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value in cache with the default TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, DefaultCacheTTL)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return database.RedisClient.Set(ctx, CacheKeyPrefix+key, jsonData, ttl).Err()
}

// Delete removes a value from cache
func (c *CacheService) Delete(ctx context.Context, key string) error {
	return database.RedisClient.Del(ctx, CacheKeyPrefix+key).Err()
}

// Global cache service instance
var Cache = &CacheService{}
