package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore implements cache.Store on Redis. Expiry is delegated to Redis
// TTLs, so expired entries simply read as misses.
type CacheStore struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// NewCacheStore creates a Redis-backed cache store.
func NewCacheStore(client *Client, defaultTTL time.Duration) *CacheStore {
	return &CacheStore{rdb: client.rdb, defaultTTL: defaultTTL}
}

func cacheKey(key string) string {
	return fmt.Sprintf("enrich:cache:%s", key)
}

// Get returns the value for key, or found=false when absent or expired.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}
	return data, true, nil
}

// Set stores value under key with the given TTL.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 {
		ttl = 0 // redis: zero expiration means keep forever
	}
	if err := s.rdb.Set(ctx, cacheKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete removes a single entry.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, cacheKey(key)).Err()
}

// Clear removes every cache entry under the enrich namespace.
func (s *CacheStore) Clear(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, cacheKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("del failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}
