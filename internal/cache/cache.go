// Package cache provides an optional Redis-backed cache for URL mappings
// on the redirect hot path. Cache failures are never fatal: the caller
// falls through to the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shortstat/shortstat/internal/entity"
	"github.com/shortstat/shortstat/internal/metrics"
)

const keyPrefix = "mapping:"

// MappingCache caches mappings by short code with a TTL.
type MappingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMappingCache(client *redis.Client, ttl time.Duration) *MappingCache {
	return &MappingCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached mapping for the code, or nil on a miss.
func (c *MappingCache) Get(ctx context.Context, shortCode string) (*entity.URLMapping, error) {
	const op = "cache.MappingCache.Get"

	data, err := c.client.Get(ctx, keyPrefix+shortCode).Result()
	if err == redis.Nil {
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	var m entity.URLMapping
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal cached mapping: %w", op, err)
	}

	metrics.RecordCacheHit()

	return &m, nil
}

// Set stores the mapping under its short code.
func (c *MappingCache) Set(ctx context.Context, m *entity.URLMapping) error {
	const op = "cache.MappingCache.Set"

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal mapping: %w", op, err)
	}

	if err := c.client.Set(ctx, keyPrefix+m.ShortCode, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return nil
}

// Flush drops every cached mapping. Used after an admin reset so stale
// codes cannot keep resolving.
func (c *MappingCache) Flush(ctx context.Context) error {
	const op = "cache.MappingCache.Flush"

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: failed to scan keys: %w", op, err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%s: failed to delete keys: %w", op, err)
		}
	}

	return nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "cache.NewClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}
