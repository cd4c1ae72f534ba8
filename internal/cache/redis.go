package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const redisKeyPrefix = "cryptointel:cache:"

// RedisTier is an alternative persistent tier backed by Redis. Entries are
// msgpack-encoded and given a server-side TTL matching the entry TTL, so
// Redis handles both expiry and memory pressure.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates a Redis-backed tier. Returns nil if client is nil
// (optional Redis support).
func NewRedisTier(client *redis.Client) *RedisTier {
	if client == nil {
		return nil
	}
	return &RedisTier{client: client}
}

// Get retrieves an entry from Redis. Redis errors are surfaced so the
// facade can degrade to memory-only operation.
func (r *RedisTier) Get(ctx context.Context, key string) (*Entry, error) {
	// Use a short timeout for cache operations to prevent blocking
	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	data, err := r.client.Get(opCtx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis cache read failed: %w", err)
	}

	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to decode cached entry, treating as miss")
		return nil, nil
	}

	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set stores an entry with its TTL as the Redis expiration
func (r *RedisTier) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := r.client.Set(opCtx, redisKeyPrefix+key, data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redis cache write failed: %w", err)
	}
	return nil
}

// Delete removes an entry
func (r *RedisTier) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := r.client.Del(opCtx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis cache delete failed: %w", err)
	}
	return nil
}

// Len counts entries under the cache prefix
func (r *RedisTier) Len(ctx context.Context) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	count := 0
	iter := r.client.Scan(opCtx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(opCtx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis cache scan failed: %w", err)
	}
	return count, nil
}

// Health checks the Redis connection
func (r *RedisTier) Health(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Ping(opCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
