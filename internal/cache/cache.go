// Package cache implements the two-tier cache: a fast in-memory LRU tier
// in front of a persistent tier (disk files or Redis). The facade is the
// single source of truth for value freshness; persistent-tier failures
// degrade to memory-only operation and are never surfaced to callers.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentientsats/cryptointel/internal/metrics"
)

const lockStripes = 64

// Stats is a point-in-time snapshot of cache effectiveness
type Stats struct {
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}

// TwoTier combines the memory tier with an optional persistent tier.
// Reads check memory first and promote persistent hits; writes go to both
// tiers synchronously so a read-after-write always observes the value.
type TwoTier struct {
	memory     *MemoryTier
	persistent Tier // nil for memory-only operation

	locks [lockStripes]sync.Mutex

	hits   atomic.Uint64
	misses atomic.Uint64

	log zerolog.Logger
	met *metrics.Metrics
}

// NewTwoTier creates the cache facade. persistent may be nil.
func NewTwoTier(memory *MemoryTier, persistent Tier, logger zerolog.Logger) *TwoTier {
	return &TwoTier{
		memory:     memory,
		persistent: persistent,
		log:        logger,
		met:        metrics.Default(),
	}
}

// Get returns the cached value for key, or (nil, false) if absent or
// expired in both tiers. A persistent-tier hit is promoted into memory.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, bool) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	entry, _ := c.memory.Get(ctx, key)
	if entry != nil {
		c.hits.Add(1)
		c.met.CacheHits.WithLabelValues(metrics.TierMemory).Inc()
		return entry.Value, true
	}
	c.met.CacheMisses.WithLabelValues(metrics.TierMemory).Inc()

	if c.persistent == nil {
		c.misses.Add(1)
		return nil, false
	}

	entry, err := c.persistent.Get(ctx, key)
	if err != nil {
		c.met.CacheIOErrors.Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("Persistent tier read failed, continuing memory-only")
		c.misses.Add(1)
		return nil, false
	}
	if entry == nil {
		c.misses.Add(1)
		c.met.CacheMisses.WithLabelValues(metrics.TierDisk).Inc()
		return nil, false
	}

	// Promote so the next read is served from memory
	_ = c.memory.Set(ctx, key, entry)

	c.hits.Add(1)
	c.met.CacheHits.WithLabelValues(metrics.TierDisk).Inc()
	return entry.Value, true
}

// Set stores value under key with the given TTL in both tiers
func (c *TwoTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	entry := &Entry{
		Value:     value,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}

	_ = c.memory.Set(ctx, key, entry)

	if c.persistent != nil {
		if err := c.persistent.Set(ctx, key, entry); err != nil {
			c.met.CacheIOErrors.Inc()
			c.log.Warn().Err(err).Str("key", key).Msg("Persistent tier write failed, continuing memory-only")
		}
	}

	c.log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cached value")
}

// Invalidate removes key from both tiers
func (c *TwoTier) Invalidate(ctx context.Context, key string) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	_ = c.memory.Delete(ctx, key)

	if c.persistent != nil {
		if err := c.persistent.Delete(ctx, key); err != nil {
			c.met.CacheIOErrors.Inc()
			c.log.Warn().Err(err).Str("key", key).Msg("Persistent tier delete failed")
		}
	}
}

// Stats returns hit/miss counters accumulated since creation
func (c *TwoTier) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	s := Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.memory.Evicted(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// lockFor serializes operations on the same key across both tiers
func (c *TwoTier) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}
