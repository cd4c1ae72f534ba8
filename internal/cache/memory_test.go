package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(value string, ttl time.Duration, at time.Time) *Entry {
	return &Entry{Value: []byte(value), CreatedAt: at, TTL: ttl}
}

func TestMemoryTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(10)

	now := time.Now()
	require.NoError(t, tier.Set(ctx, "price:bitcoin", newEntry("42000", time.Minute, now)))

	entry, err := tier.Get(ctx, "price:bitcoin")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("42000"), entry.Value)
}

func TestMemoryTierMiss(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(10)

	entry, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryTierTTLExpiry(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(10)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tier.now = func() time.Time { return clock }

	require.NoError(t, tier.Set(ctx, "price:solana", newEntry("150", time.Minute, base)))

	// Just inside the TTL
	clock = base.Add(59 * time.Second)
	entry, err := tier.Get(ctx, "price:solana")
	require.NoError(t, err)
	require.NotNil(t, entry)

	// Past the TTL the entry is gone and its slot reclaimed
	clock = base.Add(61 * time.Second)
	entry, err = tier.Get(ctx, "price:solana")
	require.NoError(t, err)
	assert.Nil(t, entry)

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryTierLRUEviction(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(3)
	now := time.Now()

	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, now)))
	require.NoError(t, tier.Set(ctx, "b", newEntry("2", time.Hour, now)))
	require.NoError(t, tier.Set(ctx, "c", newEntry("3", time.Hour, now)))

	// Touch "a" so "b" is the least recently used
	_, err := tier.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "d", newEntry("4", time.Hour, now)))

	entry, err := tier.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, entry, "least recently used entry should be evicted")

	for _, key := range []string{"a", "c", "d"} {
		entry, err := tier.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, entry, "key %s should survive", key)
	}

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(1), tier.Evicted())
}

func TestMemoryTierUpdateDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(2)
	now := time.Now()

	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, now)))
	require.NoError(t, tier.Set(ctx, "b", newEntry("2", time.Hour, now)))
	require.NoError(t, tier.Set(ctx, "a", newEntry("updated", time.Hour, now)))

	entry, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("updated"), entry.Value)

	entry, err = tier.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Equal(t, uint64(0), tier.Evicted())
}

func TestMemoryTierDelete(t *testing.T) {
	ctx := context.Background()
	tier := NewMemoryTier(10)

	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, time.Now())))
	require.NoError(t, tier.Delete(ctx, "a"))

	entry, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Deleting an absent key is a no-op
	require.NoError(t, tier.Delete(ctx, "a"))
}
