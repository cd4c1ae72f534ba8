package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	tier, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "price:bitcoin", newEntry("42000", time.Minute, time.Now())))

	entry, err := tier.Get(ctx, "price:bitcoin")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("42000"), entry.Value)
}

func TestDiskTierMiss(t *testing.T) {
	ctx := context.Background()
	tier, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)

	entry, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestDiskTierExpiryRemovesFile(t *testing.T) {
	ctx := context.Background()
	tier, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tier.now = func() time.Time { return clock }

	require.NoError(t, tier.Set(ctx, "price:solana", newEntry("150", time.Minute, base)))

	clock = base.Add(2 * time.Minute)
	entry, err := tier.Get(ctx, "price:solana")
	require.NoError(t, err)
	assert.Nil(t, entry)

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDiskTierCorruptFileTreatedAsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tier, err := NewDiskTier(dir, 100)
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "key", newEntry("value", time.Hour, time.Now())))

	// Clobber the entry file
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, files[0].Name()), []byte("garbage"), 0o644))

	entry, err := tier.Get(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, entry)

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "corrupt file should be removed")
}

func TestDiskTierCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tier, err := NewDiskTier(dir, 2)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, now)))
	// Age the first file so mtime ordering is unambiguous
	old := now.Add(-time.Hour)
	require.NoError(t, os.Chtimes(tier.path("a"), old, old))

	require.NoError(t, tier.Set(ctx, "b", newEntry("2", time.Hour, now)))
	require.NoError(t, tier.Set(ctx, "c", newEntry("3", time.Hour, now)))

	entry, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry, "oldest entry should be evicted")

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDiskTierDelete(t *testing.T) {
	ctx := context.Background()
	tier, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, time.Now())))
	require.NoError(t, tier.Delete(ctx, "a"))

	entry, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, tier.Delete(ctx, "a"))
}
