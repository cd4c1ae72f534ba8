package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingTier simulates a broken persistent tier
type failingTier struct{}

func (f *failingTier) Get(context.Context, string) (*Entry, error) {
	return nil, errors.New("disk full")
}
func (f *failingTier) Set(context.Context, string, *Entry) error { return errors.New("disk full") }
func (f *failingTier) Delete(context.Context, string) error      { return errors.New("disk full") }
func (f *failingTier) Len(context.Context) (int, error)          { return 0, errors.New("disk full") }

func newTwoTier(t *testing.T, persistent Tier) *TwoTier {
	t.Helper()
	return NewTwoTier(NewMemoryTier(100), persistent, zerolog.Nop())
}

func TestTwoTierReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	c := newTwoTier(t, nil)

	c.Set(ctx, "price:bitcoin", []byte("42000"), time.Minute)

	value, ok := c.Get(ctx, "price:bitcoin")
	require.True(t, ok)
	assert.Equal(t, []byte("42000"), value)
}

func TestTwoTierMiss(t *testing.T) {
	ctx := context.Background()
	c := newTwoTier(t, nil)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTwoTierPromotesPersistentHit(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)
	c := newTwoTier(t, disk)

	c.Set(ctx, "price:bitcoin", []byte("42000"), time.Minute)

	// Drop the memory copy; the next read must come from disk and be
	// promoted back into memory
	require.NoError(t, c.memory.Delete(ctx, "price:bitcoin"))

	value, ok := c.Get(ctx, "price:bitcoin")
	require.True(t, ok)
	assert.Equal(t, []byte("42000"), value)

	entry, err := c.memory.Get(ctx, "price:bitcoin")
	require.NoError(t, err)
	assert.NotNil(t, entry, "persistent hit should be promoted into memory")
}

func TestTwoTierDegradesOnPersistentFailure(t *testing.T) {
	ctx := context.Background()
	c := newTwoTier(t, &failingTier{})

	// Writes and reads succeed through memory despite the broken tier
	c.Set(ctx, "price:bitcoin", []byte("42000"), time.Minute)

	value, ok := c.Get(ctx, "price:bitcoin")
	require.True(t, ok)
	assert.Equal(t, []byte("42000"), value)

	// A memory miss plus persistent failure is just a miss
	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTwoTierInvalidate(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDiskTier(t.TempDir(), 100)
	require.NoError(t, err)
	c := newTwoTier(t, disk)

	c.Set(ctx, "price:bitcoin", []byte("42000"), time.Minute)
	c.Invalidate(ctx, "price:bitcoin")

	_, ok := c.Get(ctx, "price:bitcoin")
	assert.False(t, ok)

	entry, err := disk.Get(ctx, "price:bitcoin")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestTwoTierStats(t *testing.T) {
	ctx := context.Background()
	c := newTwoTier(t, nil)

	c.Set(ctx, "a", []byte("1"), time.Minute)

	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}
