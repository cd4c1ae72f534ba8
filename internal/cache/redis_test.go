package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisTier(t *testing.T) (*RedisTier, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisTier(client), mr
}

func TestRedisTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	tier, _ := setupRedisTier(t)

	require.NoError(t, tier.Set(ctx, "price:bitcoin", newEntry("42000", time.Minute, time.Now())))

	entry, err := tier.Get(ctx, "price:bitcoin")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("42000"), entry.Value)
}

func TestRedisTierMiss(t *testing.T) {
	ctx := context.Background()
	tier, _ := setupRedisTier(t)

	entry, err := tier.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisTierServerSideExpiry(t *testing.T) {
	ctx := context.Background()
	tier, mr := setupRedisTier(t)

	require.NoError(t, tier.Set(ctx, "price:solana", newEntry("150", time.Minute, time.Now())))

	mr.FastForward(2 * time.Minute)

	entry, err := tier.Get(ctx, "price:solana")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisTierDeleteAndLen(t *testing.T) {
	ctx := context.Background()
	tier, _ := setupRedisTier(t)

	require.NoError(t, tier.Set(ctx, "a", newEntry("1", time.Hour, time.Now())))
	require.NoError(t, tier.Set(ctx, "b", newEntry("2", time.Hour, time.Now())))

	n, err := tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, tier.Delete(ctx, "a"))

	n, err = tier.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisTierHealth(t *testing.T) {
	ctx := context.Background()
	tier, mr := setupRedisTier(t)

	require.NoError(t, tier.Health(ctx))

	mr.Close()
	assert.Error(t, tier.Health(ctx))
}

func TestRedisTierNilClient(t *testing.T) {
	assert.Nil(t, NewRedisTier(nil))
}
