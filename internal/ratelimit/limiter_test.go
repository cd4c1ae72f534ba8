package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireExhaustsCapacity(t *testing.T) {
	l := NewLimiter(Budget{Capacity: 1, RefillRate: 1}, map[string]Budget{
		"api": {Capacity: 3, RefillRate: 0.001},
	})

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryAcquire("api"), "token %d should be available", i)
	}
	assert.False(t, l.TryAcquire("api"), "bucket should be empty")
}

func TestAcquireWaitsForRefill(t *testing.T) {
	// 1 token capacity refilling at 20/s: the second acquire must wait
	// roughly 50ms for the bucket to refill
	l := NewLimiter(Budget{Capacity: 1, RefillRate: 1}, map[string]Budget{
		"api": {Capacity: 1, RefillRate: 20},
	})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "api"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "api"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	l := NewLimiter(Budget{Capacity: 1, RefillRate: 1}, map[string]Budget{
		"api": {Capacity: 1, RefillRate: 0.001},
	})

	require.NoError(t, l.Acquire(context.Background(), "api"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, "api")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnknownResourceUsesDefaultBudget(t *testing.T) {
	l := NewLimiter(Budget{Capacity: 2, RefillRate: 0.001}, nil)

	assert.True(t, l.TryAcquire("surprise"))
	assert.True(t, l.TryAcquire("surprise"))
	assert.False(t, l.TryAcquire("surprise"))
}

func TestBucketsAreIndependent(t *testing.T) {
	l := NewLimiter(Budget{Capacity: 1, RefillRate: 0.001}, map[string]Budget{
		"a": {Capacity: 1, RefillRate: 0.001},
		"b": {Capacity: 1, RefillRate: 0.001},
	})

	assert.True(t, l.TryAcquire("a"))
	assert.False(t, l.TryAcquire("a"))
	assert.True(t, l.TryAcquire("b"), "draining one bucket must not affect another")
}

func TestTokensReportsRemaining(t *testing.T) {
	l := NewLimiter(Budget{Capacity: 1, RefillRate: 1}, map[string]Budget{
		"api": {Capacity: 5, RefillRate: 0.001},
	})

	assert.InDelta(t, 5, l.Tokens("api"), 0.01)
	l.TryAcquire("api")
	assert.InDelta(t, 4, l.Tokens("api"), 0.01)
}
