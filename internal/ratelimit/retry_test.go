package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky upstream")

func retryOpts(maxRetries int, transient func(error) bool, slept *[]time.Duration) RetryOptions {
	return RetryOptions{
		MaxRetries: maxRetries,
		Base:       time.Second,
		Max:        10 * time.Second,
		Transient:  transient,
		sleep: func(_ context.Context, d time.Duration) error {
			if slept != nil {
				*slept = append(*slept, d)
			}
			return nil
		},
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	err := Retry(context.Background(), op, retryOpts(3, func(error) bool { return true }, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}

	err := Retry(context.Background(), op, retryOpts(3, func(error) bool { return true }, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		return errFlaky
	}

	err := Retry(context.Background(), op, retryOpts(3, func(error) bool { return true }, nil))
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls, "initial attempt plus three retries")
}

func TestRetryFatalErrorPropagatesImmediately(t *testing.T) {
	fatal := errors.New("not found")
	calls := 0
	op := func(context.Context) error {
		calls++
		return fatal
	}

	err := Retry(context.Background(), op, retryOpts(3, func(err error) bool {
		return !errors.Is(err, fatal)
	}, nil))
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryBackoffGrowsExponentially(t *testing.T) {
	var slept []time.Duration
	op := func(context.Context) error { return errFlaky }

	err := Retry(context.Background(), op, retryOpts(3, func(error) bool { return true }, &slept))
	require.ErrorIs(t, err, errFlaky)
	require.Len(t, slept, 3)

	// base*2^n with up to 10% jitter
	assert.GreaterOrEqual(t, slept[0], 1*time.Second)
	assert.Less(t, slept[0], 1200*time.Millisecond)
	assert.GreaterOrEqual(t, slept[1], 2*time.Second)
	assert.Less(t, slept[1], 2400*time.Millisecond)
	assert.GreaterOrEqual(t, slept[2], 4*time.Second)
	assert.Less(t, slept[2], 4800*time.Millisecond)
}

func TestRetryBackoffCapped(t *testing.T) {
	var slept []time.Duration
	op := func(context.Context) error { return errFlaky }

	opts := retryOpts(6, func(error) bool { return true }, &slept)
	opts.Max = 3 * time.Second

	err := Retry(context.Background(), op, opts)
	require.ErrorIs(t, err, errFlaky)
	for _, d := range slept {
		assert.LessOrEqual(t, d, 3*time.Second+300*time.Millisecond)
	}
}

func TestRetryCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	op := func(context.Context) error {
		calls++
		return errFlaky
	}

	opts := retryOpts(5, func(error) bool { return true }, nil)
	opts.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := Retry(ctx, op, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroRetriesSingleAttempt(t *testing.T) {
	calls := 0
	op := func(context.Context) error {
		calls++
		return errFlaky
	}

	err := Retry(context.Background(), op, retryOpts(0, func(error) bool { return true }, nil))
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}
