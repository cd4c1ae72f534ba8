package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentientsats/cryptointel/internal/metrics"
)

// RetryOptions controls the exponential backoff wrapper. Transient decides
// whether a failure is worth retrying; everything else propagates
// immediately.
type RetryOptions struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	Transient  func(error) bool

	// sleep is swapped in tests to avoid real delays
	sleep func(context.Context, time.Duration) error
}

// DefaultRetryOptions returns the standard 3-attempt backoff configuration
func DefaultRetryOptions(transient func(error) bool) RetryOptions {
	return RetryOptions{
		MaxRetries: 3,
		Base:       time.Second,
		Max:        60 * time.Second,
		Transient:  transient,
	}
}

// Retry invokes op, retrying transient failures up to MaxRetries times
// with delay base * 2^attempt plus jitter, capped at Max. The last error
// is returned once retries are exhausted.
func Retry(ctx context.Context, op func(context.Context) error, opts RetryOptions) error {
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if opts.Transient == nil || !opts.Transient(lastErr) {
			return lastErr
		}

		if attempt == opts.MaxRetries {
			log.Error().
				Err(lastErr).
				Int("attempts", attempt+1).
				Msg("All retry attempts failed")
			break
		}

		delay := backoffDelay(opts.Base, opts.Max, attempt)
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Transient failure, retrying")
		metrics.Default().FetchRetries.Inc()

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// backoffDelay computes base * 2^attempt with up to 10% jitter, capped at max
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
