// Package fetch provides the resilient data-access client: transparent
// cache-or-fetch with rate limiting, retry with backoff, circuit breaking,
// and deduplication of concurrent misses on the same key.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/sentientsats/cryptointel/internal/cache"
	"github.com/sentientsats/cryptointel/internal/metrics"
	"github.com/sentientsats/cryptointel/internal/ratelimit"
)

// Circuit breaker thresholds for upstream data sources
const (
	breakerMinRequests     = 5                // Minimum requests before tripping
	breakerFailureRatio    = 0.6              // Failure ratio threshold (60%)
	breakerOpenTimeout     = 30 * time.Second // How long circuit stays open
	breakerHalfOpenMaxReqs = 3                // Max requests in half-open state
	breakerCountInterval   = 10 * time.Second // Window for counting failures
)

// FetchFunc retrieves a raw payload from an external resource. It is
// supplied by the caller; the client owns no network protocol itself.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Options configures a Client
type Options struct {
	// Resource names the rate-limit bucket charged per upstream call
	Resource string
	// MaxRetries, BackoffBase and BackoffMax control the retry wrapper
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// BreakerEnabled wraps upstream calls in a circuit breaker
	BreakerEnabled bool
}

// Client combines the two-tier cache and the rate limiter into the
// fetch_with_cache operation exposed to query handlers
type Client struct {
	cache   *cache.TwoTier
	limiter *ratelimit.Limiter
	opts    Options
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	log     zerolog.Logger
	met     *metrics.Metrics
}

// NewClient creates a fetch client over the given cache and limiter
func NewClient(c *cache.TwoTier, l *ratelimit.Limiter, opts Options, logger zerolog.Logger) *Client {
	client := &Client{
		cache:   c,
		limiter: l,
		opts:    opts,
		log:     logger,
		met:     metrics.Default(),
	}

	if opts.BreakerEnabled {
		client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Resource,
			MaxRequests: breakerHalfOpenMaxReqs,
			Interval:    breakerCountInterval,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= breakerMinRequests && failureRatio >= breakerFailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state change")
				client.met.BreakerState.Set(breakerStateValue(to))
			},
			IsSuccessful: func(err error) bool {
				// Permanent upstream answers (not found, bad payload) are
				// not upstream health problems
				return err == nil || Permanent(err)
			},
		})
	}

	return client
}

// FetchWithCache returns the cached value for key if fresh, otherwise
// invokes fn exactly once (concurrent misses on the same key share a
// single flight), caches the result under ttl, and returns it.
//
// An abandoned caller (cancelled ctx) stops waiting, but the in-flight
// fetch runs to completion on a detached context and still populates the
// cache for future callers.
func (c *Client) FetchWithCache(ctx context.Context, key string, ttl time.Duration, fn FetchFunc) ([]byte, error) {
	if value, ok := c.cache.Get(ctx, key); ok {
		return value, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Detached so one caller's cancellation cannot waste the work
		fetchCtx := context.WithoutCancel(ctx)

		value, err := c.fetch(fetchCtx, fn)
		if err != nil {
			return nil, err
		}

		c.cache.Set(fetchCtx, key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops any cached value for key
func (c *Client) Invalidate(ctx context.Context, key string) {
	c.cache.Invalidate(ctx, key)
}

// fetch performs the rate-limited, retried, breaker-guarded upstream call
func (c *Client) fetch(ctx context.Context, fn FetchFunc) ([]byte, error) {
	var value []byte

	op := func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx, c.opts.Resource); err != nil {
			return err
		}

		result, err := c.execute(ctx, fn)
		if err != nil {
			return err
		}
		value = result
		return nil
	}

	retryOpts := ratelimit.RetryOptions{
		MaxRetries: c.opts.MaxRetries,
		Base:       c.opts.BackoffBase,
		Max:        c.opts.BackoffMax,
		Transient:  Transient,
	}

	if err := ratelimit.Retry(ctx, op, retryOpts); err != nil {
		if Permanent(err) {
			c.met.FetchRequests.WithLabelValues(metrics.OutcomePermanent).Inc()
		} else {
			c.met.FetchRequests.WithLabelValues(metrics.OutcomeTransient).Inc()
		}
		return nil, err
	}

	c.met.FetchRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return value, nil
}

func (c *Client) execute(ctx context.Context, fn FetchFunc) ([]byte, error) {
	if c.breaker == nil {
		return fn(ctx)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Open breaker means the upstream is unhealthy; treat as
			// transient so the backoff wrapper spaces out probes
			return nil, Transientf("circuit breaker open for %s", c.opts.Resource)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
