// Package ratelimit throttles outbound calls to named external resources
// using token buckets, and provides a backoff-aware retry wrapper for
// transient failures.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sentientsats/cryptointel/internal/metrics"
)

// Budget describes a token bucket for one resource: tokens accumulate at
// RefillRate per second up to Capacity, computed lazily from elapsed time.
type Budget struct {
	Capacity   int
	RefillRate float64
}

// Limiter manages one token bucket per resource identifier. Resources
// without an explicit budget use the default budget.
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*rate.Limiter
	budgets       map[string]Budget
	defaultBudget Budget

	met *metrics.Metrics
}

// NewLimiter creates a limiter with per-resource budgets and a fallback
// default budget for unknown resources
func NewLimiter(defaultBudget Budget, budgets map[string]Budget) *Limiter {
	if budgets == nil {
		budgets = make(map[string]Budget)
	}
	return &Limiter{
		buckets:       make(map[string]*rate.Limiter),
		budgets:       budgets,
		defaultBudget: defaultBudget,
		met:           metrics.Default(),
	}
}

// Acquire blocks until a token is available for resource, then consumes it.
// Returns early with the context error if ctx is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context, resource string) error {
	bucket := l.bucket(resource)

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", resource, err)
	}

	waited := time.Since(start)
	l.met.RateLimitWait.Observe(waited.Seconds())
	if waited > 100*time.Millisecond {
		log.Debug().
			Str("resource", resource).
			Dur("waited", waited).
			Msg("Rate limit wait")
	}
	return nil
}

// TryAcquire consumes a token if one is immediately available
func (l *Limiter) TryAcquire(resource string) bool {
	return l.bucket(resource).Allow()
}

// Tokens reports the tokens currently available for resource
func (l *Limiter) Tokens(resource string) float64 {
	return l.bucket(resource).Tokens()
}

func (l *Limiter) bucket(resource string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[resource]; ok {
		return b
	}

	budget, ok := l.budgets[resource]
	if !ok {
		budget = l.defaultBudget
		log.Debug().
			Str("resource", resource).
			Msg("No budget configured, using default")
	}

	b := rate.NewLimiter(rate.Limit(budget.RefillRate), budget.Capacity)
	l.buckets[resource] = b
	return b
}
