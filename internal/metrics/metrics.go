// Package metrics exposes Prometheus instrumentation for the data-access
// and reasoning core. All label values come from bounded sets to keep
// cardinality under control.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache tier labels (bounded set)
const (
	TierMemory = "memory"
	TierDisk   = "disk"
	TierRedis  = "redis"
)

// Fetch outcome labels (bounded set)
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomePermanent = "permanent"
)

// Metrics holds the instrumentation for the core services
type Metrics struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheIOErrors  prometheus.Counter

	RateLimitWait prometheus.Histogram

	FetchRequests *prometheus.CounterVec
	FetchRetries  prometheus.Counter

	BreakerState prometheus.Gauge
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Default returns the process-wide metrics instance, registering the
// collectors exactly once
func Default() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{
			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cryptointel_cache_hits_total",
					Help: "Cache hits by tier",
				},
				[]string{"tier"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cryptointel_cache_misses_total",
					Help: "Cache misses by tier",
				},
				[]string{"tier"},
			),
			CacheEvictions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cryptointel_cache_evictions_total",
					Help: "LRU evictions by tier",
				},
				[]string{"tier"},
			),
			CacheIOErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "cryptointel_cache_io_errors_total",
					Help: "Persistent tier I/O errors recovered by falling back to memory",
				},
			),
			RateLimitWait: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cryptointel_rate_limit_wait_seconds",
					Help:    "Time spent waiting for a rate limit token",
					Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
				},
			),
			FetchRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cryptointel_fetch_requests_total",
					Help: "Fetch operations by outcome",
				},
				[]string{"outcome"},
			),
			FetchRetries: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "cryptointel_fetch_retries_total",
					Help: "Retry attempts made by the backoff wrapper",
				},
			),
			BreakerState: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "cryptointel_breaker_state",
					Help: "Fetch circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
			),
		}
	})
	return global
}
