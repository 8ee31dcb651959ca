// Package ratelimiter throttles clients by source IP with a token bucket
// per address.
package ratelimiter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"gitlab.com/chora/chora/internal/lru"
	"gitlab.com/chora/chora/metrics"
)

const (
	// DefaultSourceIPLimitPerSecond is the rate buckets refill at, 20
	// requests per second
	DefaultSourceIPLimitPerSecond = 20.0
	// DefaultSourceIPBurstSize is the size of a full bucket
	DefaultSourceIPBurstSize = 100

	maxTrackedSourceIPs = 5000
	idleSourceIPTTL     = time.Minute
)

// Option function to configure a RateLimiter
type Option func(*RateLimiter)

// RateLimiter keeps one rate.Limiter per source IP. Buckets of addresses
// that stay idle for a minute are dropped, as are the least recently used
// ones once too many addresses are tracked.
type RateLimiter struct {
	now     func() time.Time
	limit   float64
	burst   int
	blocked *prometheus.GaugeVec
	buckets *lru.Cache
}

// New creates a RateLimiter with default values that can be configured via Option functions
func New(opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		now:     time.Now,
		limit:   DefaultSourceIPLimitPerSecond,
		burst:   DefaultSourceIPBurstSize,
		blocked: metrics.RateLimitSourceIPBlockedCount,
		buckets: lru.New(lru.Config{
			Op:            "source_ip",
			MaxEntries:    maxTrackedSourceIPs,
			TTL:           idleSourceIPTTL,
			CachedEntries: metrics.RateLimitSourceIPCachedEntries,
			CacheRequests: metrics.RateLimitSourceIPCacheRequests,
		}),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// WithNow replaces the clock buckets are refilled by
func WithNow(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// WithSourceIPLimitPerSecond sets the refill rate of every bucket
func WithSourceIPLimitPerSecond(limit float64) Option {
	return func(rl *RateLimiter) {
		rl.limit = limit
	}
}

// WithSourceIPBurstSize sets the bucket size
func WithSourceIPBurstSize(burst int) Option {
	return func(rl *RateLimiter) {
		rl.burst = burst
	}
}

// SourceIPAllowed takes a token from the bucket of sourceIP
func (rl *RateLimiter) SourceIPAllowed(sourceIP string) bool {
	bucket := rl.buckets.Get(sourceIP, func() interface{} {
		return rate.NewLimiter(rate.Limit(rl.limit), rl.burst)
	}).(*rate.Limiter)

	return bucket.AllowN(rl.now(), 1)
}
