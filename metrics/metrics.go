package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// VFSOperations metric for VFS operations (lstat, readlink, open)
	VFSOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chora_vfs_operations_total",
			Help: "The number of VFS operations",
		},
		[]string{"vfs_name", "operation", "success"},
	)

	// TemplateFallbacks counts route targets that were served through a
	// __TEMPLATE__ directory instead of an exact match
	TemplateFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chora_template_fallbacks_total",
		Help: "The number of route lookups resolved through a template directory",
	})

	// HandlerInvocations counts dynamic handler executions by result
	HandlerInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chora_handler_invocations_total",
			Help: "The number of dynamic handler invocations",
		},
		[]string{"result"},
	)

	// HandlerDuration records how long dynamic handlers take to run
	HandlerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chora_handler_duration_seconds",
		Help:    "Time taken by a dynamic handler to exit",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Responses counts the outcome of every resolved request
	Responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chora_responses_total",
			Help: "The number of responses produced by outcome",
		},
		[]string{"outcome"},
	)

	// LimitListenerMaxConns metric for max connections allowed by the shared listener limiter
	LimitListenerMaxConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chora_limit_listener_max_conns",
		Help: "The maximum number of connections allowed across all listeners",
	})

	// LimitListenerConcurrentConns metric for connections currently being served
	LimitListenerConcurrentConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chora_limit_listener_concurrent_conns",
		Help: "The number of connections currently being served",
	})

	// LimitListenerWaitingConns metric for connections waiting for a free slot
	LimitListenerWaitingConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chora_limit_listener_waiting_conns",
		Help: "The number of connections waiting for a free connection slot",
	})

	// RateLimitSourceIPCacheRequests is the number of cache hits/misses
	RateLimitSourceIPCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chora_rate_limit_source_ip_cache_requests",
		Help: "The number of source_ip cache hits/misses in the rate limiter",
	}, []string{"op", "cache"})

	// RateLimitSourceIPCachedEntries is the number of entries in the cache
	RateLimitSourceIPCachedEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chora_rate_limit_source_ip_cached_entries",
		Help: "The number of entries in the source_ip cache of the rate limiter",
	}, []string{"op"})

	// RateLimitSourceIPBlockedCount is the number of requests that have been blocked
	// by the source IP rate limiter
	RateLimitSourceIPBlockedCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chora_rate_limit_source_ip_blocked_count",
		Help: "The number of requests that have been blocked by the source IP rate limiter",
	}, []string{"enforced"})
)

// MustRegister collectors with the Prometheus client
func MustRegister() {
	prometheus.MustRegister(
		VFSOperations,
		TemplateFallbacks,
		HandlerInvocations,
		HandlerDuration,
		Responses,
		LimitListenerMaxConns,
		LimitListenerConcurrentConns,
		LimitListenerWaitingConns,
		RateLimitSourceIPCacheRequests,
		RateLimitSourceIPCachedEntries,
		RateLimitSourceIPBlockedCount,
	)
}
