// Package lru keeps a bounded set of expiring values, reporting lookups and
// entry counts to Prometheus.
package lru

import (
	"time"

	"github.com/karlseguin/ccache/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// an entry read this often moves to the front of the list
	getsPerPromote = 64
	// a full cache drops 1/16 of its entries at once
	itemsToPruneDiv = 16
)

// Config describes a Cache. Op labels both metrics.
type Config struct {
	Op         string
	MaxEntries int64
	TTL        time.Duration

	CachedEntries *prometheus.GaugeVec
	CacheRequests *prometheus.CounterVec
}

// Cache is a size-bounded cache whose entries expire after TTL without use
type Cache struct {
	config Config
	cache  *ccache.Cache
}

// New creates a Cache from config
func New(config Config) *Cache {
	configuration := ccache.Configure().
		MaxSize(config.MaxEntries).
		ItemsToPrune(uint32(config.MaxEntries) / itemsToPruneDiv).
		GetsPerPromote(getsPerPromote).
		OnDelete(func(*ccache.Item) {
			config.CachedEntries.WithLabelValues(config.Op).Dec()
		})

	return &Cache{
		config: config,
		cache:  ccache.New(configuration),
	}
}

// Get returns the live value stored under key, extending its lifetime. A
// missing or expired value is replaced with the result of create.
func (c *Cache) Get(key string, create func() interface{}) interface{} {
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		c.config.CacheRequests.WithLabelValues(c.config.Op, "hit").Inc()
		item.Extend(c.config.TTL)

		return item.Value()
	}

	value := create()

	c.config.CacheRequests.WithLabelValues(c.config.Op, "miss").Inc()
	c.config.CachedEntries.WithLabelValues(c.config.Op).Inc()
	c.cache.Set(key, value, c.config.TTL)

	return value
}
