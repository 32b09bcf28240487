package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	// CacheHits tracks cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_cache_hits_total",
		Help: "Total lookup cache hits",
	})

	// CacheMisses tracks cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_cache_misses_total",
		Help: "Total lookup cache misses",
	})

	// CacheErrors tracks cache operation errors by operation type.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})
)
