package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sonar_cache_hits_total",
			Help: "Total number of Sonar response cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sonar_cache_misses_total",
			Help: "Total number of Sonar response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache during this run
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonar_cache_size_bytes",
			Help: "Bytes written to the Sonar response cache by this process",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
