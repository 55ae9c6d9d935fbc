package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by store
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
		[]string{"store"}, // "details", "summaries", "lists"
	)

	// cacheMisses tracks cache misses by store
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
		[]string{"store"},
	)

	// cacheSets tracks entries written by store
	cacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_sets_total",
			Help: "Total number of catalog cache entries written",
		},
		[]string{"store"},
	)

	// cacheEvictions tracks expired entries removed on access
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_evictions_total",
			Help: "Total number of expired catalog cache entries evicted on access",
		},
		[]string{"store"},
	)

	// cacheInvalidations tracks explicit invalidations
	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Total number of explicit catalog cache invalidations",
		},
		[]string{"store"},
	)
)
