package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordHits tracks validator record lookups that found a record
	recordHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_validator_hits_total",
			Help: "Total number of validator record lookups that found a record",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// recordMisses tracks lookups with no record
	recordMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_validator_misses_total",
			Help: "Total number of validator record lookups with no record",
		},
		[]string{"backend"},
	)

	// recordPuts tracks wholesale record replacements
	recordPuts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_validator_puts_total",
			Help: "Total number of validator records stored or replaced",
		},
		[]string{"backend"},
	)

	// recordInvalidations tracks explicit record removals
	recordInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_validator_invalidations_total",
			Help: "Total number of validator records explicitly invalidated",
		},
		[]string{"backend"},
	)

	// recordErrors tracks backend operation errors
	recordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_validator_errors_total",
			Help: "Total number of validator store operation errors",
		},
		[]string{"operation"}, // "get", "put", "invalidate"
	)
)
