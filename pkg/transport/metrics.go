package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks catalog requests by endpoint and outcome
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// requestDuration tracks request duration by endpoint
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	// errorsTotal tracks errors by kind
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by kind",
	}, []string{"kind"})

	// requestsInFlight drives the global progress indicator
	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_requests_in_flight",
		Help: "Number of catalog requests currently outstanding",
	})

	// conditionalRequestsSent tracks requests carrying If-None-Match
	conditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_conditional_requests_total",
		Help: "Total conditional requests sent with If-None-Match",
	})

	// notModifiedResponses tracks 304 responses served from the validator store
	notModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_304_responses_total",
		Help: "Total 304 Not Modified responses",
	})

	// retriesTotal tracks retry attempts
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of retry attempts",
	})

	// retryBackoffSeconds tracks backoff durations
	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_retry_backoff_seconds",
		Help:    "Backoff duration for retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// retryExhaustedTotal tracks exhausted retry sequences
	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)
