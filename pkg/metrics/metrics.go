// Package metrics provides the centralized Prometheus metrics registry
// for the catalog client. All metrics are defined in their respective
// packages (transport, cache, validator, dedupe, session, resolver,
// ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the catalog client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/transport):
//   - catalog_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - catalog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - catalog_errors_total{kind} (Counter): Errors by kind (not_found, transport, inconsistency, cancelled)
//   - catalog_requests_in_flight (Gauge): Outstanding requests, drives the progress indicator
//   - catalog_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - catalog_304_responses_total (Counter): 304 Not Modified responses served from validator records
//   - catalog_retries_total (Counter): Retry attempts
//   - catalog_retry_backoff_seconds (Histogram): Backoff duration per retry
//   - catalog_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{store} (Counter): Cache hits by store (details, summaries, lists)
//   - catalog_cache_misses_total{store} (Counter): Cache misses by store
//   - catalog_cache_sets_total{store} (Counter): Entries written by store
//   - catalog_cache_evictions_total{store} (Counter): Expired entries evicted on access
//   - catalog_cache_invalidations_total{store} (Counter): Entries removed by explicit invalidation
//
// Validator Metrics (pkg/validator):
//   - catalog_validator_hits_total (Counter): Validator record lookups that found a token
//   - catalog_validator_misses_total (Counter): Lookups with no stored record
//   - catalog_validator_puts_total (Counter): Records stored or replaced
//   - catalog_validator_invalidations_total (Counter): Records removed
//   - catalog_validator_errors_total{operation} (Counter): Backend failures by operation
//
// Deduplication Metrics (pkg/dedupe):
//   - catalog_dedup_starts_total (Counter): Operations started for a key
//   - catalog_dedup_joins_total (Counter): Callers that joined an in-flight operation
//   - catalog_dedup_aborts_total (Counter): Operations aborted when the last waiter detached
//
// Session Metrics (pkg/session):
//   - catalog_sessions_opened_total{surface} (Counter): Sessions opened per UI surface
//   - catalog_sessions_superseded_total{surface} (Counter): Sessions cancelled by a successor
//
// Fallback Metrics (pkg/resolver):
//   - catalog_fallback_attempts_total{step} (Counter): Attempts per chain step (enriched, create, retry, enhanced, basic)
//   - catalog_fallback_exhausted_total (Counter): Resolutions where every step failed
//
// Quota Metrics (pkg/ratelimit):
//   - catalog_quota_remaining (Gauge): Remaining enrichment quota reported by the backend
//   - catalog_quota_blocks_total (Counter): Requests blocked at critical quota
//   - catalog_quota_throttles_total (Counter): Requests throttled at warning quota
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per Store
//   sum by (store) (rate(catalog_cache_hits_total[5m])) /
//   (sum by (store) (rate(catalog_cache_hits_total[5m])) + sum by (store) (rate(catalog_cache_misses_total[5m])))
//
//   # Deduplication Savings
//   rate(catalog_dedup_joins_total[5m]) / rate(catalog_dedup_starts_total[5m])
//
//   # 304 Revalidation Rate
//   rate(catalog_304_responses_total[5m]) / rate(catalog_conditional_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Quota Pressure
//   catalog_quota_remaining < 10
