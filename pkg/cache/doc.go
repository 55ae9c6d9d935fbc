// Package cache provides in-memory TTL caching for catalog responses.
//
// The store implements short-lived response caching with the following
// features:
//
// - Per-entry absolute expiry with lazy eviction (no background sweep)
// - Explicit invalidation for mutation fan-out
// - Distinct stores with distinct TTLs per resource class
// - Prometheus metrics for observability
// - Deterministic endpoint key generation
//
// # Basic Usage
//
//	// Create a store per resource class
//	details := cache.New[[]byte]("details", 5*time.Minute)
//	summaries := cache.New[[]byte]("summaries", 2*time.Minute)
//
//	// Read through the cache
//	if payload, ok := details.Get(isbn); ok {
//		// Cache hit - serve without a network call
//	}
//
//	// Populate after a fresh fetch
//	details.Set(isbn, payload)
//
//	// Invalidate after a mutation
//	details.Invalidate(isbn)
//
// # Endpoint Keys
//
//	key := cache.Key{
//		Endpoint: "/books",
//		Query:    url.Values{"q": []string{"tolkien"}},
//	}
//	lists.Get(key.String())
//
// # Expiry Semantics
//
// An entry is visible to readers only while now <= expiresAt. An expired
// entry is removed by the Get that observes it and reported as absent, so
// a store never serves stale data but also never runs timers. The stricter
// consequence: Invalidate guarantees the next Get misses, even inside the
// TTL window.
//
// # Metrics
//
// The store exports Prometheus metrics, labeled by store name:
//
//   - catalog_cache_hits_total{store} - Cache hits
//   - catalog_cache_misses_total{store} - Cache misses
//   - catalog_cache_sets_total{store} - Entries written
//   - catalog_cache_evictions_total{store} - Expired entries evicted on access
//   - catalog_cache_invalidations_total{store} - Explicit invalidations
package cache
