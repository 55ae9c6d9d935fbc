package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a catalog endpoint response for caching and conditional
// revalidation. Path and query together form the endpoint identity.
type Key struct {
	// Endpoint is the catalog endpoint path (e.g., "/books/9780134685991/enriched")
	Endpoint string

	// Query are the query parameters (e.g., {"q": "tolkien"})
	Query url.Values
}

// String generates a deterministic key string.
// Format: catalog:endpoint:query1=val1:query2=val2
//
// Example:
//
//	catalog:books/9780134685991/enriched
//	catalog:books:q=tolkien
func (k Key) String() string {
	parts := []string{"catalog"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
