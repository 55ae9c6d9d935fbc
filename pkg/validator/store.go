// Package validator stores revalidation tokens (ETags) and the payloads
// they were issued with, keyed by endpoint identity. A record lets the
// transport adapter ask the catalog "has this changed?" without
// re-transferring the body, and serve the stored payload on a 304.
package validator

import (
	"context"
	"errors"
)

// ErrNoRecord indicates no validator record exists for the endpoint.
var ErrNoRecord = errors.New("no validator record")

// Record is the last-seen revalidation token for an endpoint and the
// payload the server issued it with. Records are replaced wholesale on
// every fresh response; they are never partially updated.
type Record struct {
	// Token is the opaque revision identifier (ETag) from the server.
	Token string `json:"token"`

	// Payload is the response body the token was issued with.
	Payload []byte `json:"payload"`
}

// Store maps endpoint identity to validator records. Records never expire
// by time; the server is the source of truth for "changed or not", so only
// explicit invalidation removes a record.
type Store interface {
	// Get returns the record for endpointKey, or ErrNoRecord.
	Get(ctx context.Context, endpointKey string) (*Record, error)

	// Put replaces the record for endpointKey wholesale.
	Put(ctx context.Context, endpointKey, token string, payload []byte) error

	// Invalidate removes the record for endpointKey, if any.
	Invalidate(ctx context.Context, endpointKey string) error
}
