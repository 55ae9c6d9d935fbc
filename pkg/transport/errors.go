package transport

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the adapter.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrQuotaBlocked is returned when the quota tracker refuses a request.
	ErrQuotaBlocked = errors.New("request blocked: enrichment quota critical")
)

// ErrorKind classifies adapter failures. Callers branch on the kind
// structurally (never on message text) to decide whether to fall back,
// abort, or stay silent.
type ErrorKind string

const (
	// KindNotFound means the resource is absent at the requested endpoint.
	// Drives fallback-chain progression and self-healing creation.
	KindNotFound ErrorKind = "not_found"

	// KindTransport means a network or server failure. Not retried above
	// the adapter; aborts fallback chains immediately.
	KindTransport ErrorKind = "transport"

	// KindInconsistency means the server reported "not modified" but no
	// stored payload exists to serve. A contract violation between client
	// and server state, never silently recoverable.
	KindInconsistency ErrorKind = "inconsistency"

	// KindCancelled means the caller's context was cancelled. Treated as
	// a no-op at the UI boundary, never surfaced as a failure.
	KindCancelled ErrorKind = "cancelled"
)

// Error is a typed catalog request failure.
type Error struct {
	StatusCode int
	Kind       ErrorKind
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d) on %s: %s: %v",
			e.Kind, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d) on %s: %s",
		e.Kind, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	// Bare context errors count as cancellations.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return ""
}

// IsNotFound reports whether err is a not-found catalog error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// IsInconsistency reports whether err is a validator inconsistency.
func IsInconsistency(err error) bool {
	return KindOf(err) == KindInconsistency
}

// IsTransport reports whether err is a network or server failure.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// Cancelled wraps err as a cancellation for endpoint.
func Cancelled(endpoint string, err error) *Error {
	return &Error{
		Kind:     KindCancelled,
		Endpoint: endpoint,
		Message:  "request cancelled",
		Err:      err,
	}
}
