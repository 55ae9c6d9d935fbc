// Package resolver retrieves a book's detail payload by trying an ordered
// chain of catalog endpoints. Enrichment is aggregated from independent
// upstream providers, so the chain degrades: a record may be missing from
// local storage (healed by creating it), or a rich aggregation may be down
// while a simpler endpoint still answers.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fleurdelys0/library-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	fallbackAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fallback_attempts_total",
		Help: "Total fallback chain step attempts by step",
	}, []string{"step"}) // "enriched", "create", "retry", "enhanced", "basic"

	fallbackExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_fallback_exhausted_total",
		Help: "Total resolutions where every fallback step failed",
	})
)

// ErrUnavailable is the terminal error when every strategy failed.
var ErrUnavailable = errors.New("book detail unavailable")

// CatalogFetcher is the set of retrieval strategies the resolver orders.
// Implemented by the client facade over the transport adapter.
type CatalogFetcher interface {
	// FetchEnriched retrieves the enriched detail aggregation.
	FetchEnriched(ctx context.Context, isbn string) ([]byte, error)

	// CreateFromISBN asks the catalog to create the book record from its
	// ISBN, pulling metadata from the upstream provider.
	CreateFromISBN(ctx context.Context, isbn string) error

	// FetchEnhanced retrieves the secondary detail aggregation.
	FetchEnhanced(ctx context.Context, isbn string) ([]byte, error)

	// FetchBasic retrieves the minimal locally-stored record.
	FetchBasic(ctx context.Context, isbn string) ([]byte, error)
}

// Resolver runs the fallback chain.
type Resolver struct {
	fetcher CatalogFetcher
	logger  zerolog.Logger
}

// New creates a resolver over the given strategies.
func New(fetcher CatalogFetcher) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		logger:  log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve fetches the best available detail payload for isbn:
//
//  1. the enriched aggregation;
//  2. on not-found: create the record from the ISBN, retry enriched once;
//  3. on continued not-found: the secondary aggregation;
//  4. on continued not-found: the basic record;
//  5. otherwise a terminal unavailable error naming the ISBN.
//
// Only a not-found outcome advances the chain. A transport or server
// failure aborts immediately (a different endpoint will not fix a broken
// network), and cancellation propagates as cancellation, never as
// not-found.
func (r *Resolver) Resolve(ctx context.Context, isbn string) ([]byte, error) {
	// Step 1: enriched detail
	payload, err := r.attempt(ctx, "enriched", isbn, r.fetcher.FetchEnriched)
	if err == nil {
		return payload, nil
	}
	if !transport.IsNotFound(err) {
		return nil, err
	}

	// Step 2: the record may simply not exist locally yet. Create it and
	// retry the enriched endpoint once.
	r.logger.Debug().Str("isbn", isbn).Msg("Enriched detail missing, creating record")
	fallbackAttempts.WithLabelValues("create").Inc()
	if cerr := r.checkCancelled(ctx, isbn); cerr != nil {
		return nil, cerr
	}
	createErr := r.fetcher.CreateFromISBN(ctx, isbn)
	if createErr != nil && !transport.IsNotFound(createErr) {
		return nil, createErr
	}
	if createErr == nil {
		payload, err = r.attempt(ctx, "retry", isbn, r.fetcher.FetchEnriched)
		if err == nil {
			return payload, nil
		}
		if !transport.IsNotFound(err) {
			return nil, err
		}
	}

	// Step 3: secondary aggregation
	payload, err = r.attempt(ctx, "enhanced", isbn, r.fetcher.FetchEnhanced)
	if err == nil {
		return payload, nil
	}
	if !transport.IsNotFound(err) {
		return nil, err
	}

	// Step 4: basic record
	payload, err = r.attempt(ctx, "basic", isbn, r.fetcher.FetchBasic)
	if err == nil {
		return payload, nil
	}
	if !transport.IsNotFound(err) {
		return nil, err
	}

	// Step 5: every strategy failed
	fallbackExhausted.Inc()
	r.logger.Warn().Str("isbn", isbn).Msg("Every detail strategy failed")
	return nil, fmt.Errorf("%w: isbn %s", ErrUnavailable, isbn)
}

// attempt runs one chain step with its cancellation check.
func (r *Resolver) attempt(ctx context.Context, step, isbn string, fetch func(context.Context, string) ([]byte, error)) ([]byte, error) {
	if err := r.checkCancelled(ctx, isbn); err != nil {
		return nil, err
	}

	fallbackAttempts.WithLabelValues(step).Inc()
	payload, err := fetch(ctx, isbn)
	if err != nil {
		r.logger.Debug().
			Str("isbn", isbn).
			Str("step", step).
			Str("kind", string(transport.KindOf(err))).
			Msg("Detail strategy failed")
	}
	return payload, err
}

// checkCancelled stops the chain at suspension points once the session
// is gone, so a cancelled resolution never reads as not-found.
func (r *Resolver) checkCancelled(ctx context.Context, isbn string) error {
	if ctx.Err() != nil {
		return transport.Cancelled("/books/"+isbn, ctx.Err())
	}
	return nil
}
