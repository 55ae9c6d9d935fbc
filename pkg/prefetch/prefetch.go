// Package prefetch warms the detail cache for batches of ISBNs in
// parallel, bounded so a large batch cannot starve interactive traffic.
package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds prefetch configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel warm-ups.
	// Detail retrievals may fan out across fallback endpoints, so this
	// stays well below the backend's connection comfort zone.
	MaxConcurrency int
	// Timeout per ISBN warm-up
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		Timeout:        15 * time.Second,
	}
}

// DetailWarmer is the client-side operation that populates the detail
// cache for one ISBN.
type DetailWarmer interface {
	WarmDetail(ctx context.Context, isbn string) error
}

// Result reports a batch warm-up outcome.
type Result struct {
	Warmed int
	Failed map[string]error
}

// Warmer runs bounded parallel cache warm-ups.
type Warmer struct {
	warmer DetailWarmer
	config Config
}

// NewWarmer creates a warmer over the given client operation.
func NewWarmer(warmer DetailWarmer, config Config) *Warmer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		warmer: warmer,
		config: config,
	}
}

// Warm fetches details for every ISBN, at most MaxConcurrency at a
// time. Individual failures are collected rather than aborting the
// batch; only context cancellation stops it early.
func (w *Warmer) Warm(ctx context.Context, isbns []string) (*Result, error) {
	start := time.Now()

	log.Info().
		Int("isbns", len(isbns)).
		Int("concurrency", w.config.MaxConcurrency).
		Msg("Starting cache warm-up")

	result := &Result{Failed: make(map[string]error)}
	var failedMu sync.Mutex
	var warmed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.MaxConcurrency)

	for _, isbn := range isbns {
		isbn := isbn
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			warmCtx, cancel := context.WithTimeout(gctx, w.config.Timeout)
			defer cancel()

			if err := w.warmer.WarmDetail(warmCtx, isbn); err != nil {
				// A missing or failing book must not sink the batch.
				log.Warn().Err(err).Str("isbn", isbn).Msg("Warm-up failed")
				failedMu.Lock()
				result.Failed[isbn] = err
				failedMu.Unlock()
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}

	err := g.Wait()
	result.Warmed = int(warmed.Load())

	log.Info().
		Int("warmed", result.Warmed).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Cache warm-up complete")

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, err
}
