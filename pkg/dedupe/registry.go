// Package dedupe coalesces concurrent retrievals of the same resource.
// For any key at most one underlying retrieval is in flight; every caller
// that asks for the key while it is pending shares the same eventual
// result, success or failure.
package dedupe

import (
	"context"
	"sync"

	"github.com/Fleurdelys0/library-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	dedupStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_dedup_starts_total",
		Help: "Total retrieval operations started by the in-flight registry",
	})

	dedupJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_dedup_joins_total",
		Help: "Total callers that joined an already-pending retrieval",
	})

	dedupAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_dedup_aborts_total",
		Help: "Total pending retrievals aborted after their last waiter detached",
	})
)

// Cache is the read-through store consulted before starting a retrieval.
// Satisfied by *cache.Store[[]byte].
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// operation is a single pending retrieval shared by all its waiters.
type operation struct {
	done    chan struct{}
	payload []byte
	err     error
	waiters int
	settled bool
	cancel  context.CancelFunc
}

// Registry maps resource keys to their single pending retrieval.
type Registry struct {
	mu     sync.Mutex
	ops    map[string]*operation
	logger zerolog.Logger
}

// NewRegistry creates an empty in-flight registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:    make(map[string]*operation),
		logger: log.With().Str("component", "dedupe").Logger(),
	}
}

// Pending returns the number of retrievals currently in flight.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// Fetch returns the value for key: joining a pending retrieval if one
// exists, else serving the cache, else starting factory as the key's
// single retrieval. On settlement the operation is removed from the
// registry first, then (on success) the cache is populated, then the
// identical result is delivered to every waiter.
//
// The retrieval runs on a context detached from any single caller. A
// caller whose own context ends gets a cancelled error and detaches;
// the retrieval itself is aborted only when its last waiter has
// detached before settlement.
func (r *Registry) Fetch(ctx context.Context, key string, c Cache, factory func(context.Context) ([]byte, error)) ([]byte, error) {
	r.mu.Lock()
	if op, ok := r.ops[key]; ok {
		op.waiters++
		r.mu.Unlock()
		dedupJoins.Inc()
		r.logger.Debug().Str("key", key).Msg("Joined pending retrieval")
		return r.wait(ctx, key, op)
	}

	// No pending retrieval: the cache answers without touching the registry.
	if c != nil {
		if v, ok := c.Get(key); ok {
			r.mu.Unlock()
			return v, nil
		}
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op := &operation{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	r.ops[key] = op
	r.mu.Unlock()

	dedupStarts.Inc()
	go r.run(opCtx, key, c, factory, op)

	return r.wait(ctx, key, op)
}

// run executes the retrieval and settles the operation.
func (r *Registry) run(opCtx context.Context, key string, c Cache, factory func(context.Context) ([]byte, error), op *operation) {
	payload, err := factory(opCtx)

	r.mu.Lock()
	delete(r.ops, key) // registry entry goes before anything else
	op.settled = true
	op.payload = payload
	op.err = err
	r.mu.Unlock()

	if err == nil && c != nil {
		c.Set(key, payload)
	}

	close(op.done)
	op.cancel()
}

// wait blocks until the operation settles or the caller's context ends.
func (r *Registry) wait(ctx context.Context, key string, op *operation) ([]byte, error) {
	select {
	case <-op.done:
		if op.err != nil {
			return nil, op.err
		}
		return op.payload, nil
	case <-ctx.Done():
		r.mu.Lock()
		op.waiters--
		abort := op.waiters == 0 && !op.settled
		r.mu.Unlock()

		if abort {
			dedupAborts.Inc()
			r.logger.Debug().Str("key", key).Msg("Last waiter detached, aborting retrieval")
			op.cancel()
		}
		return nil, transport.Cancelled(key, ctx.Err())
	}
}
