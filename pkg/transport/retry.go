package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBackoff caps the exponential backoff between attempts.
const maxBackoff = 10 * time.Second

// shouldRetryError reports whether a failed attempt is worth repeating.
// Only network failures and 5xx responses qualify: 4xx outcomes are
// stable, cancellations are final, inconsistencies need a fresh
// unconditional fetch decided by the caller, and quota blocks are
// deliberate gating.
func shouldRetryError(err error) bool {
	if errors.Is(err, ErrQuotaBlocked) {
		return false
	}
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	if te.Kind != KindTransport {
		return false
	}
	return te.StatusCode == 0 || te.StatusCode >= 500
}

// retryWithBackoff executes fn with jittered exponential backoff for
// retriable failures. MaxRetries 0 means a single attempt.
func retryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	maxAttempts := cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetryError(err) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		retriesTotal.Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.Observe(jitter.Seconds())

		log.Debug().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return Cancelled("", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * 2)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	// Both wrapped: errors.Is sees the exhaustion, errors.As still
	// classifies the underlying failure kind.
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
