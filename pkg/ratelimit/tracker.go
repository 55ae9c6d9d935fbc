package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	catalogQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_quota_remaining",
		Help: "Metered calls remaining in the current enrichment quota window",
	})

	catalogQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_quota_blocks_total",
		Help: "Total number of requests blocked due to exhausted quota or active cooldown",
	})

	catalogQuotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_quota_throttles_total",
		Help: "Total number of requests throttled due to low remaining quota",
	})
)

// Tracker monitors enrichment-quota headers and gates requests. State is
// held in memory; when a Redis client is supplied it is mirrored there so
// that all instances sharing the backend share the cooldown.
type Tracker struct {
	redis  *redis.Client // nil for in-process-only tracking
	logger zerolog.Logger

	mu    sync.Mutex
	local QuotaState
}

// NewTracker creates a quota tracker. redisClient may be nil; the tracker
// then keeps state in-process only.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		local: QuotaState{
			Remaining: -1, // unknown until the first response
			Healthy:   true,
		},
	}
}

// GetState returns the current quota state, preferring Redis when configured.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get quota remaining: %w", err)
	}
	if err == redis.Nil {
		t.logger.Debug().Msg("No quota state in Redis, returning default healthy state")
		return &QuotaState{
			Remaining:  -1,
			LastUpdate: time.Now(),
			Healthy:    true,
		}, nil
	}

	cooldownUnix, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &QuotaState{
		Remaining:  remaining,
		LastUpdate: lastUpdate,
	}
	if cooldownUnix > 0 {
		state.CooldownUntil = time.Unix(cooldownUnix, 0)
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromResponse parses quota headers from a catalog response and
// updates the shared state. A 429 status enters a cooldown derived from
// Retry-After (default 60s when the header is missing or unparseable).
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := time.Now()
	state := QuotaState{
		Remaining:  -1,
		LastUpdate: now,
	}

	if remainStr := headers.Get("X-RateLimit-Remaining"); remainStr != "" {
		remain, err := strconv.Atoi(remainStr)
		if err != nil {
			return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
		}
		state.Remaining = remain
	}

	if statusCode == http.StatusTooManyRequests {
		cooldown := 60 * time.Second
		if retryStr := headers.Get("Retry-After"); retryStr != "" {
			if secs, err := strconv.Atoi(retryStr); err == nil && secs > 0 {
				cooldown = time.Duration(secs) * time.Second
			}
		}
		state.CooldownUntil = now.Add(cooldown)
	} else if state.Remaining < 0 {
		// No quota signal on this response, nothing to record.
		return nil
	}

	state.UpdateHealth()

	t.mu.Lock()
	// Keep an existing cooldown that outlasts this response's view.
	if t.local.CooldownUntil.After(state.CooldownUntil) {
		state.CooldownUntil = t.local.CooldownUntil
		state.UpdateHealth()
	}
	t.local = state
	t.mu.Unlock()

	if state.Remaining >= 0 {
		catalogQuotaRemaining.Set(float64(state.Remaining))
	}

	if t.redis != nil {
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
		pipe.Set(ctx, RedisKeyCooldownUntil, state.CooldownUntil.Unix(), 0)

		lastUpdateJSON, err := json.Marshal(state.LastUpdate)
		if err != nil {
			return fmt.Errorf("marshal last update: %w", err)
		}
		pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store quota state in redis: %w", err)
		}
	}

	logEvent := t.logger.Info().
		Int("remaining", state.Remaining).
		Bool("healthy", state.Healthy)

	if state.NeedsBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("cooldown_until", state.CooldownUntil).
			Msg("Enrichment quota exhausted - requests will be blocked")
	} else if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Enrichment quota low - requests will be throttled")
	} else {
		logEvent.Msg("Enrichment quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed under the
// current quota state. Returns false during a cooldown or when the
// remaining allowance is critical. May sleep briefly when throttling.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReady()).
			Msg("Enrichment quota critical - blocking request")

		catalogQuotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Enrichment quota warning - throttling request")

		catalogQuotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}
