// Package ratelimit tracks the catalog backend's enrichment-quota state
// and gates requests during cooldowns. The backend fronts metered upstream
// providers (book enrichment, AI summarization) and surfaces their quotas
// as 429 responses with Retry-After plus an X-RateLimit-Remaining header
// on ordinary responses.
package ratelimit

import (
	"time"
)

// Redis keys for shared quota state storage.
const (
	RedisKeyRemaining     = "catalog:rate_limit:remaining"
	RedisKeyCooldownUntil = "catalog:rate_limit:cooldown_until"
	RedisKeyLastUpdate    = "catalog:rate_limit:last_update"
)

// Thresholds for quota decisions.
const (
	// RemainingCritical blocks all quota-metered requests when the
	// remaining allowance falls below this value. Burning the last calls
	// of a daily quota on speculative fetches starves deliberate ones.
	RemainingCritical = 2

	// RemainingWarning applies throttling when the remaining allowance
	// falls below this value.
	RemainingWarning = 10

	// RemainingHealthy indicates normal operation.
	RemainingHealthy = 25
)

// QuotaState is the current enrichment-quota state as last reported by the
// catalog backend. When Redis is configured the state is shared across all
// client instances.
type QuotaState struct {
	// Remaining is the number of metered calls left in the current window,
	// from the X-RateLimit-Remaining header. Negative means unknown.
	Remaining int `json:"remaining"`

	// CooldownUntil is when a 429-imposed cooldown ends. Zero when no
	// cooldown is active. Derived from the Retry-After header.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// Healthy indicates the quota is in a healthy state.
	Healthy bool `json:"healthy"`
}

// InCooldown returns true while a 429-imposed cooldown is active.
func (s *QuotaState) InCooldown() bool {
	return time.Now().Before(s.CooldownUntil)
}

// NeedsBlock returns true if requests should be blocked outright.
func (s *QuotaState) NeedsBlock() bool {
	if s.InCooldown() {
		return true
	}
	return s.Remaining >= 0 && s.Remaining < RemainingCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining >= 0 && s.Remaining < RemainingWarning && !s.NeedsBlock()
}

// TimeUntilReady returns the duration until the cooldown ends.
// Returns 0 if no cooldown is active.
func (s *QuotaState) TimeUntilReady() time.Duration {
	d := time.Until(s.CooldownUntil)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates the Healthy field from the current state.
func (s *QuotaState) UpdateHealth() {
	s.Healthy = !s.InCooldown() && (s.Remaining < 0 || s.Remaining >= RemainingHealthy)
}

// IsStale returns true if the state is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
