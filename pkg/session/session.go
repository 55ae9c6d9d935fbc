// Package session scopes cancellation to one user-initiated detail-view
// lifecycle. Opening a new session for a surface supersedes the previous
// one: its in-flight work signal is cancelled and its callback chain must
// short-circuit without producing visible results.
package session

import (
	"context"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sessions_opened_total",
		Help: "Total sessions opened by surface",
	}, []string{"surface"})

	sessionsSuperseded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sessions_superseded_total",
		Help: "Total sessions cancelled because a newer one opened on the same surface",
	}, []string{"surface"})
)

// State of a session. Open is the only non-terminal state.
type State string

const (
	// StateOpen means downstream work may still produce visible results.
	StateOpen State = "open"

	// StateSettled means the session's work completed. Terminal.
	StateSettled State = "settled"

	// StateCancelled means the session was superseded or closed. Terminal.
	StateCancelled State = "cancelled"
)

// Session is a cancellation scope with a single owner.
type Session struct {
	id      string
	surface string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
}

// ID returns the session's identifier, for log correlation.
func (s *Session) ID() string {
	return s.id
}

// Surface returns the logical UI surface that owns the session.
func (s *Session) Surface() string {
	return s.surface
}

// Context returns the session's cancellation context. All downstream
// calls made on behalf of the session must carry it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Alive reports whether the session may still produce visible results.
func (s *Session) Alive() bool {
	return s.State() == StateOpen
}

// Cancel moves an open session to cancelled and cancels its context.
// Cancelling a settled or already-cancelled session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	s.mu.Unlock()

	s.cancel()
	s.logger.Debug().Msg("Session cancelled")
}

// Settle moves an open session to settled. Terminal; a later Cancel is
// a no-op. The context is released since no further work runs under it.
func (s *Session) Settle() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateSettled
	s.mu.Unlock()

	s.cancel()
	s.logger.Debug().Msg("Session settled")
}

// Controller owns at most one active session per logical UI surface.
type Controller struct {
	logger zerolog.Logger

	mu      sync.Mutex
	current map[string]*Session
}

// NewController creates a session controller with no active sessions.
func NewController() *Controller {
	return &Controller{
		logger:  log.With().Str("component", "session").Logger(),
		current: make(map[string]*Session),
	}
}

// Open creates a new session for surface, cancelling and discarding any
// previous session for that surface first.
func (c *Controller) Open(surface string) *Session {
	id := shortuuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		surface: surface,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateOpen,
		logger: c.logger.With().
			Str("surface", surface).
			Str("session_id", id).
			Logger(),
	}

	c.mu.Lock()
	prev := c.current[surface]
	c.current[surface] = s
	c.mu.Unlock()

	if prev != nil && prev.Alive() {
		sessionsSuperseded.WithLabelValues(surface).Inc()
		c.logger.Debug().
			Str("surface", surface).
			Str("superseded", prev.ID()).
			Str("by", id).
			Msg("Superseding session")
		prev.Cancel()
	}

	sessionsOpened.WithLabelValues(surface).Inc()
	return s
}

// Current returns the active session for surface, or nil.
func (c *Controller) Current(surface string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current[surface]
}
