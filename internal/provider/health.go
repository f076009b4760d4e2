// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider

import (
	"sync"
	"time"

	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
	"github.com/sarathi-ai/sarathi/pkg/health"
)

// Defaults for the circuit breaker. MinSamples guards against opening the
// circuit on a single cold-start failure.
const (
	DefaultErrorThreshold = 0.5
	DefaultMinSamples     = 4
	DefaultCooldown       = 5 * time.Minute
)

// HealthConfig tunes a provider's circuit breaker.
type HealthConfig struct {
	// ErrorThreshold is the error ratio (errors/requests) above which
	// the circuit opens.
	ErrorThreshold float64
	// MinSamples is the minimum number of recorded requests before the
	// threshold is evaluated.
	MinSamples int64
	// Cooldown is how long the circuit stays open before admitting a
	// half-open probe.
	Cooldown time.Duration
}

// DefaultHealthConfig returns the default circuit breaker tuning.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		ErrorThreshold: DefaultErrorThreshold,
		MinSamples:     DefaultMinSamples,
		Cooldown:       DefaultCooldown,
	}
}

// HealthTracker counts request outcomes for one provider and implements
// the circuit breaker state machine:
//
//	Closed    -> Open      error ratio exceeds threshold over >= MinSamples
//	Open      -> HalfOpen  cooldown elapsed (time-based, on next check)
//	HalfOpen  -> Closed    the single admitted probe succeeds
//	HalfOpen  -> Open      the probe fails; cooldown restarts
//
// Each provider owns exactly one tracker; all methods are safe for
// concurrent use. The half-open state is derived from the open timestamp
// rather than stored, so recovery needs no background timer.
type HealthTracker struct {
	mu  sync.Mutex
	cfg HealthConfig

	requests  int64
	successes int64
	errors    int64

	open          bool
	openedAt      time.Time
	lastErrorAt   time.Time
	probeInFlight bool

	nowFunc func() time.Time // injectable for deterministic tests
}

// NewHealthTracker creates a tracker in the closed state with zero
// counters. Zero-valued config fields fall back to the defaults.
func NewHealthTracker(cfg HealthConfig) (*HealthTracker, error) {
	if cfg.ErrorThreshold == 0 {
		cfg.ErrorThreshold = DefaultErrorThreshold
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}

	if cfg.ErrorThreshold < 0 || cfg.ErrorThreshold > 1 {
		return nil, sarathierr.Errorf(sarathierr.CodeConfigValidateInvalidValue,
			"health tracker error threshold must be in (0, 1], got %v", cfg.ErrorThreshold)
	}
	if cfg.MinSamples < 0 {
		return nil, sarathierr.Errorf(sarathierr.CodeConfigValidateInvalidValue,
			"health tracker min samples must be non-negative, got %d", cfg.MinSamples)
	}
	if cfg.Cooldown < 0 {
		return nil, sarathierr.Errorf(sarathierr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cfg.Cooldown)
	}

	return &HealthTracker{
		cfg:     cfg,
		nowFunc: time.Now,
	}, nil
}

// IsAvailable reports whether the manager should attempt this provider
// right now. In the half-open state the first caller claims the single
// probe slot; subsequent callers are refused until the probe's outcome
// is recorded.
func (h *HealthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return true
	}

	if h.nowFunc().Sub(h.openedAt) < h.cfg.Cooldown {
		return false
	}

	// Half-open: admit exactly one probe.
	if h.probeInFlight {
		return false
	}
	h.probeInFlight = true
	return true
}

// RecordSuccess increments the success and request counters. A successful
// half-open probe re-closes the circuit.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests++
	h.successes++

	if h.open {
		h.open = false
		h.probeInFlight = false
	}
}

// RecordError increments the error and request counters and may trip the
// circuit: in the closed state when the error ratio exceeds the threshold
// over the minimum sample size, or immediately when a half-open probe
// fails (restarting the cooldown). Reports whether this error moved the
// circuit into the open state.
func (h *HealthTracker) RecordError() (tripped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFunc()
	h.requests++
	h.errors++
	h.lastErrorAt = now

	if h.open {
		// A failed half-open probe re-opens with a fresh cooldown. Errors
		// from attempts that lost the race with the trip neither restart
		// the cooldown nor report a transition.
		if h.probeInFlight {
			h.openedAt = now
			h.probeInFlight = false
			return true
		}
		return false
	}

	if h.requests >= h.cfg.MinSamples &&
		float64(h.errors)/float64(h.requests) > h.cfg.ErrorThreshold {
		h.open = true
		h.openedAt = now
		h.probeInFlight = false
		return true
	}
	return false
}

// ReleaseProbe returns an unconsumed half-open probe slot. Used when a
// probe attempt ends without a provider outcome (caller cancellation), so
// the next caller after the cooldown can still be admitted. Safe to call
// when no probe is in flight.
func (h *HealthTracker) ReleaseProbe() {
	h.mu.Lock()
	h.probeInFlight = false
	h.mu.Unlock()
}

// State returns the current circuit state. An open circuit whose cooldown
// has elapsed reports half-open.
func (h *HealthTracker) State() health.CircuitState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

// stateLocked derives the circuit state. Caller must hold h.mu.
func (h *HealthTracker) stateLocked() health.CircuitState {
	if !h.open {
		return health.StateClosed
	}
	if h.nowFunc().Sub(h.openedAt) >= h.cfg.Cooldown {
		return health.StateHalfOpen
	}
	return health.StateOpen
}

// Counters returns the raw request/success/error counts.
func (h *HealthTracker) Counters() (requests, successes, errors int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests, h.successes, h.errors
}

// Snapshot returns a point-in-time view of the tracker safe to serialize.
func (h *HealthTracker) Snapshot() health.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := health.Snapshot{
		Requests:  h.requests,
		Successes: h.successes,
		Errors:    h.errors,
		State:     h.stateLocked(),
	}

	if h.requests > 0 {
		s.ErrorRate = float64(h.errors) / float64(h.requests)
	}
	if h.errors > 0 {
		t := h.lastErrorAt
		s.LastErrorAt = &t
	}
	if h.open {
		t := h.openedAt
		s.OpenedAt = &t
	}

	switch s.State {
	case health.StateClosed:
		s.Available = true
	case health.StateHalfOpen:
		s.Available = !h.probeInFlight
		s.ProbeAllowed = !h.probeInFlight
	}

	return s
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}
