// Package health tracks per-provider failure state and cooldown eligibility.
//
// A provider cycles Healthy -> Cooling Down -> Healthy for the lifetime of
// the process. Failures are windowed rather than counted for life, so a
// provider that fails occasionally under normal noise is not permanently
// penalized; only consecutive recent failures trigger cooldown. Cooldown is a
// fixed delay, not exponential backoff. Expiry is pull-based: nothing sweeps
// DownUntil, readers simply observe that it has passed.
package health

import (
	"sync"
	"time"
)

// Options controls when a provider enters cooldown.
type Options struct {
	// MaxFailures is the number of in-window failures that triggers cooldown.
	MaxFailures int
	// Cooldown is how long a provider is excluded after the triggering failure.
	Cooldown time.Duration
	// FailureWindow is the trailing span over which failures count as related.
	FailureWindow time.Duration
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		MaxFailures:   3,
		Cooldown:      60 * time.Second,
		FailureWindow: 5 * time.Minute,
	}
}

// State is a snapshot of one provider's health.
type State struct {
	ProviderID          string    `json:"provider_id"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DownUntil           time.Time `json:"down_until"`
}

// providerState is the mutable per-provider record. lastFailures holds the
// in-window failure timestamps in append order; ConsecutiveFailures always
// equals len(lastFailures).
type providerState struct {
	consecutiveFailures int
	downUntil           time.Time
	lastFailures        []time.Time
}

// Tracker maintains failure counts and cooldown state for all providers.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	opts   Options
	states map[string]*providerState
}

// NewTracker creates a tracker with the given thresholds. Zero or negative
// option values fall back to the production defaults.
func NewTracker(opts Options) *Tracker {
	def := DefaultOptions()
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = def.MaxFailures
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.FailureWindow <= 0 {
		opts.FailureWindow = def.FailureWindow
	}
	return &Tracker{
		opts:   opts,
		states: make(map[string]*providerState),
	}
}

// RecordSuccess clears the failure count and any cooldown for the provider.
// Unknown providers are treated as an implicit zero-state create.
func (t *Tracker) RecordSuccess(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.getOrCreate(providerID)
	state.consecutiveFailures = 0
	state.downUntil = time.Time{}
	state.lastFailures = state.lastFailures[:0]
}

// RecordFailure records a failure observed at the given time. Failures older
// than the failure window are dropped first; if the windowed count reaches
// MaxFailures the provider enters cooldown until at + Cooldown.
func (t *Tracker) RecordFailure(providerID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.getOrCreate(providerID)
	state.lastFailures = append(state.lastFailures, at)

	cutoff := at.Add(-t.opts.FailureWindow)
	retained := state.lastFailures[:0]
	for _, ts := range state.lastFailures {
		if ts.After(cutoff) {
			retained = append(retained, ts)
		}
	}
	state.lastFailures = retained
	state.consecutiveFailures = len(retained)

	if state.consecutiveFailures >= t.opts.MaxFailures {
		state.downUntil = at.Add(t.opts.Cooldown)
	}
}

// IsEligible reports whether the provider may receive new requests at the
// given time. It is a pure read: an elapsed cooldown is observed, never
// cleared, so concurrent readers need no write lock.
func (t *Tracker) IsEligible(providerID string, at time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.states[providerID]
	if !ok {
		return true
	}
	return state.downUntil.IsZero() || !at.Before(state.downUntil)
}

// Snapshot returns a copy of the provider's current state. The second return
// is false if the provider has never been recorded.
func (t *Tracker) Snapshot(providerID string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.states[providerID]
	if !ok {
		return State{ProviderID: providerID}, false
	}
	return State{
		ProviderID:          providerID,
		ConsecutiveFailures: state.consecutiveFailures,
		DownUntil:           state.downUntil,
	}, true
}

// Reset drops all recorded state. Intended for test isolation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]*providerState)
}

func (t *Tracker) getOrCreate(providerID string) *providerState {
	state, ok := t.states[providerID]
	if !ok {
		state = &providerState{}
		t.states[providerID] = state
	}
	return state
}
