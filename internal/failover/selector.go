// Package failover selects which upstream provider handles a request.
//
// Selection is strict priority order: ascending priority number, first
// eligible wins. No randomization and no load weighting, so the outcome for
// a given health state is deterministic. Selection itself never mutates
// health state; only the caller's RecordSuccess/RecordFailure do, after the
// attempt.
package failover

import (
	"sort"
	"time"

	"github.com/specificity-ai/specmux/pkg/errors"
	"github.com/specificity-ai/specmux/pkg/provider"
)

// HealthReporter answers eligibility questions for providers. Implemented by
// health.Tracker.
type HealthReporter interface {
	IsEligible(providerID string, at time.Time) bool
}

// Selector picks the first eligible provider by priority.
type Selector struct {
	providers []provider.Config
	health    HealthReporter
}

// NewSelector creates a selector over the given providers. Disabled
// providers are dropped up front; the rest are ordered by ascending
// priority, ties broken by name for stability.
func NewSelector(providers []provider.Config, health HealthReporter) *Selector {
	active := make([]provider.Config, 0, len(providers))
	for _, p := range providers {
		if p.Enabled {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].Name < active[j].Name
	})
	return &Selector{providers: active, health: health}
}

// Pick returns the name of the first eligible provider at the given time, or
// errors.ErrAllProvidersDown when none is eligible.
func (s *Selector) Pick(at time.Time) (string, error) {
	return s.PickExcluding(at, nil)
}

// PickExcluding is Pick with a skip set. Callers walking the failover chain
// pass the providers already attempted this request so a below-threshold
// provider is not retried within the same consult.
func (s *Selector) PickExcluding(at time.Time, skip map[string]bool) (string, error) {
	for _, p := range s.providers {
		if skip[p.Name] {
			continue
		}
		if s.health.IsEligible(p.Name, at) {
			return p.Name, nil
		}
	}
	return "", errors.ErrAllProvidersDown
}

// Providers returns the active providers in selection order.
func (s *Selector) Providers() []provider.Config {
	out := make([]provider.Config, len(s.providers))
	copy(out, s.providers)
	return out
}
