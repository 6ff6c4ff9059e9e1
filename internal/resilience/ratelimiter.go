// Package resilience provides request-side protection for upstream
// providers: a per-provider token bucket applied before selection, so a
// misbehaving caller cannot burn a provider's quota and push it into
// cooldown.
package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProviderLimiterConfig contains configuration for the per-provider limiter.
type ProviderLimiterConfig struct {
	// RPM is the allowed requests per minute per provider.
	RPM int
	// Burst is the bucket capacity.
	Burst int
	// CleanupTTL is how long an idle provider's limiter is kept.
	CleanupTTL time.Duration
}

// ProviderLimiter rate-limits requests per provider.
type ProviderLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	limit      rate.Limit
	burst      int
	cleanupTTL time.Duration
}

// NewProviderLimiter creates a limiter. Zero config fields get defaults of
// 60 RPM, burst 10, ten minute cleanup TTL.
func NewProviderLimiter(cfg ProviderLimiterConfig) *ProviderLimiter {
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 10 * time.Minute
	}
	return &ProviderLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		limit:      rate.Limit(float64(cfg.RPM) / 60.0),
		burst:      cfg.Burst,
		cleanupTTL: cfg.CleanupTTL,
	}
}

// Allow reports whether the provider may be attempted now.
func (pl *ProviderLimiter) Allow(providerID string) bool {
	return pl.limiter(providerID).Allow()
}

// Tokens returns the current token count for a provider, for health output.
func (pl *ProviderLimiter) Tokens(providerID string) float64 {
	return pl.limiter(providerID).Tokens()
}

// Cleanup drops limiters idle past the TTL and returns how many were
// removed. Callers run this periodically; idle buckets refill to full
// anyway, so dropping them loses nothing.
func (pl *ProviderLimiter) Cleanup() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	cutoff := time.Now().Add(-pl.cleanupTTL)
	removed := 0
	for id, last := range pl.lastAccess {
		if last.Before(cutoff) {
			delete(pl.limiters, id)
			delete(pl.lastAccess, id)
			removed++
		}
	}
	return removed
}

func (pl *ProviderLimiter) limiter(providerID string) *rate.Limiter {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	lim, ok := pl.limiters[providerID]
	if !ok {
		lim = rate.NewLimiter(pl.limit, pl.burst)
		pl.limiters[providerID] = lim
	}
	pl.lastAccess[providerID] = time.Now()
	return lim
}
