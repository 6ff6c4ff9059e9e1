package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderLimiter_BurstThenDeny(t *testing.T) {
	pl := NewProviderLimiter(ProviderLimiterConfig{RPM: 60, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, pl.Allow("openai"), "request %d within burst", i)
	}
	assert.False(t, pl.Allow("openai"), "burst exhausted")
}

func TestProviderLimiter_ProvidersIsolated(t *testing.T) {
	pl := NewProviderLimiter(ProviderLimiterConfig{RPM: 60, Burst: 1})

	assert.True(t, pl.Allow("openai"))
	assert.False(t, pl.Allow("openai"))
	assert.True(t, pl.Allow("anthropic"), "other providers keep their own bucket")
}

func TestProviderLimiter_Defaults(t *testing.T) {
	pl := NewProviderLimiter(ProviderLimiterConfig{})

	for i := 0; i < 10; i++ {
		assert.True(t, pl.Allow("openai"))
	}
	assert.False(t, pl.Allow("openai"))
}

func TestProviderLimiter_Cleanup(t *testing.T) {
	pl := NewProviderLimiter(ProviderLimiterConfig{RPM: 60, Burst: 1, CleanupTTL: time.Millisecond})

	pl.Allow("openai")
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, pl.Cleanup())
	assert.Equal(t, 0, pl.Cleanup(), "idempotent once empty")

	// A fresh limiter means a fresh bucket.
	assert.True(t, pl.Allow("openai"))
}
