package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		MaxFailures:   3,
		Cooldown:      60 * time.Second,
		FailureWindow: 5 * time.Minute,
	}
}

func TestTracker_EligibleByDefault(t *testing.T) {
	tr := NewTracker(testOptions())

	assert.True(t, tr.IsEligible("never-seen", base))
}

func TestTracker_CooldownAfterThreshold(t *testing.T) {
	tr := NewTracker(testOptions())

	tr.RecordFailure("openai", base)
	tr.RecordFailure("openai", base.Add(time.Second))
	assert.True(t, tr.IsEligible("openai", base.Add(2*time.Second)), "below threshold")

	tr.RecordFailure("openai", base.Add(2*time.Second))
	assert.False(t, tr.IsEligible("openai", base.Add(3*time.Second)), "threshold reached")

	// Cooldown runs from the triggering failure's time.
	assert.False(t, tr.IsEligible("openai", base.Add(2*time.Second).Add(59*time.Second)))
	assert.True(t, tr.IsEligible("openai", base.Add(2*time.Second).Add(60*time.Second)))
}

func TestTracker_SuccessResetsState(t *testing.T) {
	tr := NewTracker(testOptions())

	for i := 0; i < 3; i++ {
		tr.RecordFailure("openai", base.Add(time.Duration(i)*time.Second))
	}
	require.False(t, tr.IsEligible("openai", base.Add(3*time.Second)))

	tr.RecordSuccess("openai")

	assert.True(t, tr.IsEligible("openai", base.Add(3*time.Second)))
	state, ok := tr.Snapshot("openai")
	require.True(t, ok)
	assert.Equal(t, 0, state.ConsecutiveFailures)
	assert.True(t, state.DownUntil.IsZero())
}

func TestTracker_SuccessOnUnknownProviderIsNoop(t *testing.T) {
	tr := NewTracker(testOptions())

	tr.RecordSuccess("fresh")

	assert.True(t, tr.IsEligible("fresh", base))
	state, ok := tr.Snapshot("fresh")
	assert.True(t, ok)
	assert.Equal(t, 0, state.ConsecutiveFailures)
}

func TestTracker_StaleFailuresAgeOut(t *testing.T) {
	tr := NewTracker(testOptions())

	// Two failures, then a long quiet period: the window drops them, so the
	// third failure alone does not reach the threshold.
	tr.RecordFailure("openai", base)
	tr.RecordFailure("openai", base.Add(time.Second))
	tr.RecordFailure("openai", base.Add(10*time.Minute))

	assert.True(t, tr.IsEligible("openai", base.Add(10*time.Minute).Add(time.Second)))
	state, _ := tr.Snapshot("openai")
	assert.Equal(t, 1, state.ConsecutiveFailures)
}

func TestTracker_IsEligibleDoesNotMutate(t *testing.T) {
	tr := NewTracker(testOptions())

	for i := 0; i < 3; i++ {
		tr.RecordFailure("openai", base.Add(time.Duration(i)*time.Second))
	}
	before, _ := tr.Snapshot("openai")

	// Reading far past the cooldown must not clear DownUntil.
	assert.True(t, tr.IsEligible("openai", base.Add(time.Hour)))
	after, _ := tr.Snapshot("openai")
	assert.Equal(t, before.DownUntil, after.DownUntil)
	assert.Equal(t, before.ConsecutiveFailures, after.ConsecutiveFailures)
}

func TestTracker_ZeroOptionsFallBackToDefaults(t *testing.T) {
	tr := NewTracker(Options{})

	for i := 0; i < 3; i++ {
		tr.RecordFailure("openai", base.Add(time.Duration(i)*time.Second))
	}
	assert.False(t, tr.IsEligible("openai", base.Add(3*time.Second)))
	assert.True(t, tr.IsEligible("openai", base.Add(2*time.Second).Add(60*time.Second)))
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(testOptions())

	for i := 0; i < 3; i++ {
		tr.RecordFailure("openai", base.Add(time.Duration(i)*time.Second))
	}
	tr.Reset()

	assert.True(t, tr.IsEligible("openai", base.Add(3*time.Second)))
	_, ok := tr.Snapshot("openai")
	assert.False(t, ok)
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker(testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordFailure("openai", base.Add(time.Duration(j)*time.Millisecond))
				tr.IsEligible("openai", base)
				if n%2 == 0 {
					tr.RecordSuccess("openai")
				}
			}
		}(i)
	}
	wg.Wait()
}
