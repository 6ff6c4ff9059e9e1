package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told, so retention behavior is deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestRecorder(clock *fakeClock) *Recorder {
	return NewRecorder(RecorderConfig{
		Retention:     5 * time.Minute,
		SlowThreshold: 500 * time.Millisecond,
		Clock:         clock.Now,
	})
}

func TestRecorder_EmptyMetricsAreNeutral(t *testing.T) {
	r := newTestRecorder(newFakeClock())

	m := r.ResourceMetrics("specs")
	assert.Equal(t, time.Duration(0), m.AvgDuration)
	assert.Equal(t, time.Duration(0), m.P95Duration)
	assert.Equal(t, 1.0, m.SuccessRate)
	assert.Equal(t, 0, m.SampleCount)

	all := r.AllMetrics()
	assert.Equal(t, 1.0, all.SuccessRate)
	assert.Equal(t, 0, all.SlowCount)
}

func TestRecorder_TrackForwardsResultUnchanged(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	opErr := errors.New("backend exploded")
	err := r.Track(context.Background(), "specs", func(ctx context.Context) (int, error) {
		clock.Advance(40 * time.Millisecond)
		return 0, opErr
	})
	assert.ErrorIs(t, err, opErr, "errors pass through untouched")

	err = r.Track(context.Background(), "specs", func(ctx context.Context) (int, error) {
		clock.Advance(20 * time.Millisecond)
		return 7, nil
	})
	require.NoError(t, err)

	m := r.ResourceMetrics("specs")
	assert.Equal(t, 2, m.SampleCount)
	assert.Equal(t, 0.5, m.SuccessRate)
	assert.Equal(t, 30*time.Millisecond, m.AvgDuration)
}

func TestRecorder_P95OverKnownSet(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	// Durations 10ms..100ms, 10 samples: p95 index floor(10*0.95)=9 -> 100ms.
	for i := 1; i <= 10; i++ {
		r.Record(Sample{
			Resource:  "specs",
			Duration:  time.Duration(i) * 10 * time.Millisecond,
			At:        clock.Now(),
			Succeeded: true,
		})
	}

	m := r.ResourceMetrics("specs")
	assert.Equal(t, 100*time.Millisecond, m.P95Duration)
	assert.Equal(t, 55*time.Millisecond, m.AvgDuration)
	assert.Equal(t, 1.0, m.SuccessRate)
}

func TestRecorder_RetentionEvictsOldSamples(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	r.Record(Sample{Resource: "specs", Duration: 10 * time.Millisecond, At: clock.Now(), Succeeded: true})
	clock.Advance(2 * time.Minute)
	r.Record(Sample{Resource: "specs", Duration: 20 * time.Millisecond, At: clock.Now(), Succeeded: true})

	m := r.ResourceMetrics("specs")
	require.Equal(t, 2, m.SampleCount)

	// Four more minutes: the first sample is now outside the 5 minute window.
	clock.Advance(4 * time.Minute)
	m = r.ResourceMetrics("specs")
	assert.Equal(t, 1, m.SampleCount)
	assert.Equal(t, 20*time.Millisecond, m.AvgDuration)

	clock.Advance(10 * time.Minute)
	m = r.ResourceMetrics("specs")
	assert.Equal(t, 0, m.SampleCount)
	assert.Equal(t, 1.0, m.SuccessRate, "evicted set is neutral, not NaN")
}

func TestRecorder_AllMetricsCountsSlowSamples(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	r.Record(Sample{Resource: "specs", Duration: 80 * time.Millisecond, At: clock.Now(), Succeeded: true})
	r.Record(Sample{Resource: "votes", Duration: 600 * time.Millisecond, At: clock.Now(), Succeeded: true})
	r.Record(Sample{Resource: "votes", Duration: 1200 * time.Millisecond, At: clock.Now(), Succeeded: false})

	all := r.AllMetrics()
	assert.Equal(t, 3, all.SampleCount)
	assert.Equal(t, 2, all.SlowCount)
	assert.InDelta(t, 2.0/3.0, all.SuccessRate, 1e-9)
}

func TestRecorder_ResourceIsolation(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	r.Record(Sample{Resource: "specs", Duration: 10 * time.Millisecond, At: clock.Now(), Succeeded: true})
	r.Record(Sample{Resource: "votes", Duration: 900 * time.Millisecond, At: clock.Now(), Succeeded: false})

	specs := r.ResourceMetrics("specs")
	assert.Equal(t, 1, specs.SampleCount)
	assert.Equal(t, 1.0, specs.SuccessRate)

	votes := r.ResourceMetrics("votes")
	assert.Equal(t, 1, votes.SampleCount)
	assert.Equal(t, 0.0, votes.SuccessRate)
}

func TestRecorder_CancelledOpRecordsNoSample(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	ctx, cancel := context.WithCancel(context.Background())
	err := r.Track(ctx, "specs", func(ctx context.Context) (int, error) {
		cancel()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, r.ResourceMetrics("specs").SampleCount)
}

func TestRecorder_FailedOpStillRecorded(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	// A plain failure on a live context is observed normally.
	err := r.Track(context.Background(), "specs", func(ctx context.Context) (int, error) {
		return 0, errors.New("constraint violation")
	})
	require.Error(t, err)
	assert.Equal(t, 1, r.ResourceMetrics("specs").SampleCount)
}

func TestRecorder_Reset(t *testing.T) {
	clock := newFakeClock()
	r := newTestRecorder(clock)

	r.Record(Sample{Resource: "specs", Duration: time.Millisecond, At: clock.Now(), Succeeded: true})
	r.Reset()

	assert.Equal(t, 0, r.AllMetrics().SampleCount)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want DurationClass
	}{
		{50 * time.Millisecond, ClassFast},
		{100 * time.Millisecond, ClassFast},
		{101 * time.Millisecond, ClassNormal},
		{500 * time.Millisecond, ClassNormal},
		{501 * time.Millisecond, ClassSlow},
		{1000 * time.Millisecond, ClassSlow},
		{1001 * time.Millisecond, ClassCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.d), "duration %s", tt.d)
	}
}
