// Package metrics provides the query metrics recorder for backend calls.
//
// The recorder is an observability wrapper, not a decision point: it times a
// wrapped call, keeps a rolling time window of samples, and computes
// aggregates on demand. It never retries and never alters the wrapped call's
// result. The sample collection is a time window, not a fixed-size ring:
// every read and every append first evicts samples older than the retention
// window from the front.
package metrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const (
	defaultRetention     = 5 * time.Minute
	defaultSlowThreshold = 500 * time.Millisecond
)

// Sample is one observed backend call.
type Sample struct {
	Resource  string
	Duration  time.Duration
	At        time.Time
	Succeeded bool
	RowCount  int
}

// ResourceMetrics aggregates the current (non-evicted) samples for one
// resource. Empty sample sets yield neutral values, never NaN: zero
// durations and a success rate of 1.
type ResourceMetrics struct {
	AvgDuration time.Duration `json:"avg_duration_ms"`
	P95Duration time.Duration `json:"p95_duration_ms"`
	SuccessRate float64       `json:"success_rate"`
	SampleCount int           `json:"sample_count"`
}

// AggregateMetrics covers every resource seen, plus the count of samples
// exceeding the slow threshold.
type AggregateMetrics struct {
	ResourceMetrics
	SlowCount int `json:"slow_count"`
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Retention is the trailing span after which samples are evicted.
	Retention time.Duration
	// SlowThreshold marks a sample as slow for AllMetrics counting.
	SlowThreshold time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Recorder retains a rolling window of query samples. It is an explicitly
// constructed store: no package-level sample state, and Reset gives tests a
// clean slate. Safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	samples       []Sample
	retention     time.Duration
	slowThreshold time.Duration
	clock         func() time.Time
}

// NewRecorder creates a recorder. Zero config fields fall back to defaults.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Recorder{
		retention:     cfg.Retention,
		slowThreshold: cfg.SlowThreshold,
		clock:         cfg.Clock,
	}
}

// Op is a deferred unit of work returning an affected/returned row count.
type Op func(ctx context.Context) (rowCount int, err error)

// Track executes op, measures wall-clock duration, records a sample, and
// returns op's error unchanged. A call that ended because the context was
// cancelled records no sample: the wrapper only returns what the operation
// returns.
func (r *Recorder) Track(ctx context.Context, resource string, op Op) error {
	start := r.clock()
	rows, err := op(ctx)
	elapsed := r.clock().Sub(start)

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	sample := Sample{
		Resource:  resource,
		Duration:  elapsed,
		At:        start,
		Succeeded: err == nil,
		RowCount:  rows,
	}
	r.Record(sample)
	observeQuery(resource, elapsed, err == nil)
	return err
}

// Record appends a sample directly. Exposed for callers that measure their
// own timings (e.g. instrumented HTTP handlers).
func (r *Recorder) Record(sample Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
	r.evictLocked(r.clock())
}

// ResourceMetrics computes aggregates over the current samples for one
// resource.
func (r *Recorder) ResourceMetrics(resource string) ResourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(r.clock())

	matching := make([]Sample, 0, len(r.samples))
	for _, s := range r.samples {
		if s.Resource == resource {
			matching = append(matching, s)
		}
	}
	return summarize(matching)
}

// AllMetrics computes aggregates across every resource seen, plus the number
// of samples slower than the slow threshold.
func (r *Recorder) AllMetrics() AggregateMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(r.clock())

	slow := 0
	for _, s := range r.samples {
		if s.Duration > r.slowThreshold {
			slow++
		}
	}
	return AggregateMetrics{
		ResourceMetrics: summarize(r.samples),
		SlowCount:       slow,
	}
}

// Reset drops all samples. Intended for test isolation.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

// evictLocked drops samples older than the retention window from the front.
// Samples are in call-start order, so the first retained index is a prefix
// boundary.
func (r *Recorder) evictLocked(now time.Time) {
	cutoff := now.Add(-r.retention)
	i := 0
	for i < len(r.samples) && !r.samples[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		r.samples = append(r.samples[:0], r.samples[i:]...)
	}
}

func summarize(samples []Sample) ResourceMetrics {
	n := len(samples)
	if n == 0 {
		return ResourceMetrics{SuccessRate: 1}
	}

	var total time.Duration
	succeeded := 0
	durations := make([]time.Duration, n)
	for i, s := range samples {
		total += s.Duration
		if s.Succeeded {
			succeeded++
		}
		durations[i] = s.Duration
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}

	return ResourceMetrics{
		AvgDuration: total / time.Duration(n),
		P95Duration: durations[idx],
		SuccessRate: float64(succeeded) / float64(n),
		SampleCount: n,
	}
}
