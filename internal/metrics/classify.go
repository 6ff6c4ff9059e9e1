package metrics

import "time"

// DurationClass buckets a query duration for dashboards and breadcrumbs.
type DurationClass string

const (
	ClassFast     DurationClass = "fast"
	ClassNormal   DurationClass = "normal"
	ClassSlow     DurationClass = "slow"
	ClassCritical DurationClass = "critical"
)

// Classify buckets a duration: fast <=100ms, normal <=500ms, slow <=1000ms,
// else critical. Pure function, no state.
func Classify(d time.Duration) DurationClass {
	switch {
	case d <= 100*time.Millisecond:
		return ClassFast
	case d <= 500*time.Millisecond:
		return ClassNormal
	case d <= 1000*time.Millisecond:
		return ClassSlow
	default:
		return ClassCritical
	}
}
