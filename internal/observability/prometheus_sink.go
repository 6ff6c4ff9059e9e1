package observability

import (
	"context"

	"github.com/specificity-ai/specmux/internal/metrics"
)

// PrometheusSink mirrors breadcrumbs into Prometheus counters. Duration
// histograms are recorded at the call sites in internal/metrics; this sink
// only covers the event counters.
type PrometheusSink struct{}

// NewPrometheusSink creates a Prometheus-backed sink.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Name returns the sink name.
func (*PrometheusSink) Name() string { return "prometheus" }

// Emit increments the counter matching the breadcrumb event.
func (*PrometheusSink) Emit(_ context.Context, crumb Breadcrumb) {
	switch crumb.Event {
	case EventProviderSelected:
		metrics.ProviderSelections.WithLabelValues(crumb.Provider).Inc()
	case EventCooldownEntered:
		metrics.ProviderCooldowns.WithLabelValues(crumb.Provider).Inc()
	case EventAllProvidersDown:
		metrics.AllProvidersDown.Inc()
	}
}
