package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "specmux"

// QueryLatencyBuckets matches the fast/normal/slow/critical classification
// boundaries plus finer resolution at the low end.
var QueryLatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

var (
	// QueryDuration tracks wall-clock duration of tracked backend calls.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of tracked backend calls",
			Buckets:   QueryLatencyBuckets,
		},
		[]string{"resource", "outcome"},
	)

	// ProviderSelections counts failover selections per provider.
	ProviderSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_selections_total",
			Help:      "Number of times each provider was selected",
		},
		[]string{"provider"},
	)

	// ProviderCooldowns counts cooldown entries per provider.
	ProviderCooldowns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cooldowns_total",
			Help:      "Number of times a provider entered cooldown",
		},
		[]string{"provider"},
	)

	// AllProvidersDown counts requests that found no eligible provider.
	AllProvidersDown = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "all_providers_down_total",
			Help:      "Requests rejected because every provider was in cooldown",
		},
	)

	// ConsultLatency tracks end-to-end consult latency per provider.
	ConsultLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consult_latency_seconds",
			Help:      "End-to-end advisor consult latency",
			Buckets:   QueryLatencyBuckets,
		},
		[]string{"provider", "outcome"},
	)
)

func observeQuery(resource string, d time.Duration, succeeded bool) {
	QueryDuration.WithLabelValues(resource, outcomeLabel(succeeded)).Observe(d.Seconds())
}

// ObserveConsult records an attempt against an upstream provider.
func ObserveConsult(provider string, d time.Duration, succeeded bool) {
	ConsultLatency.WithLabelValues(provider, outcomeLabel(succeeded)).Observe(d.Seconds())
}

func outcomeLabel(succeeded bool) string {
	if succeeded {
		return "success"
	}
	return "failure"
}
