package specmux

import (
	"context"
	"log/slog"
	"time"

	"github.com/specificity-ai/specmux/internal/health"
	"github.com/specificity-ai/specmux/internal/metrics"
	"github.com/specificity-ai/specmux/internal/observability"
	"github.com/specificity-ai/specmux/internal/resilience"
	"github.com/specificity-ai/specmux/pkg/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ClientConfig holds all configuration for the specmux client.
type ClientConfig struct {
	// Providers holds routing settings plus the backing implementations.
	Providers []providerInstance

	// Health failover thresholds.
	Health health.Options

	// Metrics recording.
	Metrics metrics.RecorderConfig
	// Recorder overrides the recorder built from Metrics.
	Recorder *metrics.Recorder

	// Rate limiting (per provider, applied before the attempt).
	RateLimitEnabled bool
	RateLimitRPM     int
	RateLimitBurst   int

	// SharedHealth mirrors outcomes to a Redis-backed store so multiple
	// gateway instances agree on cooldowns.
	SharedHealth *health.RedisStore

	// Observability
	Logger *slog.Logger
	Sinks  []observability.Sink
	Tracer trace.Tracer

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// providerInstance pairs a provider's routing config with its implementation.
type providerInstance struct {
	Config   provider.Config
	Provider provider.Provider
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Health: health.DefaultOptions(),
		Logger: slog.Default(),
		Tracer: otel.Tracer(observability.TracerName),
		Clock:  time.Now,
	}
}

// WithProvider registers a provider implementation under the given routing
// config. Providers are tried in ascending priority order.
//
// Example:
//
//	specmux.WithProvider(
//	    specmux.ProviderConfig{Name: "openai", Priority: 1, Enabled: true},
//	    openaiProvider,
//	)
func WithProvider(cfg provider.Config, p provider.Provider) Option {
	return func(c *ClientConfig) {
		c.Providers = append(c.Providers, providerInstance{Config: cfg, Provider: p})
	}
}

// WithProviderFunc registers a plain function as an enabled provider at the
// given priority.
func WithProviderFunc(name string, priority int, fn func(ctx context.Context, req *provider.Request) (*provider.Response, error)) Option {
	return WithProvider(
		provider.Config{Name: name, Priority: priority, Enabled: true},
		provider.Func{ProviderName: name, Fn: fn},
	)
}

// WithHealthOptions sets the failure threshold, cooldown, and failure window
// used by the health tracker.
func WithHealthOptions(opts health.Options) Option {
	return func(c *ClientConfig) {
		c.Health = opts
	}
}

// WithMetrics sets the query metrics recorder configuration.
func WithMetrics(cfg metrics.RecorderConfig) Option {
	return func(c *ClientConfig) {
		c.Metrics = cfg
	}
}

// WithRecorder shares an externally constructed recorder, for callers that
// also instrument their own backends with it.
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *ClientConfig) {
		c.Recorder = r
	}
}

// WithRateLimit enables the per-provider request limiter. Zero values fall
// back to the limiter's defaults.
func WithRateLimit(rpm, burst int) Option {
	return func(c *ClientConfig) {
		c.RateLimitEnabled = true
		c.RateLimitRPM = rpm
		c.RateLimitBurst = burst
	}
}

// WithSharedHealth mirrors health outcomes to a Redis-backed store shared
// across gateway instances. Local in-memory tracking still applies; a
// provider must be eligible in both views to be selected. Redis errors fail
// open to the local view.
func WithSharedHealth(store *health.RedisStore) Option {
	return func(c *ClientConfig) {
		c.SharedHealth = store
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithSink adds an observability sink. Multiple sinks fan out in
// registration order.
func WithSink(s observability.Sink) Option {
	return func(c *ClientConfig) {
		if s != nil {
			c.Sinks = append(c.Sinks, s)
		}
	}
}

// WithTracer sets the tracer used to span each provider attempt. When unset,
// spans go through the globally registered tracer provider, which is a no-op
// unless tracing is initialized.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *ClientConfig) {
		if tracer != nil {
			c.Tracer = tracer
		}
	}
}

// WithClock overrides the time source. Tests use this to drive cooldown and
// window expiry deterministically.
func WithClock(clock func() time.Time) Option {
	return func(c *ClientConfig) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// limiterFromConfig builds the provider limiter, or returns nil when rate
// limiting is disabled.
func limiterFromConfig(c *ClientConfig) *resilience.ProviderLimiter {
	if !c.RateLimitEnabled {
		return nil
	}
	return resilience.NewProviderLimiter(resilience.ProviderLimiterConfig{
		RPM:   c.RateLimitRPM,
		Burst: c.RateLimitBurst,
	})
}
