package specmux

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/specificity-ai/specmux/internal/failover"
	"github.com/specificity-ai/specmux/internal/health"
	"github.com/specificity-ai/specmux/internal/metrics"
	"github.com/specificity-ai/specmux/internal/observability"
	"github.com/specificity-ai/specmux/internal/resilience"
	"github.com/specificity-ai/specmux/pkg/provider"
	"go.opentelemetry.io/otel/trace"
)

// Client routes consultations across configured providers with health-based
// failover. Selection is strict priority order; a provider that crosses the
// failure threshold within the rolling window sits out a fixed cooldown.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	providers map[string]provider.Provider
	selector  *failover.Selector
	health    *health.Tracker
	shared    *health.RedisStore
	recorder  *metrics.Recorder
	limiter   *resilience.ProviderLimiter
	sink      observability.Sink
	tracer    trace.Tracer
	logger    *slog.Logger
	clock     func() time.Time
}

// New creates a specmux client with the given options.
//
// Example:
//
//	client, err := specmux.New(
//	    specmux.WithProviderFunc("openai", 1, callOpenAI),
//	    specmux.WithProviderFunc("anthropic", 2, callAnthropic),
//	    specmux.WithHealthOptions(specmux.HealthOptions{
//	        MaxFailures:   3,
//	        Cooldown:      60 * time.Second,
//	        FailureWindow: 5 * time.Minute,
//	    }),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	impls := make(map[string]provider.Provider, len(cfg.Providers))
	configs := make([]provider.Config, 0, len(cfg.Providers))
	for _, inst := range cfg.Providers {
		if inst.Config.Name == "" {
			return nil, fmt.Errorf("provider name is required")
		}
		if inst.Config.Priority <= 0 {
			return nil, fmt.Errorf("provider %s: priority must be positive", inst.Config.Name)
		}
		if inst.Provider == nil {
			return nil, fmt.Errorf("provider %s: implementation is required", inst.Config.Name)
		}
		if _, dup := impls[inst.Config.Name]; dup {
			return nil, fmt.Errorf("provider %s: duplicate name", inst.Config.Name)
		}
		impls[inst.Config.Name] = inst.Provider
		configs = append(configs, inst.Config)
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewRecorder(cfg.Metrics)
	}

	var sink observability.Sink = observability.NopSink{}
	if len(cfg.Sinks) == 1 {
		sink = cfg.Sinks[0]
	} else if len(cfg.Sinks) > 1 {
		sink = observability.MultiSink(cfg.Sinks)
	}

	tracker := health.NewTracker(cfg.Health)
	c := &Client{
		providers: impls,
		selector:  failover.NewSelector(configs, tracker),
		health:    tracker,
		shared:    cfg.SharedHealth,
		recorder:  recorder,
		limiter:   limiterFromConfig(cfg),
		sink:      sink,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
	}

	c.logger.Info("specmux client initialized",
		"providers", len(c.selector.Providers()),
		"max_failures", cfg.Health.MaxFailures,
		"cooldown", cfg.Health.Cooldown,
		"rate_limit_enabled", cfg.RateLimitEnabled,
	)
	return c, nil
}

// Consult sends a request to the highest-priority eligible provider. On
// provider failure the outcome is recorded and the next eligible provider is
// tried; each provider is attempted at most once per call. When no provider
// is eligible the call fails with ErrAllProvidersDown, regardless of how
// many failures came before it. When the only thing standing between the
// caller and a healthy provider was the local rate limiter, the call fails
// with that rate limit error instead.
func (c *Client) Consult(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, NewInvalidRequestError("", "request is nil")
	}
	if req.Prompt == "" {
		return nil, NewInvalidRequestError("", "prompt is required")
	}

	attempted := make(map[string]bool)
	var lastErr error
	var rateLimitErr error

	for {
		at := c.clock()
		name, err := c.selector.PickExcluding(at, attempted)
		if err != nil {
			if lastErr == nil && rateLimitErr != nil {
				// Every remaining provider was healthy but over its local
				// budget. Surface the rate limit so callers back off briefly
				// instead of treating the upstreams as down.
				c.logger.Debug("all eligible providers rate limited",
					"advisor", req.Advisor,
				)
				return nil, rateLimitErr
			}
			c.sink.Emit(ctx, observability.Breadcrumb{
				At:       at,
				Event:    observability.EventAllProvidersDown,
				Resource: req.Advisor,
			})
			c.logger.Warn("all providers down",
				"advisor", req.Advisor,
				"attempted", len(attempted),
			)
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last provider error: %v)", ErrAllProvidersDown, lastErr)
			}
			return nil, ErrAllProvidersDown
		}
		attempted[name] = true

		if c.shared != nil {
			ok, serr := c.shared.IsEligible(ctx, name, at)
			if serr != nil {
				c.logger.Warn("shared health check failed, using local view",
					"provider", name, "error", serr)
			} else if !ok {
				c.logger.Debug("provider cooling down in shared state", "provider", name)
				continue
			}
		}

		if c.limiter != nil && !c.limiter.Allow(name) {
			c.logger.Debug("provider rate limited, trying next", "provider", name)
			rateLimitErr = NewRateLimitError(name, "local request budget exhausted")
			continue
		}

		c.sink.Emit(ctx, observability.Breadcrumb{
			At:       at,
			Event:    observability.EventProviderSelected,
			Resource: req.Advisor,
			Provider: name,
		})

		resp, err := c.attempt(ctx, name, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
			// Caller gave up; the provider did not fail.
			return nil, err
		}
		lastErr = err
	}
}

// attempt runs one provider call and records its outcome in the health
// tracker, metrics, and sink.
func (c *Client) attempt(ctx context.Context, name string, req *Request) (*Response, error) {
	prov := c.providers[name]
	spanCtx, span := observability.StartConsultSpan(ctx, c.tracer, name, req.Advisor)
	start := c.clock()
	resp, err := prov.Complete(spanCtx, req)
	elapsed := c.clock().Sub(start)

	tokens := 0
	if resp != nil {
		tokens = resp.Tokens
	}
	observability.RecordConsultOutcome(span, tokens, err)
	span.End()

	metrics.ObserveConsult(name, elapsed, err == nil)

	if err == nil {
		c.health.RecordSuccess(name)
		if c.shared != nil {
			if serr := c.shared.RecordSuccess(ctx, name); serr != nil {
				c.logger.Warn("shared health record failed", "provider", name, "error", serr)
			}
		}
		c.recorder.Record(metrics.Sample{
			Resource:  req.Advisor,
			Duration:  elapsed,
			At:        start,
			Succeeded: true,
		})
		c.sink.Emit(ctx, observability.Breadcrumb{
			At:       start,
			Event:    observability.EventQuery,
			Resource: req.Advisor,
			Provider: name,
			Duration: elapsed,
			Class:    string(metrics.Classify(elapsed)),
		})
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
		return nil, err
	}

	now := c.clock()
	before, _ := c.health.Snapshot(name)
	c.health.RecordFailure(name, now)
	after, _ := c.health.Snapshot(name)
	if c.shared != nil {
		if _, serr := c.shared.RecordFailure(ctx, name, now); serr != nil {
			c.logger.Warn("shared health record failed", "provider", name, "error", serr)
		}
	}

	c.recorder.Record(metrics.Sample{
		Resource:  req.Advisor,
		Duration:  elapsed,
		At:        start,
		Succeeded: false,
	})
	c.sink.Emit(ctx, observability.Breadcrumb{
		At:       now,
		Event:    observability.EventProviderFailed,
		Resource: req.Advisor,
		Provider: name,
		Duration: elapsed,
		Error:    err.Error(),
	})
	c.logger.Warn("provider failed",
		"provider", name,
		"advisor", req.Advisor,
		"failures", after.ConsecutiveFailures,
		"error", err,
	)

	if after.DownUntil.After(before.DownUntil) {
		c.sink.Emit(ctx, observability.Breadcrumb{
			At:       now,
			Event:    observability.EventCooldownEntered,
			Provider: name,
		})
		c.logger.Warn("provider entering cooldown",
			"provider", name,
			"down_until", after.DownUntil,
		)
	}
	return nil, err
}

// Providers returns the active providers in selection order.
func (c *Client) Providers() []ProviderConfig {
	return c.selector.Providers()
}

// Health returns the health snapshot for one provider. The second return is
// false when the provider has never recorded an outcome.
func (c *Client) Health(providerID string) (HealthState, bool) {
	return c.health.Snapshot(providerID)
}

// IsEligible reports whether the named provider would be selected right now.
func (c *Client) IsEligible(providerID string) bool {
	return c.health.IsEligible(providerID, c.clock())
}

// Metrics returns the aggregate query metrics over the retention window.
func (c *Client) Metrics() AggregateMetrics {
	return c.recorder.AllMetrics()
}

// ResourceMetrics returns the query metrics for one advisor resource.
func (c *Client) ResourceMetrics(resource string) ResourceMetrics {
	return c.recorder.ResourceMetrics(resource)
}

// ResetHealth clears all provider health state.
func (c *Client) ResetHealth() {
	c.health.Reset()
}
