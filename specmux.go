// Package specmux provides a failover gateway for AI advisor providers.
// It tracks per-provider health over a rolling failure window, places
// providers that cross the failure threshold into a fixed cooldown, and
// routes each consultation to the highest-priority eligible provider.
//
// Basic usage:
//
//	client, err := specmux.New(
//	    specmux.WithProviderFunc("openai", 1, callOpenAI),
//	    specmux.WithProviderFunc("anthropic", 2, callAnthropic),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Consult(ctx, &specmux.Request{
//	    Advisor: "product",
//	    Prompt:  "Review this spec for ambiguity.",
//	})
package specmux

import (
	"github.com/specificity-ai/specmux/internal/health"
	"github.com/specificity-ai/specmux/internal/metrics"
	"github.com/specificity-ai/specmux/internal/observability"
	"github.com/specificity-ai/specmux/pkg/errors"
	"github.com/specificity-ai/specmux/pkg/provider"
)

// Version is the current version of specmux.
const Version = "1.0.0"

// Re-export core request/response types for convenience.
type (
	// Request is a consultation request routed to an advisor provider.
	Request = provider.Request

	// Response is a completed consultation from a provider.
	Response = provider.Response

	// Provider is the interface advisor backends implement.
	Provider = provider.Provider

	// ProviderFunc adapts a plain function into a Provider.
	ProviderFunc = provider.Func

	// ProviderConfig carries a provider's routing settings.
	ProviderConfig = provider.Config
)

// Re-export health and metrics types.
type (
	// HealthState is a point-in-time snapshot of one provider's health.
	HealthState = health.State

	// HealthOptions holds the failure threshold, cooldown, and window.
	HealthOptions = health.Options

	// ResourceMetrics aggregates recorded samples for one resource.
	ResourceMetrics = metrics.ResourceMetrics

	// AggregateMetrics aggregates recorded samples across all resources.
	AggregateMetrics = metrics.AggregateMetrics

	// Breadcrumb is a single observability event from the gateway core.
	Breadcrumb = observability.Breadcrumb

	// Sink receives breadcrumbs emitted on the request path.
	Sink = observability.Sink
)

// Re-export error types.
type (
	// ProviderError is a standardized error from an upstream provider.
	ProviderError = errors.ProviderError
)

// ErrAllProvidersDown is returned when every configured provider is either
// disabled or cooling down.
var ErrAllProvidersDown = errors.ErrAllProvidersDown

// Re-export error factory functions.
var (
	NewAuthenticationError     = errors.NewAuthenticationError
	NewRateLimitError          = errors.NewRateLimitError
	NewInvalidRequestError     = errors.NewInvalidRequestError
	NewTimeoutError            = errors.NewTimeoutError
	NewServiceUnavailableError = errors.NewServiceUnavailableError
	NewInternalError           = errors.NewInternalError
)
