package observability

import (
	"context"
	"log/slog"
	"time"
)

// Breadcrumb event names produced by the gateway core.
const (
	EventQuery            = "query"
	EventProviderSelected = "provider_selected"
	EventProviderFailed   = "provider_failed"
	EventCooldownEntered  = "cooldown_entered"
	EventAllProvidersDown = "all_providers_down"
)

// Breadcrumb is a single observability event tagged by resource and/or
// provider. The core only produces breadcrumbs; delivery and storage are the
// sink's responsibility.
type Breadcrumb struct {
	At       time.Time     `json:"at"`
	Event    string        `json:"event"`
	Resource string        `json:"resource,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Class    string        `json:"class,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Sink receives breadcrumbs. Implementations must not block the caller for
// long; Emit is on the request path.
type Sink interface {
	Name() string
	Emit(ctx context.Context, crumb Breadcrumb)
}

// NopSink discards everything.
type NopSink struct{}

// Name returns the sink name.
func (NopSink) Name() string { return "nop" }

// Emit discards the breadcrumb.
func (NopSink) Emit(context.Context, Breadcrumb) {}

// MultiSink fans breadcrumbs out to several sinks.
type MultiSink []Sink

// Name returns the sink name.
func (MultiSink) Name() string { return "multi" }

// Emit forwards the breadcrumb to every sink.
func (m MultiSink) Emit(ctx context.Context, crumb Breadcrumb) {
	for _, s := range m {
		s.Emit(ctx, crumb)
	}
}

// SlogSink writes breadcrumbs to a structured logger. Failure events log at
// warn, everything else at debug.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Name returns the sink name.
func (s *SlogSink) Name() string { return "slog" }

// Emit logs the breadcrumb with its tags as attributes.
func (s *SlogSink) Emit(ctx context.Context, crumb Breadcrumb) {
	attrs := []any{"event", crumb.Event}
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if crumb.Resource != "" {
		attrs = append(attrs, "resource", crumb.Resource)
	}
	if crumb.Provider != "" {
		attrs = append(attrs, "provider", crumb.Provider)
	}
	if crumb.Duration > 0 {
		attrs = append(attrs, "duration_ms", crumb.Duration.Milliseconds())
	}
	if crumb.Class != "" {
		attrs = append(attrs, "class", crumb.Class)
	}

	if crumb.Error != "" {
		attrs = append(attrs, "error", crumb.Error)
		s.logger.WarnContext(ctx, "breadcrumb", attrs...)
		return
	}
	s.logger.DebugContext(ctx, "breadcrumb", attrs...)
}
