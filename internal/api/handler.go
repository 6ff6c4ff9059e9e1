// Package api provides the HTTP surface of the gateway: consultations,
// provider health, query metrics, and spec document CRUD.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/specificity-ai/specmux/internal/health"
	"github.com/specificity-ai/specmux/internal/metrics"
	"github.com/specificity-ai/specmux/pkg/provider"
)

// GatewayClient is the part of the specmux client the handler needs.
// Implemented by specmux.Client.
type GatewayClient interface {
	Consult(ctx context.Context, req *provider.Request) (*provider.Response, error)
	Providers() []provider.Config
	Health(providerID string) (health.State, bool)
	IsEligible(providerID string) bool
	Metrics() metrics.AggregateMetrics
	ResourceMetrics(resource string) metrics.ResourceMetrics
}

// Handler handles HTTP requests for the gateway.
type Handler struct {
	gateway GatewayClient
	specs   SpecStore
	logger  *slog.Logger
}

// NewHandler creates an API handler. specs may be nil when the document
// store is disabled; its routes are then not registered.
func NewHandler(gateway GatewayClient, specs SpecStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gateway: gateway, specs: specs, logger: logger}
}

// RegisterRoutes attaches all handler routes to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("POST /v1/consult", h.Consult)
	mux.HandleFunc("GET /v1/stats", h.Stats)
	mux.HandleFunc("GET /v1/stats/{resource}", h.ResourceStats)

	if h.specs != nil {
		mux.HandleFunc("GET /v1/specs", h.ListSpecs)
		mux.HandleFunc("POST /v1/specs", h.CreateSpec)
		mux.HandleFunc("GET /v1/specs/{id}", h.GetSpec)
		mux.HandleFunc("PUT /v1/specs/{id}", h.UpdateSpec)
		mux.HandleFunc("DELETE /v1/specs/{id}", h.DeleteSpec)
	}
}

// providerHealth is one provider's row in the health report.
type providerHealth struct {
	Name                string     `json:"name"`
	Priority            int        `json:"priority"`
	Eligible            bool       `json:"eligible"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	DownUntil           *time.Time `json:"down_until,omitempty"`
}

// healthReport is the /healthz response body.
type healthReport struct {
	Status    string           `json:"status"`
	Providers []providerHealth `json:"providers"`
}

// Healthz reports per-provider eligibility. Status is "ok" while at least
// one provider is eligible, "down" otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	configs := h.gateway.Providers()
	report := healthReport{
		Status:    "down",
		Providers: make([]providerHealth, 0, len(configs)),
	}

	for _, cfg := range configs {
		row := providerHealth{
			Name:     cfg.Name,
			Priority: cfg.Priority,
			Eligible: h.gateway.IsEligible(cfg.Name),
		}
		if state, ok := h.gateway.Health(cfg.Name); ok {
			row.ConsecutiveFailures = state.ConsecutiveFailures
			if !state.DownUntil.IsZero() {
				downUntil := state.DownUntil
				row.DownUntil = &downUntil
			}
		}
		if row.Eligible {
			report.Status = "ok"
		}
		report.Providers = append(report.Providers, row)
	}

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, report)
}

// Consult handles POST /v1/consult requests.
func (h *Handler) Consult(w http.ResponseWriter, r *http.Request) {
	var req provider.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	defer r.Body.Close()

	resp, err := h.gateway.Consult(r.Context(), &req)
	if err != nil {
		h.writeConsultError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Stats returns the aggregate query metrics over the retention window.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.gateway.Metrics())
}

// ResourceStats returns the query metrics for one advisor resource.
func (h *Handler) ResourceStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.gateway.ResourceMetrics(r.PathValue("resource")))
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}
