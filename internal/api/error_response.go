package api

import (
	stderrors "errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/specificity-ai/specmux/pkg/errors"
)

// ErrorResponse is the error body for all API endpoints.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, code int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("write error response", "error", err)
	}
}

// writeConsultError maps consult failures onto HTTP status codes. Exhausting
// every provider is a 503; provider errors carry their own status.
func (h *Handler) writeConsultError(w http.ResponseWriter, err error) {
	if stderrors.Is(err, errors.ErrAllProvidersDown) {
		h.writeError(w, http.StatusServiceUnavailable, errors.TypeServiceUnavailable, err.Error())
		return
	}

	var provErr *errors.ProviderError
	if stderrors.As(err, &provErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(provErr.HTTPStatusCode())
		resp := ErrorResponse{Error: ErrorDetail{
			Message:  provErr.Message,
			Type:     provErr.Type,
			Provider: provErr.Provider,
		}}
		if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
			h.logger.Error("write error response", "error", encErr)
		}
		return
	}

	h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, err.Error())
}
