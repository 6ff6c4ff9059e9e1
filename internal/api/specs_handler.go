package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/specificity-ai/specmux/internal/store"
	"github.com/specificity-ai/specmux/pkg/errors"
)

// SpecStore is the document persistence the handler serves. Implemented by
// store.PostgresStore.
type SpecStore interface {
	List(ctx context.Context, status string, limit, offset int) ([]*store.Spec, error)
	Get(ctx context.Context, id string) (*store.Spec, error)
	Insert(ctx context.Context, spec *store.Spec) error
	Update(ctx context.Context, spec *store.Spec) error
	Delete(ctx context.Context, id string) error
}

// ListSpecs handles GET /v1/specs. Supports status, limit, and offset query
// parameters.
func (h *Handler) ListSpecs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	specs, err := h.specs.List(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		h.logger.Error("list specs", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, "list specs failed")
		return
	}
	if specs == nil {
		specs = []*store.Spec{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"specs": specs, "count": len(specs)})
}

// CreateSpec handles POST /v1/specs.
func (h *Handler) CreateSpec(w http.ResponseWriter, r *http.Request) {
	var spec store.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.TypeInvalidRequest, "invalid JSON: "+err.Error())
		return
	}
	defer r.Body.Close()

	if spec.Title == "" {
		h.writeError(w, http.StatusBadRequest, errors.TypeInvalidRequest, "title is required")
		return
	}

	if err := h.specs.Insert(r.Context(), &spec); err != nil {
		h.logger.Error("create spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, "create spec failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, &spec)
}

// GetSpec handles GET /v1/specs/{id}.
func (h *Handler) GetSpec(w http.ResponseWriter, r *http.Request) {
	spec, err := h.specs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, errors.TypeInvalidRequest, "spec not found")
			return
		}
		h.logger.Error("get spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, "get spec failed")
		return
	}
	h.writeJSON(w, http.StatusOK, spec)
}

// UpdateSpec handles PUT /v1/specs/{id}.
func (h *Handler) UpdateSpec(w http.ResponseWriter, r *http.Request) {
	var spec store.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.TypeInvalidRequest, "invalid JSON: "+err.Error())
		return
	}
	defer r.Body.Close()
	spec.ID = r.PathValue("id")

	if err := h.specs.Update(r.Context(), &spec); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, errors.TypeInvalidRequest, "spec not found")
			return
		}
		h.logger.Error("update spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, "update spec failed")
		return
	}
	h.writeJSON(w, http.StatusOK, &spec)
}

// DeleteSpec handles DELETE /v1/specs/{id}.
func (h *Handler) DeleteSpec(w http.ResponseWriter, r *http.Request) {
	if err := h.specs.Delete(r.Context(), r.PathValue("id")); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, errors.TypeInvalidRequest, "spec not found")
			return
		}
		h.logger.Error("delete spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.TypeInternalError, "delete spec failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
