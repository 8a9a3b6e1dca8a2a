package normalize

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anatoliahealth/medtour-crm/internal/leads"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

// Handler exposes normalization over HTTP for the admin surface.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a normalize handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("normalize: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Normalize handles POST /admin/clinics/{orgID}/leads/{leadID}/normalize.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")

	result, err := h.service.Normalize(r.Context(), orgID, leadID)
	switch {
	case errors.Is(err, leads.ErrLeadNotFound):
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrCooldownActive):
		http.Error(w, "normalization ran recently, try again shortly", http.StatusTooManyRequests)
		return
	case err != nil:
		h.logger.Error("normalize request failed", "error", err, "lead_id", leadID)
		http.Error(w, "normalization failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Canonical handles GET /admin/clinics/{orgID}/leads/{leadID}/canonical.
func (h *Handler) Canonical(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")

	record, err := h.service.Canonical(r.Context(), orgID, leadID)
	if errors.Is(err, ErrCanonicalNotFound) {
		http.Error(w, "canonical record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("canonical fetch failed", "error", err, "lead_id", leadID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
