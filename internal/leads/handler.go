package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/anatoliahealth/medtour-crm/internal/tenancy"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

// Handler serves the lead HTTP surface.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a leads handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateWebLead handles POST /leads/web.
func (h *Handler) CreateWebLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode lead request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	req.OrgID = orgID

	lead, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create lead", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("lead created", "lead_id", lead.ID, "org_id", lead.OrgID, "source", lead.Source)
	writeJSON(w, http.StatusCreated, lead)
}

// GetLead handles GET /admin/clinics/{orgID}/leads/{leadID}.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")

	lead, err := h.repo.GetByID(r.Context(), orgID, leadID)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get lead", "error", err, "lead_id", leadID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// ListLeadsResponse is the listing payload.
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/clinics/{orgID}/leads.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "missing org_id", http.StatusBadRequest)
		return
	}

	filter := ListLeadsFilter{Limit: 50}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	filter.Status = r.URL.Query().Get("status")

	list, err := h.repo.List(r.Context(), orgID, filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err, "org_id", orgID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  list,
		Count:  len(list),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// AddNote handles POST /admin/clinics/{orgID}/leads/{leadID}/notes.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")

	var req AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.repo.AddNote(r.Context(), orgID, leadID, &req)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("note added", "lead_id", leadID, "note_id", note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// ListNotes handles GET /admin/clinics/{orgID}/leads/{leadID}/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")

	notes, err := h.repo.ListNotes(r.Context(), orgID, leadID)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
