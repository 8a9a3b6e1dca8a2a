package normalize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatoliahealth/medtour-crm/internal/canonical"
	"github.com/anatoliahealth/medtour-crm/internal/leads"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

func normalizeRequest(method, target, orgID, leadID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orgID", orgID)
	rctx.URLParams.Add("leadID", leadID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlerNormalize(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	store := NewMemoryStore()
	svc := newTestService(repo, &fakeLLM{resp: validModelOutput}, store, nil)
	handler := NewHandler(svc, logging.Default())

	lead := seedLead(t, repo, "interested in veneers")

	w := httptest.NewRecorder()
	handler.Normalize(w, normalizeRequest(http.MethodPost, "/admin/clinics/clinic-1/leads/"+lead.ID+"/normalize", "clinic-1", lead.ID))

	require.Equal(t, http.StatusOK, w.Code)

	var result Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.NotNil(t, result.Record)
	assert.Equal(t, lead.ID, result.Record.LeadID)
	require.NotNil(t, result.Firewall)
}

func TestHandlerNormalize_LeadNotFound(t *testing.T) {
	svc := newTestService(leads.NewInMemoryRepository(), &fakeLLM{resp: validModelOutput}, NewMemoryStore(), nil)
	handler := NewHandler(svc, logging.Default())

	w := httptest.NewRecorder()
	handler.Normalize(w, normalizeRequest(http.MethodPost, "/admin/clinics/clinic-1/leads/x/normalize", "clinic-1", "x"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerNormalize_ModelFailure(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	svc := newTestService(repo, &fakeLLM{resp: "not json"}, NewMemoryStore(), nil)
	handler := NewHandler(svc, logging.Default())

	lead := seedLead(t, repo, "a note")

	w := httptest.NewRecorder()
	handler.Normalize(w, normalizeRequest(http.MethodPost, "/admin/clinics/clinic-1/leads/"+lead.ID+"/normalize", "clinic-1", lead.ID))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandlerCanonical(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	store := NewMemoryStore()
	svc := newTestService(repo, &fakeLLM{resp: validModelOutput}, store, nil)
	handler := NewHandler(svc, logging.Default())

	w := httptest.NewRecorder()
	handler.Canonical(w, normalizeRequest(http.MethodGet, "/admin/clinics/clinic-1/leads/x/canonical", "clinic-1", "x"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	lead := seedLead(t, repo, "a note")
	_, err := svc.Normalize(context.Background(), "clinic-1", lead.ID)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	handler.Canonical(w, normalizeRequest(http.MethodGet, "/admin/clinics/clinic-1/leads/"+lead.ID+"/canonical", "clinic-1", lead.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var record canonical.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	assert.Equal(t, lead.ID, record.LeadID)
}
