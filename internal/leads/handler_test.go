package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/anatoliahealth/medtour-crm/internal/tenancy"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

const testOrgID = "clinic-istanbul"

func newLeadRequest(t *testing.T, payload CreateLeadRequest) *http.Request {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/leads/web", bytes.NewReader(body))
	return req.WithContext(tenancy.WithOrgID(req.Context(), testOrgID))
}

func TestCreateWebLead_Success(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	reqBody := CreateLeadRequest{
		Name:    "Ayse Demir",
		Email:   "ayse@example.com",
		Phone:   "+90 532 000 11 22",
		Message: "Interested in a hair transplant consultation",
		Source:  "website",
	}

	w := httptest.NewRecorder()
	handler.CreateWebLead(w, newLeadRequest(t, reqBody))

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var lead Lead
	if err := json.NewDecoder(w.Body).Decode(&lead); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if lead.Name != reqBody.Name {
		t.Errorf("expected name %s, got %s", reqBody.Name, lead.Name)
	}
	if lead.OrgID != testOrgID {
		t.Errorf("expected org %s, got %s", testOrgID, lead.OrgID)
	}
}

func TestCreateWebLead_MissingOrgContext(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	body, _ := json.Marshal(CreateLeadRequest{Name: "No Org", Email: "x@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/leads/web", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.CreateWebLead(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateWebLead_MissingContact(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	w := httptest.NewRecorder()
	handler.CreateWebLead(w, newLeadRequest(t, CreateLeadRequest{Name: "No Contact"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreateWebLead_InvalidJSON(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/leads/web", strings.NewReader("{"))
	req = req.WithContext(tenancy.WithOrgID(req.Context(), testOrgID))
	w := httptest.NewRecorder()

	handler.CreateWebLead(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

type failingRepository struct{}

func (failingRepository) Create(context.Context, *CreateLeadRequest) (*Lead, error) {
	return nil, errors.New("boom")
}

func (failingRepository) GetByID(context.Context, string, string) (*Lead, error) {
	return nil, errors.New("boom")
}

func (failingRepository) List(context.Context, string, ListLeadsFilter) ([]*Lead, error) {
	return nil, errors.New("boom")
}

func (failingRepository) AddNote(context.Context, string, string, *AddNoteRequest) (*Note, error) {
	return nil, errors.New("boom")
}

func (failingRepository) ListNotes(context.Context, string, string) ([]Note, error) {
	return nil, errors.New("boom")
}

func (failingRepository) ListTimeline(context.Context, string, string) ([]TimelineEvent, error) {
	return nil, errors.New("boom")
}

func (failingRepository) AppendTimeline(context.Context, *TimelineEvent) error {
	return errors.New("boom")
}

func TestCreateWebLead_RepositoryError(t *testing.T) {
	handler := NewHandler(failingRepository{}, logging.Default())

	w := httptest.NewRecorder()
	handler.CreateWebLead(w, newLeadRequest(t, CreateLeadRequest{
		Name:  "Failing Repo",
		Email: "fail@example.com",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func adminRequest(method, target, orgID, leadID string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orgID", orgID)
	if leadID != "" {
		rctx.URLParams.Add("leadID", leadID)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetLead(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	created, err := repo.Create(context.Background(), &CreateLeadRequest{
		OrgID: testOrgID,
		Name:  "Mehmet Kaya",
		Email: "mehmet@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	handler.GetLead(w, adminRequest(http.MethodGet, "/admin/clinics/"+testOrgID+"/leads/"+created.ID, testOrgID, created.ID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, w.Code)
	}

	var lead Lead
	if err := json.NewDecoder(w.Body).Decode(&lead); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if lead.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, lead.ID)
	}
}

func TestGetLead_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	w := httptest.NewRecorder()
	handler.GetLead(w, adminRequest(http.MethodGet, "/admin/clinics/"+testOrgID+"/leads/nope", testOrgID, "nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestListLeads_FilterAndPaging(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, &CreateLeadRequest{
			OrgID: testOrgID,
			Name:  "Lead",
			Email: "lead@example.com",
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := repo.Create(ctx, &CreateLeadRequest{
		OrgID: "other-clinic",
		Name:  "Other",
		Email: "other@example.com",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ListLeads(w, adminRequest(http.MethodGet, "/admin/clinics/"+testOrgID+"/leads?limit=2&status=new", testOrgID, "", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, w.Code)
	}

	var resp ListLeadsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 leads, got %d", resp.Count)
	}
	if resp.Limit != 2 {
		t.Errorf("expected limit 2, got %d", resp.Limit)
	}
	for _, lead := range resp.Leads {
		if lead.OrgID != testOrgID {
			t.Errorf("listing leaked lead from org %s", lead.OrgID)
		}
	}
}

func TestAddNote(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	created, err := repo.Create(context.Background(), &CreateLeadRequest{
		OrgID: testOrgID,
		Name:  "Note Target",
		Email: "note@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, _ := json.Marshal(AddNoteRequest{Author: "coordinator", Text: "called, asked for quote"})
	w := httptest.NewRecorder()
	handler.AddNote(w, adminRequest(http.MethodPost, "/admin/clinics/"+testOrgID+"/leads/"+created.ID+"/notes", testOrgID, created.ID, body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, w.Code)
	}

	var note Note
	if err := json.NewDecoder(w.Body).Decode(&note); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if note.LeadID != created.ID {
		t.Errorf("expected lead id %s, got %s", created.ID, note.LeadID)
	}
}

func TestAddNote_EmptyText(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, logging.Default())

	created, err := repo.Create(context.Background(), &CreateLeadRequest{
		OrgID: testOrgID,
		Name:  "Note Target",
		Email: "note@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, _ := json.Marshal(AddNoteRequest{Text: "   "})
	w := httptest.NewRecorder()
	handler.AddNote(w, adminRequest(http.MethodPost, "/admin/clinics/"+testOrgID+"/leads/"+created.ID+"/notes", testOrgID, created.ID, body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, w.Code)
	}
}
