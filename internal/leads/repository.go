package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines lead storage. Notes and timeline events are returned
// newest-first so downstream sanitization sees the freshest context first.
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, orgID, id string) (*Lead, error)
	List(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error)
	AddNote(ctx context.Context, orgID, leadID string, req *AddNoteRequest) (*Note, error)
	ListNotes(ctx context.Context, orgID, leadID string) ([]Note, error)
	ListTimeline(ctx context.Context, orgID, leadID string) ([]TimelineEvent, error)
	AppendTimeline(ctx context.Context, event *TimelineEvent) error
}

// InMemoryRepository implements Repository with process-local storage. Used
// in development and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	leads    map[string]*Lead
	notes    map[string][]Note
	timeline map[string][]TimelineEvent
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:    make(map[string]*Lead),
		notes:    make(map[string][]Note),
		timeline: make(map[string][]TimelineEvent),
	}
}

// Create stores a new lead.
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := &Lead{
		ID:                uuid.NewString(),
		OrgID:             req.OrgID,
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Source:            req.Source,
		Status:            "new",
		TreatmentInterest: req.TreatmentInterest,
		CreatedAt:         time.Now().UTC(),
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	if req.Message != "" {
		r.notes[lead.ID] = append(r.notes[lead.ID], Note{
			ID:        uuid.NewString(),
			LeadID:    lead.ID,
			Author:    "patient",
			Text:      req.Message,
			CreatedAt: lead.CreatedAt,
		})
	}
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead scoped to its org.
func (r *InMemoryRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || lead.OrgID != orgID {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// List returns leads for an org, newest first.
func (r *InMemoryRepository) List(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Lead
	for _, lead := range r.leads {
		if lead.OrgID != orgID {
			continue
		}
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AddNote appends a note to a lead.
func (r *InMemoryRepository) AddNote(ctx context.Context, orgID, leadID string, req *AddNoteRequest) (*Note, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	note := Note{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Author:    req.Author,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.notes[leadID] = append(r.notes[leadID], note)
	r.mu.Unlock()

	return &note, nil
}

// ListNotes returns a lead's notes, newest first.
func (r *InMemoryRepository) ListNotes(ctx context.Context, orgID, leadID string) ([]Note, error) {
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]Note, len(r.notes[leadID]))
	copy(notes, r.notes[leadID])
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

// ListTimeline returns a lead's timeline events, newest first.
func (r *InMemoryRepository) ListTimeline(ctx context.Context, orgID, leadID string) ([]TimelineEvent, error) {
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]TimelineEvent, len(r.timeline[leadID]))
	copy(events, r.timeline[leadID])
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

// AppendTimeline stores a timeline event.
func (r *InMemoryRepository) AppendTimeline(ctx context.Context, event *TimelineEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.timeline[event.LeadID] = append(r.timeline[event.LeadID], *event)
	r.mu.Unlock()
	return nil
}
