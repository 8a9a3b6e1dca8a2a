package leads

import (
	"strings"
	"time"
)

// Lead is the ground-truth lead record from the system of record. Contact
// identity fields here are authoritative; the normalization engine may read
// them but never lets model output override them.
type Lead struct {
	ID                string    `json:"id"`
	OrgID             string    `json:"org_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Source            string    `json:"source"`
	Status            string    `json:"status"`
	TreatmentInterest []string  `json:"treatment_interest,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Note is a free-text note attached to a lead: patient messages and staff
// annotations. Treated as untrusted input by the firewall.
type Note struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Author    string    `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineEvent is an activity entry on a lead's timeline.
type TimelineEvent struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateLeadRequest is the request body for creating a lead.
type CreateLeadRequest struct {
	OrgID             string   `json:"-"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Message           string   `json:"message"`
	Source            string   `json:"source"`
	TreatmentInterest []string `json:"treatment_interest"`
}

// Validate checks the create request.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.OrgID) == "" {
		return ErrMissingOrgID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.Email == "" && r.Phone == "" {
		return ErrMissingContact
	}
	return nil
}

// AddNoteRequest is the request body for attaching a note.
type AddNoteRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// Validate checks the note request.
func (r *AddNoteRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyNote
	}
	return nil
}

// ListLeadsFilter narrows a lead listing.
type ListLeadsFilter struct {
	Status string
	Limit  int
	Offset int
}
