// Package canonical reconciles model-proposed lead summaries with ground
// truth and prior state into a versioned, auditable canonical record.
package canonical

import "time"

// SchemaVersion is pinned onto every merged record regardless of what the
// model returned.
const SchemaVersion = "1.1"

// DefaultReviewConfidence is the confidence floor (0-100) below which a
// record is forced into human review. Product decision carried over from
// the legacy pipeline; override via Merger options.
const DefaultReviewConfidence = 55

// LeadFacts is the ground-truth lead record from the system of record. The
// model may reference these values but never invent or override them.
type LeadFacts struct {
	ID                string   `json:"id"`
	Name              string   `json:"name,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Email             string   `json:"email,omitempty"`
	Source            string   `json:"source,omitempty"`
	TreatmentInterest []string `json:"treatment_interest,omitempty"`
	Status            string   `json:"status,omitempty"`
}

// Facts holds the model-produced factual summary of a lead.
type Facts struct {
	Name              string   `json:"name,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Email             string   `json:"email,omitempty"`
	Source            string   `json:"source,omitempty"`
	TreatmentInterest []string `json:"treatment_interest,omitempty"`
	Budget            *float64 `json:"budget,omitempty"`
	TimeWindow        string   `json:"time_window,omitempty"`
	Objections        []string `json:"objections,omitempty"`
	Preferences       []string `json:"preferences,omitempty"`
}

// EventsSummary condenses timeline activity.
type EventsSummary struct {
	LastActivityAt string `json:"last_activity_at,omitempty"`
	LastContactAt  string `json:"last_contact_at,omitempty"`
	BookingStatus  string `json:"booking_status,omitempty"`
	BookingTime    string `json:"booking_time,omitempty"`
}

// NextBestAction is the model's recommended follow-up.
type NextBestAction struct {
	Label    string   `json:"label,omitempty"`
	DueHours float64  `json:"due_hours,omitempty"`
	Script   []string `json:"script,omitempty"`
	Channel  string   `json:"channel,omitempty"`
}

// Changelog is the field-level audit trail of a merge: what the model added,
// updated, or removed relative to the previous record, and where it conflicted
// with ground truth.
type Changelog struct {
	Added     []string `json:"added"`
	Updated   []string `json:"updated"`
	Removed   []string `json:"removed"`
	Conflicts []string `json:"conflicts"`
}

// Sources records how much sanitized context fed the normalization.
type Sources struct {
	NotesUsedCount    int    `json:"notes_used_count"`
	TimelineUsedCount int    `json:"timeline_used_count"`
	LastNoteAt        string `json:"last_note_at,omitempty"`
}

// Record is the durable canonical summary of a lead.
type Record struct {
	Version        string         `json:"version"`
	LeadID         string         `json:"lead_id"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Facts          Facts          `json:"facts"`
	EventsSummary  EventsSummary  `json:"events_summary"`
	NextBestAction NextBestAction `json:"next_best_action"`
	MissingFields  []string       `json:"missing_fields,omitempty"`
	OpenQuestions  []string       `json:"open_questions,omitempty"`
	RiskScore      *float64       `json:"risk_score,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Changelog      Changelog      `json:"changelog"`
	Sources        Sources        `json:"sources"`
	ReviewRequired bool           `json:"review_required"`
	ReviewReasons  []string       `json:"review_reasons,omitempty"`
}
