// Package compliance provides the regulatory audit trail for the
// normalization pipeline.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventRedactionApplied is logged when the firewall masked sensitive
	// values before model exposure.
	EventRedactionApplied AuditEventType = "firewall.redaction_applied"
	// EventPromptInjection is logged when a prompt injection attempt is
	// detected in untrusted lead text.
	EventPromptInjection AuditEventType = "security.prompt_injection"
	// EventGroundTruthConflict is logged when model output disagreed with
	// the system of record and was overridden.
	EventGroundTruthConflict AuditEventType = "canonical.ground_truth_conflict"
	// EventReviewRequired is logged when a canonical record was flagged
	// for human review.
	EventReviewRequired AuditEventType = "canonical.review_required"
	// EventNormalized is logged when a canonical record was produced and
	// persisted.
	EventNormalized AuditEventType = "canonical.normalized"
	// EventNormalizationFailed is logged when the pipeline could not
	// produce a canonical record.
	EventNormalizationFailed AuditEventType = "canonical.normalization_failed"
)

// AuditEvent represents an immutable audit record. Details never carry raw
// sensitive values, only counts, pattern ids, and field names.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	OrgID     string          `json:"org_id"`
	LeadID    string          `json:"lead_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For redaction applied
	RedactionCounts map[string]int `json:"redaction_counts,omitempty"`

	// For prompt injection detected
	InjectionPatterns []string `json:"injection_patterns,omitempty"`

	// For ground-truth conflicts
	ConflictFields []string `json:"conflict_fields,omitempty"`

	// For review required
	ReviewReasons []string `json:"review_reasons,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`

	// For normalization outcomes
	SchemaVersion string `json:"schema_version,omitempty"`
	FailureKind   string `json:"failure_kind,omitempty"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, org_id, lead_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.OrgID,
		nullString(event.LeadID),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogRedactionApplied logs redaction counts by kind. Masked samples stay
// out of the audit trail.
func (s *AuditService) LogRedactionApplied(ctx context.Context, orgID, leadID string, counts map[string]int) error {
	detailsJSON, _ := json.Marshal(AuditDetails{RedactionCounts: counts})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventRedactionApplied,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// LogPromptInjection logs a detected injection attempt. Only pattern ids
// are stored, never the payload.
func (s *AuditService) LogPromptInjection(ctx context.Context, orgID, leadID string, patterns []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{InjectionPatterns: patterns})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventPromptInjection,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// LogGroundTruthConflict logs the record fields where model output was
// overridden by the system of record.
func (s *AuditService) LogGroundTruthConflict(ctx context.Context, orgID, leadID string, fields []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{ConflictFields: fields})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventGroundTruthConflict,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// LogReviewRequired logs a canonical record flagged for human review.
func (s *AuditService) LogReviewRequired(ctx context.Context, orgID, leadID string, reasons []string, confidence *float64) error {
	detailsJSON, _ := json.Marshal(AuditDetails{ReviewReasons: reasons, Confidence: confidence})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventReviewRequired,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// LogNormalized logs a successful normalization run.
func (s *AuditService) LogNormalized(ctx context.Context, orgID, leadID, schemaVersion string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{SchemaVersion: schemaVersion})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventNormalized,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// LogNormalizationFailed logs a failed run with the failure kind only.
func (s *AuditService) LogNormalizationFailed(ctx context.Context, orgID, leadID, failureKind string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{FailureKind: failureKind})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventNormalizationFailed,
		OrgID:     orgID,
		LeadID:    leadID,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, org_id, lead_id, details, created_at
		FROM compliance_audit_events
		WHERE org_id = $1
	`
	args := []interface{}{filter.OrgID}
	argIdx := 2

	if filter.LeadID != "" {
		query += fmt.Sprintf(" AND lead_id = $%d", argIdx)
		args = append(args, filter.LeadID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var leadID sql.NullString
		err := rows.Scan(&e.ID, &e.EventType, &e.OrgID, &leadID, &e.Details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.LeadID = leadID.String
		events = append(events, e)
	}

	return events, rows.Err()
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	OrgID     string
	LeadID    string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
