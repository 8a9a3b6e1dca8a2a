package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the slice of pgxpool.Pool the repository needs. Narrow so
// tests can substitute a mock pool.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores leads, notes, and timeline events in Postgres.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db pgxQuerier) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new lead row, plus an initial note when the submission
// carried a message.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	query := `
		INSERT INTO leads (id, org_id, name, email, phone, source, status, treatment_interest)
		VALUES ($1, $2, $3, $4, $5, $6, 'new', $7)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id, req.OrgID, req.Name, req.Email, req.Phone, req.Source, req.TreatmentInterest,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	if req.Message != "" {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO lead_notes (id, lead_id, author, text) VALUES ($1, $2, 'patient', $3)`,
			uuid.NewString(), id, req.Message,
		); err != nil {
			return nil, fmt.Errorf("leads: insert initial note failed: %w", err)
		}
	}

	return &Lead{
		ID:                id,
		OrgID:             req.OrgID,
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Source:            req.Source,
		Status:            "new",
		TreatmentInterest: req.TreatmentInterest,
		CreatedAt:         createdAt,
	}, nil
}

// GetByID fetches a lead scoped to its org.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	query := `
		SELECT id, org_id, name, email, phone, source, status, treatment_interest, created_at
		FROM leads
		WHERE id = $1 AND org_id = $2
	`
	lead := &Lead{}
	err := r.db.QueryRow(ctx, query, id, orgID).Scan(
		&lead.ID, &lead.OrgID, &lead.Name, &lead.Email, &lead.Phone,
		&lead.Source, &lead.Status, &lead.TreatmentInterest, &lead.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: get failed: %w", err)
	}
	return lead, nil
}

// List returns leads for an org, newest first.
func (r *PostgresRepository) List(ctx context.Context, orgID string, filter ListLeadsFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, org_id, name, email, phone, source, status, treatment_interest, created_at
		FROM leads
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, orgID, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead := &Lead{}
		if err := rows.Scan(
			&lead.ID, &lead.OrgID, &lead.Name, &lead.Email, &lead.Phone,
			&lead.Source, &lead.Status, &lead.TreatmentInterest, &lead.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// AddNote appends a note to a lead after confirming org ownership.
func (r *PostgresRepository) AddNote(ctx context.Context, orgID, leadID string, req *AddNoteRequest) (*Note, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	note := &Note{
		ID:     uuid.NewString(),
		LeadID: leadID,
		Author: req.Author,
		Text:   req.Text,
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO lead_notes (id, lead_id, author, text) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		note.ID, leadID, req.Author, req.Text,
	).Scan(&note.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("leads: insert note failed: %w", err)
	}
	return note, nil
}

// ListNotes returns a lead's notes, newest first.
func (r *PostgresRepository) ListNotes(ctx context.Context, orgID, leadID string) ([]Note, error) {
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, lead_id, author, text, created_at FROM lead_notes WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("leads: list notes failed: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Author, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("leads: scan note failed: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListTimeline returns a lead's timeline events, newest first.
func (r *PostgresRepository) ListTimeline(ctx context.Context, orgID, leadID string) ([]TimelineEvent, error) {
	if _, err := r.GetByID(ctx, orgID, leadID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, lead_id, type, title, detail, created_at FROM lead_timeline WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("leads: list timeline failed: %w", err)
	}
	defer rows.Close()

	var out []TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.LeadID, &ev.Type, &ev.Title, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("leads: scan event failed: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AppendTimeline stores a timeline event.
func (r *PostgresRepository) AppendTimeline(ctx context.Context, event *TimelineEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO lead_timeline (id, lead_id, type, title, detail) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.LeadID, event.Type, event.Title, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("leads: insert event failed: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*InMemoryRepository)(nil)
