package leads

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "clinic-1", "Zeynep Arslan", "zeynep@example.com", "+90 532 444 55 66", "website", []string(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec("INSERT INTO lead_notes").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Interested in rhinoplasty").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead, err := repo.Create(context.Background(), &CreateLeadRequest{
		OrgID:   "clinic-1",
		Name:    "Zeynep Arslan",
		Email:   "zeynep@example.com",
		Phone:   "+90 532 444 55 66",
		Message: "Interested in rhinoplasty",
		Source:  "website",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lead.Status != "new" {
		t.Errorf("expected status new, got %s", lead.Status)
	}
	if !lead.CreatedAt.Equal(now) {
		t.Errorf("expected created_at from database")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs("missing", "clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "org_id", "name", "email", "phone", "source", "status", "treatment_interest", "created_at",
		}))

	if _, err := repo.GetByID(context.Background(), "clinic-1", "missing"); err != ErrLeadNotFound {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs("clinic-1", "new", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "org_id", "name", "email", "phone", "source", "status", "treatment_interest", "created_at",
		}).AddRow("l1", "clinic-1", "A", "a@example.com", "", "website", "new", []string(nil), now).
			AddRow("l2", "clinic-1", "B", "b@example.com", "", "instagram", "new", []string(nil), now))

	out, err := repo.List(context.Background(), "clinic-1", ListLeadsFilter{Status: "new", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_AppendTimeline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectExec("INSERT INTO lead_timeline").
		WithArgs(pgxmock.AnyArg(), "l1", "normalize", "Canonical record updated", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ev := &TimelineEvent{LeadID: "l1", Type: "normalize", Title: "Canonical record updated"}
	if err := repo.AppendTimeline(context.Background(), ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected generated event id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
