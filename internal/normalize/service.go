package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/anatoliahealth/medtour-crm/internal/canonical"
	"github.com/anatoliahealth/medtour-crm/internal/compliance"
	"github.com/anatoliahealth/medtour-crm/internal/firewall"
	"github.com/anatoliahealth/medtour-crm/internal/leads"
	"github.com/anatoliahealth/medtour-crm/internal/observability/metrics"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

var tracer = otel.Tracer("medtour.internal.normalize")

// ErrCooldownActive indicates a normalization run for the lead happened too
// recently.
var ErrCooldownActive = errors.New("normalize: cooldown active for lead")

const (
	reasonInjectionDetected = "prompt_injection_detected"

	defaultMaxTokens = 2048
)

// Config carries the model and merge knobs for the service.
type Config struct {
	ModelID          string
	MaxTokens        int32
	Temperature      float32
	ReviewConfidence float64
}

// Service runs the normalization pipeline for one lead at a time.
type Service struct {
	repo     leads.Repository
	llm      LLMClient
	store    CanonicalStore
	merger   *canonical.Merger
	cooldown *Cooldown
	audit    *compliance.AuditService
	fwm      *metrics.FirewallMetrics
	nm       *metrics.NormalizeMetrics
	logger   *logging.Logger
	cfg      Config
}

// NewService wires the pipeline. Audit, metrics, and cooldown are optional;
// repo, llm, and store are not.
func NewService(repo leads.Repository, llm LLMClient, store CanonicalStore, cooldown *Cooldown,
	audit *compliance.AuditService, fwm *metrics.FirewallMetrics, nm *metrics.NormalizeMetrics,
	logger *logging.Logger, cfg Config) *Service {
	if repo == nil {
		panic("normalize: lead repository cannot be nil")
	}
	if llm == nil {
		panic("normalize: llm client cannot be nil")
	}
	if store == nil {
		panic("normalize: canonical store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	mergerOpts := []canonical.MergerOption{}
	if cfg.ReviewConfidence > 0 {
		mergerOpts = append(mergerOpts, canonical.WithReviewConfidence(cfg.ReviewConfidence))
	}

	return &Service{
		repo:     repo,
		llm:      llm,
		store:    store,
		merger:   canonical.NewMerger(mergerOpts...),
		cooldown: cooldown,
		audit:    audit,
		fwm:      fwm,
		nm:       nm,
		logger:   logger,
		cfg:      cfg,
	}
}

// Result is the outcome of one normalization run.
type Result struct {
	Record   *canonical.Record `json:"record"`
	Firewall *firewall.Report  `json:"firewall_report"`
}

// Normalize loads the lead's context, sanitizes it, asks the model for an
// updated summary, merges it against ground truth, and persists the result.
func (s *Service) Normalize(ctx context.Context, orgID, leadID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "normalize.run")
	defer span.End()
	start := time.Now()

	if !s.cooldown.Allow(ctx, orgID, leadID) {
		s.nm.ObserveRun("cooldown", time.Since(start).Seconds())
		return nil, ErrCooldownActive
	}

	lead, err := s.repo.GetByID(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	noteRows, err := s.repo.ListNotes(ctx, orgID, leadID)
	if err != nil {
		return nil, fmt.Errorf("normalize: load notes: %w", err)
	}
	eventRows, err := s.repo.ListTimeline(ctx, orgID, leadID)
	if err != nil {
		return nil, fmt.Errorf("normalize: load timeline: %w", err)
	}

	scanStart := time.Now()
	noteFragments, report := firewall.SanitizeNotes(ctx, toFirewallNotes(noteRows))
	timelineFragments, timelineReport := firewall.SanitizeTimeline(ctx, toFirewallEvents(eventRows))
	report.Absorb(timelineReport)
	s.fwm.ObserveScanLatency("lead_context", time.Since(scanStart).Seconds())
	s.recordFirewall(ctx, orgID, leadID, report)

	previous, err := s.store.Get(ctx, orgID, leadID)
	if err != nil && !errors.Is(err, ErrCanonicalNotFound) {
		return nil, s.fail(ctx, orgID, leadID, start, "store_error", err)
	}

	facts := groundTruthFacts(lead)
	prompt, err := buildUserPrompt(facts, previous, noteFragments, timelineFragments)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model:       s.cfg.ModelID,
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, s.fail(ctx, orgID, leadID, start, "llm_error", err)
	}

	record, err := s.merger.Merge(facts, resp.Text, previous)
	if err != nil {
		kind := "merge_error"
		switch {
		case errors.Is(err, canonical.ErrMalformedModelOutput):
			kind = "malformed_output"
		case errors.Is(err, canonical.ErrIncompleteModelOutput):
			kind = "incomplete_output"
		}
		return nil, s.fail(ctx, orgID, leadID, start, kind, err)
	}

	record.Sources = canonical.Sources{
		NotesUsedCount:    len(noteFragments),
		TimelineUsedCount: len(timelineFragments),
	}
	if len(noteFragments) > 0 {
		record.Sources.LastNoteAt = noteFragments[0].Timestamp
	}
	if report.InjectionDetected {
		record.ReviewRequired = true
		record.ReviewReasons = appendUnique(record.ReviewReasons, reasonInjectionDetected)
	}

	if err := s.store.Put(ctx, orgID, record); err != nil {
		return nil, s.fail(ctx, orgID, leadID, start, "store_error", err)
	}

	if err := s.repo.AppendTimeline(ctx, &leads.TimelineEvent{
		LeadID: leadID,
		Type:   "normalize",
		Title:  "Canonical record updated",
		Detail: fmt.Sprintf("schema %s, confidence %s", record.Version, confidenceLabel(record.Confidence)),
	}); err != nil {
		s.logger.Warn("normalize: timeline append failed", "error", err, "lead_id", leadID)
	}

	s.auditOutcome(ctx, orgID, leadID, record)
	s.nm.ObserveRun("success", time.Since(start).Seconds())
	s.nm.ObserveConflicts(len(record.Changelog.Conflicts))
	if record.ReviewRequired {
		s.nm.ObserveReviewRequired()
	}
	span.SetAttributes(
		attribute.Bool("normalize.review_required", record.ReviewRequired),
		attribute.Int("normalize.conflicts", len(record.Changelog.Conflicts)),
	)

	s.logger.Info("lead normalized",
		"org_id", orgID,
		"lead_id", leadID,
		"schema_version", record.Version,
		"review_required", record.ReviewRequired,
		"conflicts", len(record.Changelog.Conflicts),
		"stop_reason", resp.StopReason,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return &Result{Record: record, Firewall: report}, nil
}

// Canonical returns the persisted canonical record for a lead.
func (s *Service) Canonical(ctx context.Context, orgID, leadID string) (*canonical.Record, error) {
	return s.store.Get(ctx, orgID, leadID)
}

func (s *Service) fail(ctx context.Context, orgID, leadID string, start time.Time, kind string, err error) error {
	s.nm.ObserveRun(kind, time.Since(start).Seconds())
	if auditErr := s.audit.LogNormalizationFailed(ctx, orgID, leadID, kind); auditErr != nil {
		s.logger.Warn("normalize: audit write failed", "error", auditErr)
	}
	s.logger.Error("normalize: run failed", "org_id", orgID, "lead_id", leadID, "kind", kind, "error", err)
	return err
}

func (s *Service) recordFirewall(ctx context.Context, orgID, leadID string, report *firewall.Report) {
	for kind, n := range report.Counts {
		s.fwm.ObserveRedactions(string(kind), n)
	}
	for _, sig := range report.InjectionSignals {
		s.fwm.ObserveInjection(sig.Pattern)
	}

	if report.RedactionApplied {
		counts := make(map[string]int, len(report.Counts))
		for kind, n := range report.Counts {
			counts[string(kind)] = n
		}
		if err := s.audit.LogRedactionApplied(ctx, orgID, leadID, counts); err != nil {
			s.logger.Warn("normalize: audit write failed", "error", err)
		}
	}
	if report.InjectionDetected {
		patterns := make([]string, 0, len(report.InjectionSignals))
		for _, sig := range report.InjectionSignals {
			patterns = append(patterns, sig.Pattern)
		}
		if err := s.audit.LogPromptInjection(ctx, orgID, leadID, patterns); err != nil {
			s.logger.Warn("normalize: audit write failed", "error", err)
		}
	}
}

func (s *Service) auditOutcome(ctx context.Context, orgID, leadID string, record *canonical.Record) {
	if len(record.Changelog.Conflicts) > 0 {
		if err := s.audit.LogGroundTruthConflict(ctx, orgID, leadID, record.Changelog.Conflicts); err != nil {
			s.logger.Warn("normalize: audit write failed", "error", err)
		}
	}
	if record.ReviewRequired {
		if err := s.audit.LogReviewRequired(ctx, orgID, leadID, record.ReviewReasons, record.Confidence); err != nil {
			s.logger.Warn("normalize: audit write failed", "error", err)
		}
	}
	if err := s.audit.LogNormalized(ctx, orgID, leadID, record.Version); err != nil {
		s.logger.Warn("normalize: audit write failed", "error", err)
	}
}

func groundTruthFacts(lead *leads.Lead) canonical.LeadFacts {
	return canonical.LeadFacts{
		ID:                lead.ID,
		Name:              lead.Name,
		Phone:             lead.Phone,
		Email:             lead.Email,
		Source:            lead.Source,
		TreatmentInterest: lead.TreatmentInterest,
		Status:            lead.Status,
	}
}

func toFirewallNotes(rows []leads.Note) []firewall.Note {
	out := make([]firewall.Note, 0, len(rows))
	for _, n := range rows {
		out = append(out, firewall.Note{
			ID:        n.ID,
			Text:      n.Text,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func toFirewallEvents(rows []leads.TimelineEvent) []firewall.TimelineEvent {
	out := make([]firewall.TimelineEvent, 0, len(rows))
	for _, ev := range rows {
		out = append(out, firewall.TimelineEvent{
			ID:        ev.ID,
			Type:      ev.Type,
			Title:     ev.Title,
			Detail:    ev.Detail,
			CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func confidenceLabel(confidence *float64) string {
	if confidence == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.0f", *confidence)
}
