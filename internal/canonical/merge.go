package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedModelOutput means no valid {...} span was found or the
	// span failed strict JSON parsing. The previous canonical record, if
	// any, stays authoritative.
	ErrMalformedModelOutput = errors.New("canonical: malformed model output")

	// ErrIncompleteModelOutput means the JSON parsed but carries none of
	// the required top-level sections (facts, next_best_action, risk_score,
	// confidence).
	ErrIncompleteModelOutput = errors.New("canonical: incomplete model output")
)

// Merger assembles canonical records from model output, ground truth, and
// prior state. All methods are pure; the clock is injectable for tests.
type Merger struct {
	reviewConfidence float64
	now              func() time.Time
}

// MergerOption customizes a Merger.
type MergerOption func(*Merger)

// WithReviewConfidence overrides the confidence floor that forces review.
func WithReviewConfidence(threshold float64) MergerOption {
	return func(m *Merger) { m.reviewConfidence = threshold }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MergerOption {
	return func(m *Merger) { m.now = now }
}

// NewMerger builds a Merger with the default confidence gate.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{
		reviewConfidence: DefaultReviewConfidence,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// modelPayload mirrors Record with pointer fields so section presence can be
// distinguished from zero values.
type modelPayload struct {
	Version        string          `json:"version"`
	LeadID         string          `json:"lead_id"`
	UpdatedAt      *time.Time      `json:"updated_at"`
	Facts          *Facts          `json:"facts"`
	EventsSummary  *EventsSummary  `json:"events_summary"`
	NextBestAction *NextBestAction `json:"next_best_action"`
	MissingFields  []string        `json:"missing_fields"`
	OpenQuestions  []string        `json:"open_questions"`
	RiskScore      *float64        `json:"risk_score"`
	Confidence     *float64        `json:"confidence"`
	Sources        *Sources        `json:"sources"`
	ReviewRequired bool            `json:"review_required"`
	ReviewReasons  []string        `json:"review_reasons"`
}

// Merge parses the model's raw output defensively and reconciles it with
// ground truth and the previous record. It never evaluates model output as
// code: the only parser involved is encoding/json over an extracted brace
// span.
func (m *Merger) Merge(groundTruth LeadFacts, modelRaw string, previous *Record) (*Record, error) {
	text := extractJSONObject(stripCodeFence(modelRaw))
	if text == "" {
		return nil, fmt.Errorf("%w: no JSON object span found", ErrMalformedModelOutput)
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	if payload.Facts == nil && payload.NextBestAction == nil && payload.RiskScore == nil && payload.Confidence == nil {
		return nil, fmt.Errorf("%w: missing facts, next_best_action, and risk_score", ErrIncompleteModelOutput)
	}

	rec := &Record{
		Version:       SchemaVersion,
		LeadID:        groundTruth.ID,
		UpdatedAt:     m.now(),
		MissingFields: payload.MissingFields,
		OpenQuestions: payload.OpenQuestions,
		RiskScore:     payload.RiskScore,
		Confidence:    payload.Confidence,
		Changelog: Changelog{
			Added:     []string{},
			Updated:   []string{},
			Removed:   []string{},
			Conflicts: []string{},
		},
		ReviewRequired: payload.ReviewRequired,
		ReviewReasons:  payload.ReviewReasons,
	}
	if payload.UpdatedAt != nil && !payload.UpdatedAt.IsZero() {
		rec.UpdatedAt = payload.UpdatedAt.UTC()
	}
	if payload.Facts != nil {
		rec.Facts = *payload.Facts
	}
	if payload.EventsSummary != nil {
		rec.EventsSummary = *payload.EventsSummary
	}
	if payload.NextBestAction != nil {
		rec.NextBestAction = *payload.NextBestAction
	}
	if payload.Sources != nil {
		rec.Sources = *payload.Sources
	}

	// Ground truth wins for contact identity fields. The model may use
	// them, never override them. A disagreement is flagged, not merged.
	conflicted := false
	conflicted = applyGroundTruth(&rec.Facts.Phone, groundTruth.Phone, "facts.phone", &rec.Changelog) || conflicted
	conflicted = applyGroundTruth(&rec.Facts.Email, groundTruth.Email, "facts.email", &rec.Changelog) || conflicted
	conflicted = applyGroundTruth(&rec.Facts.Source, groundTruth.Source, "facts.source", &rec.Changelog) || conflicted
	if rec.Facts.Name == "" {
		rec.Facts.Name = groundTruth.Name
	}

	if previous != nil {
		diffRecords(previous, rec, &rec.Changelog)
	} else {
		for _, field := range sortedKeys(flattenRecord(rec)) {
			rec.Changelog.Added = append(rec.Changelog.Added, field)
		}
	}

	if conflicted {
		rec.ReviewRequired = true
		rec.ReviewReasons = appendReason(rec.ReviewReasons, "ground_truth_conflict")
	}
	if rec.Confidence != nil && *rec.Confidence < m.reviewConfidence {
		rec.ReviewRequired = true
		rec.ReviewReasons = appendReason(rec.ReviewReasons, "low_confidence")
	}

	return rec, nil
}

// applyGroundTruth force-sets dst to the ground-truth value when ground
// truth is non-empty, recording a conflict if the model proposed something
// different. Returns true when a conflict was recorded.
func applyGroundTruth(dst *string, truth, field string, log *Changelog) bool {
	if truth == "" {
		return false
	}
	proposed := strings.TrimSpace(*dst)
	*dst = truth
	if proposed != "" && proposed != truth {
		log.Conflicts = append(log.Conflicts, field+": model value overridden by ground truth")
		return true
	}
	return false
}

// diffRecords computes the field-level changelog between the previous and
// new record. Output lists are sorted for deterministic audit trails.
func diffRecords(previous, current *Record, log *Changelog) {
	prev := flattenRecord(previous)
	next := flattenRecord(current)

	for _, field := range sortedKeys(next) {
		old, existed := prev[field]
		switch {
		case !existed:
			log.Added = append(log.Added, field)
		case old != next[field]:
			log.Updated = append(log.Updated, field)
		}
	}
	for _, field := range sortedKeys(prev) {
		if _, exists := next[field]; !exists {
			log.Removed = append(log.Removed, field)
		}
	}
}

// flattenRecord projects the comparable fields of a record into a flat map.
// Empty values are omitted so absence and emptiness diff identically.
func flattenRecord(rec *Record) map[string]string {
	m := make(map[string]string)
	put := func(field, value string) {
		if strings.TrimSpace(value) != "" {
			m[field] = value
		}
	}
	put("facts.name", rec.Facts.Name)
	put("facts.phone", rec.Facts.Phone)
	put("facts.email", rec.Facts.Email)
	put("facts.source", rec.Facts.Source)
	put("facts.treatment_interest", strings.Join(rec.Facts.TreatmentInterest, ", "))
	if rec.Facts.Budget != nil {
		put("facts.budget", strconv.FormatFloat(*rec.Facts.Budget, 'f', -1, 64))
	}
	put("facts.time_window", rec.Facts.TimeWindow)
	put("facts.objections", strings.Join(rec.Facts.Objections, ", "))
	put("facts.preferences", strings.Join(rec.Facts.Preferences, ", "))
	put("events_summary.last_activity_at", rec.EventsSummary.LastActivityAt)
	put("events_summary.last_contact_at", rec.EventsSummary.LastContactAt)
	put("events_summary.booking_status", rec.EventsSummary.BookingStatus)
	put("events_summary.booking_time", rec.EventsSummary.BookingTime)
	put("next_best_action.label", rec.NextBestAction.Label)
	if rec.NextBestAction.DueHours != 0 {
		put("next_best_action.due_hours", strconv.FormatFloat(rec.NextBestAction.DueHours, 'f', -1, 64))
	}
	put("next_best_action.channel", rec.NextBestAction.Channel)
	put("next_best_action.script", strings.Join(rec.NextBestAction.Script, " | "))
	if rec.RiskScore != nil {
		put("risk_score", strconv.FormatFloat(*rec.RiskScore, 'f', -1, 64))
	}
	if rec.Confidence != nil {
		put("confidence", strconv.FormatFloat(*rec.Confidence, 'f', -1, 64))
	}
	return m
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendReason(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the span from the first '{' to the last '}',
// or "" when no such span exists. The model may wrap its JSON in prose.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
