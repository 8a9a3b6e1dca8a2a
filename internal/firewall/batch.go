package firewall

import (
	"context"
	"strings"
)

// Note is an untrusted staff note or patient message attached to a lead.
type Note struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// TimelineEvent is an untrusted activity entry on a lead's timeline. Only
// Title and Detail are sanitized; the metadata fields pass through untouched.
type TimelineEvent struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SanitizedFragment is one fragment with every sensitive span replaced by
// its placeholder token.
type SanitizedFragment struct {
	ID            string `json:"id,omitempty"`
	Timestamp     string `json:"timestamp"`
	SanitizedText string `json:"sanitized_text"`
}

// SanitizeNotes runs the sanitization pipeline over each note and folds the
// per-fragment reports into one bounded aggregate. Fragments are processed
// in caller-supplied order, so the aggregate's first-N samples and signals
// are deterministic for a given input list.
func SanitizeNotes(ctx context.Context, notes []Note) ([]SanitizedFragment, *Report) {
	_, span := tracer.Start(ctx, "firewall.sanitize_notes")
	defer span.End()

	aggregate := NewReport()
	fragments := make([]SanitizedFragment, 0, len(notes))
	for _, note := range notes {
		sanitized, report := SanitizeForModel(note.Text)
		aggregate.Absorb(report)
		fragments = append(fragments, SanitizedFragment{
			ID:            note.ID,
			Timestamp:     note.CreatedAt,
			SanitizedText: sanitized,
		})
	}
	span.SetAttributes(spanAttrs(aggregate)...)
	return fragments, aggregate
}

// SanitizeTimeline sanitizes each event's title and detail independently and
// aggregates reports under the same bounded rules as SanitizeNotes.
func SanitizeTimeline(ctx context.Context, events []TimelineEvent) ([]SanitizedFragment, *Report) {
	_, span := tracer.Start(ctx, "firewall.sanitize_timeline")
	defer span.End()

	aggregate := NewReport()
	fragments := make([]SanitizedFragment, 0, len(events))
	for _, ev := range events {
		title, titleReport := SanitizeForModel(ev.Title)
		aggregate.Absorb(titleReport)

		text := title
		if strings.TrimSpace(ev.Detail) != "" {
			detail, detailReport := SanitizeForModel(ev.Detail)
			aggregate.Absorb(detailReport)
			text = title + ": " + detail
		}
		if ev.Type != "" {
			text = "[" + ev.Type + "] " + text
		}
		fragments = append(fragments, SanitizedFragment{
			ID:            ev.ID,
			Timestamp:     ev.CreatedAt,
			SanitizedText: text,
		})
	}
	span.SetAttributes(spanAttrs(aggregate)...)
	return fragments, aggregate
}
