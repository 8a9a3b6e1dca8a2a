package firewall

import (
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("medtour.internal.firewall")

// SanitizeForModel prepares one untrusted text fragment for prompt
// interpolation. Order is fixed and significant: injection detection runs
// on the raw text first, then redaction. Reversing this would let
// placeholders mask parts of an injection phrase and blind the detector.
func SanitizeForModel(text string) (string, *Report) {
	signals := DetectInjection(text)
	sanitized, report := Redact(text)
	for _, sig := range signals {
		report.recordSignal(sig)
	}
	return sanitized, report
}

// WrapUntrusted fences a sanitized block in explicit delimiters before it is
// interpolated into a model prompt. The boundary is a structural defense
// independent of content-level redaction: the prompt template downstream
// treats everything between the markers as data, never as instructions.
func WrapUntrusted(label, content string) string {
	tag := normalizeLabel(label)
	var b strings.Builder
	b.Grow(len(content) + 2*len(tag) + 48)
	b.WriteString("<<<UNTRUSTED_")
	b.WriteString(tag)
	b.WriteString("_BEGIN>>>\n")
	b.WriteString(content)
	b.WriteString("\n<<<UNTRUSTED_")
	b.WriteString(tag)
	b.WriteString("_END>>>")
	return b.String()
}

func normalizeLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return "BLOCK"
	}
	var b strings.Builder
	for _, ch := range label {
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// spanAttrs summarizes a report for trace spans without exposing values.
func spanAttrs(report *Report) []attribute.KeyValue {
	total := 0
	for _, n := range report.Counts {
		total += n
	}
	return []attribute.KeyValue{
		attribute.Bool("firewall.redaction_applied", report.RedactionApplied),
		attribute.Int("firewall.redaction_count", total),
		attribute.Bool("firewall.injection_detected", report.InjectionDetected),
		attribute.Int("firewall.injection_signals", len(report.InjectionSignals)),
	}
}
