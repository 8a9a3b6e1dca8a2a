package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactKinds(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantKind   RedactionKind
		wantCount  int
		wantSample string
	}{
		{
			name:       "email",
			text:       "reach me at sarah@gmail.com please",
			wantKind:   KindEmail,
			wantCount:  1,
			wantSample: "s***h@gmail.com",
		},
		{
			name:       "grouped phone",
			text:       "call me at 555-123-4567",
			wantKind:   KindPhone,
			wantCount:  1,
			wantSample: "***4567",
		},
		{
			name:       "international phone",
			text:       "my number is +90 532 123 45 67",
			wantKind:   KindPhone,
			wantCount:  1,
			wantSample: "***4567",
		},
		{
			name:       "domestic bare phone",
			text:       "numaram 05321234567",
			wantKind:   KindPhone,
			wantCount:  1,
			wantSample: "***4567",
		},
		{
			name:       "turkish iban",
			text:       "deposit to TR330006100519786457841326 today",
			wantKind:   KindIBAN,
			wantCount:  1,
			wantSample: "TR**1326",
		},
		{
			name:       "national id",
			text:       "tc kimlik 12345678950",
			wantKind:   KindNationalID,
			wantCount:  1,
			wantSample: "*******8950",
		},
		{
			name:       "credit card passing luhn",
			text:       "paid with 4111 1111 1111 1111",
			wantKind:   KindCreditCard,
			wantCount:  1,
			wantSample: "****1111",
		},
		{
			name:       "passport token near keyword",
			text:       "passport number AB1234567 expires 2027",
			wantKind:   KindPassportLike,
			wantCount:  1,
			wantSample: "A***7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sanitized, report := Redact(tt.text)
			assert.True(t, report.RedactionApplied)
			assert.Equal(t, tt.wantCount, report.Counts[tt.wantKind])
			require.NotEmpty(t, report.SampleMasked[tt.wantKind])
			assert.Equal(t, tt.wantSample, report.SampleMasked[tt.wantKind][0])
			assert.Contains(t, sanitized, placeholders[tt.wantKind])
		})
	}
}

func TestRedactNegatives(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty input", ""},
		{"whitespace only", "   \n\t"},
		{"plain message", "I'd like to book a consultation for next Thursday"},
		{"sixteen digits failing luhn", "ref 4111111111111112 noted"},
		{"short digit run", "room 4512 on floor 3"},
		{"nine digit run", "tracking 123456789"},
		{"passport-length token without keyword", "booking ref KLM4455667 confirmed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sanitized, report := Redact(tt.text)
			assert.False(t, report.RedactionApplied)
			assert.Empty(t, report.Counts)
			assert.Empty(t, report.SampleMasked)
			assert.Equal(t, tt.text, sanitized)
		})
	}
}

func TestRedactLuhnGate(t *testing.T) {
	_, report := Redact("card 4111111111111111")
	assert.Equal(t, 1, report.Counts[KindCreditCard])

	_, report = Redact("card 4111111111111112")
	assert.Zero(t, report.Counts[KindCreditCard])
}

func TestRedactIdempotent(t *testing.T) {
	texts := []string{
		"email sarah@gmail.com phone 555-123-4567 iban TR330006100519786457841326",
		"tc 12345678950 card 4111 1111 1111 1111 passport AB1234567",
		"nothing sensitive here",
	}
	for _, text := range texts {
		once, _ := Redact(text)
		twice, report := Redact(once)
		assert.False(t, report.RedactionApplied, "second pass found spans in %q", once)
		assert.Equal(t, once, twice)
	}
}

func TestRedactIdempotentPassportWindowShift(t *testing.T) {
	// A token sitting just past the keyword window must stay out of scope on
	// a second pass. The placeholder is longer than the token it replaces, so
	// downstream text only moves further from the keyword; and the
	// placeholder itself must not introduce a new keyword window.
	text := "passport AB123456" + strings.Repeat(" ", 64) + "XY987654"

	once, r1 := Redact(text)
	assert.Equal(t, 1, r1.Counts[KindPassportLike])
	assert.Contains(t, once, "XY987654")

	twice, r2 := Redact(once)
	assert.False(t, r2.RedactionApplied, "second pass found spans in %q", once)
	assert.Equal(t, once, twice)
}

func TestRedactPrecedence(t *testing.T) {
	// An 11-digit national ID must not be consumed by the phone rule: bare
	// runs starting 1-9 fall through to the national_id rule.
	_, report := Redact("kimlik no 12345678950")
	assert.Zero(t, report.Counts[KindPhone])
	assert.Equal(t, 1, report.Counts[KindNationalID])

	// A 16-digit card is too long to be phone-shaped even when grouped.
	_, report = Redact("4111 1111 1111 1111")
	assert.Zero(t, report.Counts[KindPhone])
	assert.Equal(t, 1, report.Counts[KindCreditCard])

	// Digits inside an already-consumed IBAN are not re-matched.
	_, report = Redact("TR330006100519786457841326")
	assert.Equal(t, 1, report.Counts[KindIBAN])
	assert.Zero(t, report.Counts[KindNationalID])
	assert.Zero(t, report.Counts[KindCreditCard])
}

func TestRedactSampleCap(t *testing.T) {
	text := strings.Join([]string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com",
	}, " and ")
	_, report := Redact(text)
	assert.Equal(t, 5, report.Counts[KindEmail])
	assert.Len(t, report.SampleMasked[KindEmail], maxSamplesPerKind)
	assert.LessOrEqual(t, len(report.SampleMasked[KindEmail]), report.Counts[KindEmail])
}

func TestRedactNoRawValuesInReport(t *testing.T) {
	text := "sarah@gmail.com 555-123-4567 TR330006100519786457841326 12345678950 4111111111111111"
	_, report := Redact(text)
	for kind, samples := range report.SampleMasked {
		for _, sample := range samples {
			assert.NotContains(t, text, sample, "kind %s sample leaks a raw substring", kind)
		}
	}
	for _, e := range report.MaskedContacts.Emails {
		assert.NotEqual(t, "sarah@gmail.com", e)
	}
	for _, p := range report.MaskedContacts.Phones {
		assert.NotContains(t, p, "5551234567")
	}
}

func TestLuhnValid(t *testing.T) {
	assert.True(t, luhnValid("4111111111111111"))
	assert.True(t, luhnValid("5500005555555559"))
	assert.False(t, luhnValid("4111111111111112"))
	assert.False(t, luhnValid("1"))
	assert.False(t, luhnValid("41x1111111111111"))
}
