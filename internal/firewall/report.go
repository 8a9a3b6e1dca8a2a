// Package firewall sanitizes untrusted patient-authored text before it is
// interpolated into an LLM prompt. It masks personally identifying data,
// flags prompt-injection attempts, and emits an audit-safe report that
// never contains a raw sensitive value.
package firewall

// RedactionKind categorizes a sensitive span found in untrusted text.
type RedactionKind string

const (
	KindEmail        RedactionKind = "email"
	KindPhone        RedactionKind = "phone"
	KindIBAN         RedactionKind = "iban"
	KindNationalID   RedactionKind = "national_id"
	KindCreditCard   RedactionKind = "credit_card"
	KindPassportLike RedactionKind = "passport_like"
)

// Report size caps. These are hard limits on audit output, not performance
// tuning: they bound what can leak into logs no matter how large the input is.
const (
	maxSamplesPerKind   = 3
	maxInjectionSignals = 8
	maxMaskedContacts   = 10
)

// InjectionSignal records one prompt-manipulation signature hit.
type InjectionSignal struct {
	Pattern string `json:"pattern"`
	Match   string `json:"match"`
	Offset  int    `json:"offset"`
}

// MaskedContacts lists contact details found in the text, masked form only.
type MaskedContacts struct {
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

// Report is the audit output of a sanitization pass. Counts and samples are
// keyed by redaction kind; a kind with zero matches has no entry in either map.
type Report struct {
	RedactionApplied  bool                       `json:"redaction_applied"`
	Counts            map[RedactionKind]int      `json:"counts,omitempty"`
	SampleMasked      map[RedactionKind][]string `json:"sample_masked,omitempty"`
	InjectionDetected bool                       `json:"injection_detected"`
	InjectionSignals  []InjectionSignal          `json:"injection_signals,omitempty"`
	MaskedContacts    MaskedContacts             `json:"masked_contacts"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{
		Counts:       make(map[RedactionKind]int),
		SampleMasked: make(map[RedactionKind][]string),
	}
}

// recordMatch registers one redacted span of the given kind. The masked
// sample is kept only while under the per-kind cap.
func (r *Report) recordMatch(kind RedactionKind, masked string) {
	r.RedactionApplied = true
	r.Counts[kind]++
	if len(r.SampleMasked[kind]) < maxSamplesPerKind {
		r.SampleMasked[kind] = append(r.SampleMasked[kind], masked)
	}
	switch kind {
	case KindEmail:
		if len(r.MaskedContacts.Emails) < maxMaskedContacts {
			r.MaskedContacts.Emails = append(r.MaskedContacts.Emails, masked)
		}
	case KindPhone:
		if len(r.MaskedContacts.Phones) < maxMaskedContacts {
			r.MaskedContacts.Phones = append(r.MaskedContacts.Phones, masked)
		}
	}
}

// recordSignal adds an injection signal, de-duplicated by (pattern, match)
// and capped at maxInjectionSignals.
func (r *Report) recordSignal(sig InjectionSignal) {
	for _, existing := range r.InjectionSignals {
		if existing.Pattern == sig.Pattern && existing.Match == sig.Match {
			return
		}
	}
	if len(r.InjectionSignals) >= maxInjectionSignals {
		r.InjectionDetected = true
		return
	}
	r.InjectionSignals = append(r.InjectionSignals, sig)
	r.InjectionDetected = true
}

// Absorb folds another fragment's report into this aggregate. Counts sum;
// samples, signals, and masked contacts keep first-seen entries up to the
// caps, so the aggregate stays O(1) regardless of fragment count.
func (r *Report) Absorb(other *Report) {
	if other == nil {
		return
	}
	if other.RedactionApplied {
		r.RedactionApplied = true
	}
	for kind, n := range other.Counts {
		r.Counts[kind] += n
	}
	for kind, samples := range other.SampleMasked {
		for _, s := range samples {
			if len(r.SampleMasked[kind]) < maxSamplesPerKind {
				r.SampleMasked[kind] = append(r.SampleMasked[kind], s)
			}
		}
	}
	for _, sig := range other.InjectionSignals {
		r.recordSignal(sig)
	}
	for _, e := range other.MaskedContacts.Emails {
		if len(r.MaskedContacts.Emails) < maxMaskedContacts {
			r.MaskedContacts.Emails = append(r.MaskedContacts.Emails, e)
		}
	}
	for _, p := range other.MaskedContacts.Phones {
		if len(r.MaskedContacts.Phones) < maxMaskedContacts {
			r.MaskedContacts.Phones = append(r.MaskedContacts.Phones, p)
		}
	}
}
