package firewall

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder tokens substituted for redacted spans. None of them contain
// digits, '@', or a passport keyword, so a second redaction pass over
// already-sanitized text finds nothing (redaction is idempotent). The
// travel-doc placeholder deliberately avoids the word "passport": a
// placeholder containing the keyword would open a fresh keyword window
// around itself and could pull nearby tokens into scope on a second pass.
var placeholders = map[RedactionKind]string{
	KindEmail:        "[REDACTED_EMAIL]",
	KindPhone:        "[REDACTED_PHONE]",
	KindIBAN:         "[REDACTED_IBAN]",
	KindNationalID:   "[REDACTED_NATIONAL_ID]",
	KindCreditCard:   "[REDACTED_CREDIT_CARD]",
	KindPassportLike: "[REDACTED_TRAVEL_DOC]",
}

// maskKeepDigits is how many trailing digits a masked sample retains.
// Product decision carried over from the legacy pipeline.
const maskKeepDigits = 4

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Loose phone grouping: digits optionally separated by spaces, dots,
	// dashes, or parens. Validation decides whether a hit is phone-shaped.
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().\-]{8,}\d`)
	ibanRE  = regexp.MustCompile(`\bTR\d{2}[A-Za-z0-9]{22,24}\b`)
	// Turkish national ID: exactly 11 digits, first digit non-zero.
	nationalIDRE = regexp.MustCompile(`\b[1-9]\d{10}\b`)
	creditCardRE = regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)
	// Candidate passport tokens are only considered near a passport keyword
	// and must mix letters and digits.
	passportTokenRE = regexp.MustCompile(`\b[A-Za-z0-9]{8,12}\b`)
)

// passportKeywords gates the passport-like rule. Any-language variants used
// by the clinic's patient base.
var passportKeywords = []string{"passport", "pasaport", "passeport", "reisepass"}

// passportKeywordWindow is how far (in bytes) from a keyword a candidate
// token may sit and still count as "near".
const passportKeywordWindow = 80

type redactionRule struct {
	kind     RedactionKind
	find     func(text string) [][]int
	validate func(match string) bool
	mask     func(match string) string
}

// redactionRules is the explicit precedence order. A span consumed by an
// earlier rule is never re-matched by a later one.
var redactionRules = []redactionRule{
	{
		kind: KindEmail,
		find: func(text string) [][]int { return emailRE.FindAllStringIndex(text, -1) },
		mask: maskEmail,
	},
	{
		kind:     KindPhone,
		find:     func(text string) [][]int { return phoneRE.FindAllStringIndex(text, -1) },
		validate: phoneShaped,
		mask:     func(m string) string { return "***" + lastDigits(m, maskKeepDigits) },
	},
	{
		kind: KindIBAN,
		find: func(text string) [][]int { return ibanRE.FindAllStringIndex(text, -1) },
		mask: func(m string) string { return "TR**" + m[len(m)-maskKeepDigits:] },
	},
	{
		kind: KindNationalID,
		find: func(text string) [][]int { return nationalIDRE.FindAllStringIndex(text, -1) },
		mask: func(m string) string { return "*******" + lastDigits(m, maskKeepDigits) },
	},
	{
		kind: KindCreditCard,
		find: func(text string) [][]int { return creditCardRE.FindAllStringIndex(text, -1) },
		validate: func(m string) bool {
			digits := stripNonDigits(m)
			return len(digits) >= 13 && len(digits) <= 19 && luhnValid(digits)
		},
		mask: func(m string) string { return "****" + lastDigits(m, maskKeepDigits) },
	},
	{
		kind: KindPassportLike,
		find: findPassportCandidates,
		mask: func(m string) string { return m[:1] + "***" + m[len(m)-1:] },
	},
}

// Redact masks all sensitive spans in text and reports what was masked.
// It never fails: degenerate input yields the input back with an empty report.
func Redact(text string) (string, *Report) {
	report := NewReport()
	if strings.TrimSpace(text) == "" {
		return text, report
	}

	type replacement struct {
		start, end  int
		placeholder string
	}
	var consumed [][2]int
	var repls []replacement

	for _, rule := range redactionRules {
		for _, loc := range rule.find(text) {
			if overlapsAny(consumed, loc[0], loc[1]) {
				continue
			}
			match := text[loc[0]:loc[1]]
			if rule.validate != nil && !rule.validate(match) {
				continue
			}
			consumed = append(consumed, [2]int{loc[0], loc[1]})
			repls = append(repls, replacement{loc[0], loc[1], placeholders[rule.kind]})
			report.recordMatch(rule.kind, rule.mask(match))
		}
	}

	if len(repls) == 0 {
		return text, report
	}

	// Apply replacements back-to-front so earlier offsets stay valid.
	sort.Slice(repls, func(i, j int) bool { return repls[i].start > repls[j].start })
	out := []byte(text)
	for _, r := range repls {
		out = append(out[:r.start], append([]byte(r.placeholder), out[r.end:]...)...)
	}
	return string(out), report
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// phoneShaped accepts grouped numbers (separators or leading '+') with
// 10-15 digits, and bare domestic-format runs starting with 0. Bare runs
// starting 1-9 are left for the national ID and credit card rules.
func phoneShaped(match string) bool {
	digits := stripNonDigits(match)
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	if strings.HasPrefix(match, "+") || strings.ContainsAny(match, " ().-") {
		return true
	}
	return strings.HasPrefix(digits, "0")
}

func maskEmail(match string) string {
	at := strings.LastIndex(match, "@")
	local, domain := match[:at], match[at+1:]
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

func lastDigits(s string, n int) string {
	digits := stripNonDigits(s)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// luhnValid checks the ISO/IEC 7812 mod-10 checksum.
func luhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// findPassportCandidates returns alphanumeric tokens of 8-12 chars that sit
// within passportKeywordWindow bytes of a passport keyword and contain both
// a letter and a digit.
func findPassportCandidates(text string) [][]int {
	lower := strings.ToLower(text)
	var windows [][2]int
	for _, kw := range passportKeywords {
		from := 0
		for {
			idx := strings.Index(lower[from:], kw)
			if idx < 0 {
				break
			}
			abs := from + idx
			start := abs - passportKeywordWindow
			if start < 0 {
				start = 0
			}
			end := abs + len(kw) + passportKeywordWindow
			if end > len(text) {
				end = len(text)
			}
			windows = append(windows, [2]int{start, end})
			from = abs + len(kw)
		}
	}
	if len(windows) == 0 {
		return nil
	}

	var out [][]int
	for _, loc := range passportTokenRE.FindAllStringIndex(text, -1) {
		inWindow := false
		for _, w := range windows {
			if loc[0] >= w[0] && loc[1] <= w[1] {
				inWindow = true
				break
			}
		}
		if !inWindow {
			continue
		}
		token := text[loc[0]:loc[1]]
		if !strings.ContainsAny(token, "0123456789") {
			continue
		}
		hasLetter := false
		for _, ch := range token {
			if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
				hasLetter = true
				break
			}
		}
		if hasLetter {
			out = append(out, loc)
		}
	}
	return out
}
