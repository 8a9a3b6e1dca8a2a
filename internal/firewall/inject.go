package firewall

import (
	"regexp"
	"strings"
)

// injectionPattern pairs a stable pattern id with its compiled signature.
// Matching is deliberately conservative: a false positive only flags a
// record for human review, it never blocks the pipeline.
type injectionPattern struct {
	id string
	re *regexp.Regexp
}

// Role-override, persona-hijack, structural-framing, and tool-framing
// signatures. Detection runs on the original, unredacted text.
var injectionPatterns = []injectionPattern{
	// Role override
	{"ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:previous|prior|above|earlier)\s+instructions?`)},
	{"disregard_context", regexp.MustCompile(`(?i)disregard\s+(?:the\s+|all\s+)?(?:above|previous|prior)`)},
	{"forget_instructions", regexp.MustCompile(`(?i)forget\s+(?:all\s+)?(?:previous|prior|above|earlier|your)\s+instructions?`)},
	{"new_instructions", regexp.MustCompile(`(?i)new\s+instructions?\b`)},
	{"override_directive", regexp.MustCompile(`(?i)\boverride\b`)},

	// Persona hijack
	{"persona_hijack", regexp.MustCompile(`(?i)you\s+are\s+(?:chatgpt|gpt|claude|gemini|llama|grok|an?\s+(?:ai|llm|language\s+model))`)},
	{"do_anything_now", regexp.MustCompile(`(?i)do\s+anything\s+now`)},
	{"jailbreak_acronym", regexp.MustCompile(`\b(?:DAN|AIM|STAN|DUDE)\b`)},
	{"jailbreak_keyword", regexp.MustCompile(`(?i)jailbreak|developer\s+mode|unrestricted\s+mode`)},

	// System / developer message framing
	{"system_prompt_probe", regexp.MustCompile(`(?i)system\s+prompt`)},
	{"developer_message", regexp.MustCompile(`(?i)developer\s+message`)},
	{"system_marker", regexp.MustCompile(`(?i)###\s*SYSTEM|BEGIN\s+SYSTEM|<\|im_start\|>|<\|system\|>|\[INST\]`)},
	{"role_marker", regexp.MustCompile(`(?i)role\s*:\s*(?:system|developer)`)},

	// Tool / function-call framing
	{"tool_framing", regexp.MustCompile(`(?i)\b(?:function_call|tool_call|tool_use|invoke\s+(?:the\s+)?tool|call\s+(?:the\s+)?function)\b`)},
}

// signalMatchLimit bounds how much matched text a signal carries into audit
// logs.
const signalMatchLimit = 60

// DetectInjection scans raw text for prompt-manipulation signatures.
// Signals are de-duplicated by (pattern id, matched text) and capped at
// maxInjectionSignals. It never errors; empty input yields no signals.
func DetectInjection(text string) []InjectionSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var signals []InjectionSignal
	seen := make(map[string]bool)

	for _, p := range injectionPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if len(match) > signalMatchLimit {
				match = match[:signalMatchLimit]
			}
			key := p.id + "\x00" + match
			if seen[key] {
				continue
			}
			seen[key] = true
			signals = append(signals, InjectionSignal{
				Pattern: p.id,
				Match:   match,
				Offset:  loc[0],
			})
			if len(signals) >= maxInjectionSignals {
				return signals
			}
		}
	}
	return signals
}
