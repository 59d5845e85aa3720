// Package textproc holds the text-handling primitives shared across pipeline
// stages: input sanitization, the heuristic safety scans, semi-structured
// model-output parsing, and the response disclaimer.
package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxInputLength caps sanitized user input, counted in runes so Arabic text
// is never cut mid-character. Longer input is truncated by Sanitize and
// rejected by ValidateInput.
const MaxInputLength = 2000

// criticalKeywords trigger the heuristic emergency scan. The heuristic is
// authoritative for safety: it can raise urgency, never lower it.
var criticalKeywords = []string{
	"suicide", "self-harm", "overdose", "poison",
	"cardiac arrest", "stroke", "severe", "critical",
	"emergency", "immediate", "urgent", "kill", "die", "death",
	"chest pain", "can't breathe", "unconscious",
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:(?:previous|all|above)\s+)+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(?:(?:previous|all|above)\s+)+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|above)`),
	regexp.MustCompile(`(?im)^\s*system\s*:\s*`),
	regexp.MustCompile(`(?im)^\s*assistant\s*:\s*`),
	regexp.MustCompile(`<\|[a-z_]+\|>`),
	regexp.MustCompile(`\[INST\]`),
	regexp.MustCompile(`\[/INST\]`),
	regexp.MustCompile(`(?i)developer\s+mode`),
	regexp.MustCompile(`(?i)uncensored`),
}

var (
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]")
	whitespace   = regexp.MustCompile(`\s+`)

	criticalPatterns = func() []*regexp.Regexp {
		ps := make([]*regexp.Regexp, len(criticalKeywords))
		for i, kw := range criticalKeywords {
			ps[i] = regexp.MustCompile(`(^|\W)` + regexp.QuoteMeta(kw) + `($|\W)`)
		}
		return ps
	}()
)

// Sanitize strips control characters, caps the length and collapses
// whitespace. It never rejects; ValidateInput does that.
func Sanitize(text string) string {
	text = controlChars.ReplaceAllString(text, "")
	if utf8.RuneCountInString(text) > MaxInputLength {
		text = string([]rune(text)[:MaxInputLength])
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// ValidateInput checks sanitized input and returns a user-facing reason when
// it must be rejected. Validation happens before any stage runs.
func ValidateInput(text string) (ok bool, reason string) {
	if strings.TrimSpace(text) == "" {
		return false, "input cannot be empty"
	}
	if utf8.RuneCountInString(text) > MaxInputLength {
		return false, "input exceeds maximum length"
	}
	if found, _ := DetectInjection(text); found {
		return false, "unsafe input detected"
	}
	return true, ""
}

// DetectInjection scans for prompt-injection patterns and returns the
// patterns that matched.
func DetectInjection(text string) (bool, []string) {
	var hits []string
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			hits = append(hits, p.String())
		}
	}
	return len(hits) > 0, hits
}

// DetectCriticalKeywords runs the word-boundary emergency scan and returns
// the keywords found.
func DetectCriticalKeywords(text string) (bool, []string) {
	lower := strings.ToLower(text)
	var hits []string
	for i, p := range criticalPatterns {
		if p.MatchString(lower) {
			hits = append(hits, criticalKeywords[i])
		}
	}
	return len(hits) > 0, hits
}

const disclaimerMarker = "IMPORTANT MEDICAL DISCLAIMER"

const disclaimer = "\n\n---\n" +
	"IMPORTANT MEDICAL DISCLAIMER:\n" +
	"This system is for educational and informational purposes only. " +
	"It is NOT a substitute for professional medical advice, diagnosis, or treatment. " +
	"Always seek the advice of qualified healthcare providers. " +
	"In case of a medical emergency, contact your local emergency services immediately.\n" +
	"---\n"

// AddDisclaimer appends the safety disclaimer exactly once. Re-running it on
// already-disclaimed text is a no-op.
func AddDisclaimer(text string) string {
	if strings.Contains(text, disclaimerMarker) {
		return text
	}
	return text + disclaimer
}
