// Package policy holds the rules applied to user text before it reaches logs.
package policy

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk|api)[-_][A-Za-z0-9_\-]{16,}\b`)
	// BIP-39 style seed phrases are pasted by learners more often than one would hope.
	seedPhrasePattern = regexp.MustCompile(`(?i)\b(?:seed|mnemonic|recovery)\s+phrase\s*[:=]?\s*(?:[a-z]+\s+){11,23}[a-z]+\b`)
)

// DefaultLogTextLimit caps how much user text a single log line carries.
const DefaultLogTextLimit = 256

// RedactPII masks common high-risk PII and secret patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	replace := func(re *regexp.Regexp, marker string) {
		next := re.ReplaceAllString(out, marker)
		changed = changed || next != out
		out = next
	}

	replace(emailPattern, "[REDACTED_EMAIL]")
	replace(seedPhrasePattern, "[REDACTED_SEED_PHRASE]")
	replace(apiKeyPattern, "[REDACTED_KEY]")
	// Card before phone so card numbers are not classified as phone numbers.
	replace(cardPattern, "[REDACTED_CARD]")
	replace(phonePattern, "[REDACTED_PHONE]")

	return out, changed
}

// LogSafe redacts input and truncates it to limit runes.
func LogSafe(input string, limit int) string {
	out, _ := RedactPII(input)
	if limit <= 0 || utf8.RuneCountInString(out) <= limit {
		return out
	}
	n := 0
	for i := range out {
		if n == limit {
			return out[:i] + "..."
		}
		n++
	}
	return out
}
