package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize collapses whitespace runs into single spaces and drops
// control characters.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeReason bounds free-text reasons and actor ids stored in the ledger.
func NormalizeReason(reason string, maxLen int) string {
	s := TrimAndNormalize(reason)
	if maxLen > 0 && len([]rune(s)) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}
