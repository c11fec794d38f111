package validators

import "strings"

// SanitizeString trims surrounding whitespace and, when maxLen is positive,
// caps the result at maxLen runes. Truncation is rune-aware so multibyte
// characters are never split.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen])
}
