package util

import (
	"strings"
	"unicode"
)

// DisplaySnippet collapses whitespace, drops non-printing runes and caps the
// result at maxRunes, appending "..." when it had to cut.
func DisplaySnippet(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

// Truncate cuts s to maxRunes runes and marks the cut with "...". Unlike
// DisplaySnippet it keeps the text verbatim.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// NormalizeKey lower-cases s for duplicate detection. Letters, digits and
// math operators are kept; other punctuation and whitespace become single
// separators, and separators next to an operator are dropped, so "x + 1 = 2"
// and "x+1=2" share a key while "x - 1 = 2" does not.
func NormalizeKey(s string) string {
	runes := []rune(strings.ToLower(s))
	var b strings.Builder
	var last rune
	space := false
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && unicode.In(last, unicode.Letter, unicode.Digit) {
				b.WriteByte(' ')
			}
		case isKeyOperator(r):
		case (r == '.' || r == ',') && unicode.IsDigit(last) && !space &&
			i+1 < len(runes) && unicode.IsDigit(runes[i+1]):
			// decimal point or digit grouping
		default:
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

func isKeyOperator(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '=', '<', '>', '^', '%', '(', ')':
		return true
	}
	return unicode.Is(unicode.Sm, r)
}

func trimClean(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = SanitizeText(s)
	s = normalizeWhitespace(s)

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsPrint(r) {
			continue
		}
		out = append(out, r)
	}
	trimmed := strings.TrimSpace(string(out))
	runes := []rune(trimmed)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return trimmed
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
