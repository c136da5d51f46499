package normalize

import "strings"

// ContainsPhrase reports whether phrase occurs in s delimited by word
// boundaries on both sides. A boundary is the start or end of s, whitespace,
// a quote, or one of the shell control characters ; | & ( ). Patterns may span
// several words ("rm -rf /") and match case-sensitively; callers lower-case
// both sides for case-insensitive matching.
func ContainsPhrase(s, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; offset <= len(s)-len(phrase); {
		idx := strings.Index(s[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if (start == 0 || isBoundary(s[start-1])) && (end == len(s) || isBoundary(s[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

// ContainsAnyPhrase returns the first phrase found in s, if any.
func ContainsAnyPhrase(s string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if ContainsPhrase(s, p) {
			return p, true
		}
	}
	return "", false
}

func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', ';', '|', '&', '(', ')', '`', '\'', '"':
		return true
	}
	return false
}
