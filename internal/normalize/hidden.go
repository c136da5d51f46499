package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// HiddenRune is a character removed or rewritten before matching because
// it renders differently from what the shell executes.
type HiddenRune struct {
	// Kind is one of zero-width, bidi, tag, control, invalid-utf8 or
	// homoglyph.
	Kind      string `json:"kind"`
	Codepoint string `json:"codepoint"`
	Offset    int    `json:"offset"`
}

// Reveal returns s as the matchers should see it: invisible, bidi, tag and
// control characters dropped, look-alike Cyrillic and Greek letters folded
// to their Latin twins. Everything it touched is reported.
func Reveal(s string) (string, []HiddenRune) {
	var (
		sb     strings.Builder
		hidden []HiddenRune
	)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			hidden = append(hidden, HiddenRune{"invalid-utf8", fmt.Sprintf("0x%02X", s[i]), i})
		case isZeroWidth(r):
			hidden = append(hidden, HiddenRune{"zero-width", codepoint(r), i})
		case isBidi(r):
			hidden = append(hidden, HiddenRune{"bidi", codepoint(r), i})
		case r >= 0xE0001 && r <= 0xE007F:
			hidden = append(hidden, HiddenRune{"tag", codepoint(r), i})
		case isControl(r):
			hidden = append(hidden, HiddenRune{"control", codepoint(r), i})
		default:
			if latin, ok := homoglyphs[r]; ok {
				hidden = append(hidden, HiddenRune{"homoglyph", codepoint(r), i})
				r = latin
			}
			sb.WriteRune(r)
		}
		i += size
	}
	if hidden == nil {
		return s, nil
	}
	return sb.String(), hidden
}

func codepoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F', '\uFEFF', '\u2060', '\u180E':
		return true
	}
	return false
}

func isBidi(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

// isControl matches C0 and C1 controls and DEL, except tab, newline and
// carriage return.
func isControl(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r <= 0x1F, r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	}
	return false
}

var homoglyphs = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
	'ѕ': 's', 'Ѕ': 'S', 'ј': 'j',
	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z',
}
