package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReveal(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		want       string
		wantHidden []HiddenRune
	}{
		{
			name: "clean ascii",
			in:   "rm -rf /tmp/build",
			want: "rm -rf /tmp/build",
		},
		{
			name:       "zero width inside word",
			in:         "r\u200bm -rf /",
			want:       "rm -rf /",
			wantHidden: []HiddenRune{{Kind: "zero-width", Codepoint: "U+200B", Offset: 1}},
		},
		{
			name:       "bidi override",
			in:         "ls \u202egpj.sh",
			want:       "ls gpj.sh",
			wantHidden: []HiddenRune{{Kind: "bidi", Codepoint: "U+202E", Offset: 3}},
		},
		{
			name:       "tag character",
			in:         "echo\U000E0041",
			want:       "echo",
			wantHidden: []HiddenRune{{Kind: "tag", Codepoint: "U+E0041", Offset: 4}},
		},
		{
			name:       "escape sequence",
			in:         "echo \x1b[2J",
			want:       "echo [2J",
			wantHidden: []HiddenRune{{Kind: "control", Codepoint: "U+001B", Offset: 5}},
		},
		{
			name: "tab and newline kept",
			in:   "a\tb\nc",
			want: "a\tb\nc",
		},
		{
			name:       "cyrillic homoglyph",
			in:         "\u0441url",
			want:       "curl",
			wantHidden: []HiddenRune{{Kind: "homoglyph", Codepoint: "U+0441", Offset: 0}},
		},
		{
			name:       "invalid utf8",
			in:         "ls\xff",
			want:       "ls",
			wantHidden: []HiddenRune{{Kind: "invalid-utf8", Codepoint: "0xFF", Offset: 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hidden := Reveal(tt.in)
			if got != tt.want {
				t.Errorf("Reveal(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if diff := cmp.Diff(tt.wantHidden, hidden); diff != "" {
				t.Errorf("hidden mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_HiddenCharacters(t *testing.T) {
	nc := Normalize("r\u200bm", []string{"-rf", "/"})
	if nc.Lower != "rm -rf /" {
		t.Errorf("Lower = %q, want %q", nc.Lower, "rm -rf /")
	}
	if nc.Executable != "rm" {
		t.Errorf("Executable = %q, want rm", nc.Executable)
	}
	if len(nc.Hidden) != 1 || nc.Hidden[0].Kind != "zero-width" {
		t.Errorf("Hidden = %+v, want one zero-width rune", nc.Hidden)
	}
	if nc.Raw != "r\u200bm -rf /" {
		t.Errorf("Raw must keep the original text, got %q", nc.Raw)
	}

	clean := Normalize("ls", []string{"-la"})
	if clean.Hidden != nil {
		t.Errorf("clean command reported hidden runes: %+v", clean.Hidden)
	}
}
