package normalize

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is the normalized view of a requested command that the
// categorizer and the validator rules work against.
type Command struct {
	// Raw is "<command> <args...>" joined with single spaces and trimmed.
	Raw string
	// Lower is Raw after Reveal, in lower case. All pattern matching is
	// case-insensitive.
	Lower      string
	Executable string
	Args       []string
	// Words holds the shell words of every simple command found in Lower,
	// including commands nested in $(...) and backticks.
	Words   []string
	Paths   []string
	Domains []string
	// Hidden lists characters Reveal removed or folded before Lower was
	// built. Raw keeps them.
	Hidden []HiddenRune
}

var domainRegex = regexp.MustCompile(`https?://([^/\s'"]+)`)

// Normalize builds a Command from the executable and its arguments.
// It never fails: input the shell parser rejects is split on whitespace.
func Normalize(command string, args []string) Command {
	parts := append([]string{command}, args...)
	raw := strings.TrimSpace(strings.Join(parts, " "))
	visible, hidden := Reveal(raw)
	exe, _ := Reveal(command)

	nc := Command{
		Raw:        raw,
		Lower:      strings.ToLower(strings.TrimSpace(visible)),
		Executable: strings.ToLower(filepath.Base(exe)),
		Args:       args,
		Paths:      []string{},
		Domains:    []string{},
		Hidden:     hidden,
	}
	if raw == "" {
		nc.Executable = ""
		return nc
	}

	nc.Words = splitWords(nc.Lower)

	homeDir, _ := os.UserHomeDir()
	for _, w := range nc.Words {
		if looksLikePath(w) {
			nc.Paths = append(nc.Paths, expandPath(w, homeDir))
		}
		nc.Domains = append(nc.Domains, extractDomains(w)...)
	}
	nc.Paths = uniqueStrings(nc.Paths)
	nc.Domains = uniqueStrings(nc.Domains)

	return nc
}

// HasWord reports whether any shell word equals one of the candidates.
func (c Command) HasWord(candidates ...string) bool {
	for _, w := range c.Words {
		for _, cand := range candidates {
			if w == cand {
				return true
			}
		}
	}
	return false
}

// shells run their -c argument as a script.
var shells = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true}

// splitWords parses line as bash and collects the words of every call
// expression in visit order. The script of a "sh -c" call is split too and
// its words follow the call's own.
func splitWords(line string) []string {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return strings.Fields(line)
	}

	var words []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			callWords := make([]string, 0, len(call.Args))
			for _, w := range call.Args {
				callWords = append(callWords, wordToString(w))
			}
			words = append(words, callWords...)
			if script, ok := shellScript(callWords); ok {
				words = append(words, splitWords(script)...)
			}
		}
		return true
	})
	if len(words) == 0 {
		return strings.Fields(line)
	}
	return words
}

// shellScript returns the script passed to a shell with -c, including
// combined flags such as -lc and options before it (-o pipefail -c).
func shellScript(words []string) (string, bool) {
	if len(words) < 3 || !shells[filepath.Base(words[0])] {
		return "", false
	}
	for i := 1; i < len(words)-1; i++ {
		w := words[i]
		if w == "--" {
			break
		}
		if strings.HasPrefix(w, "-") && !strings.HasPrefix(w, "--") && strings.Contains(w, "c") {
			return words[i+1], true
		}
	}
	return "", false
}

// wordToString renders a word with quotes removed. Parts that are not
// plain text (expansions, substitutions) are printed as written.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	writeParts(&sb, word.Parts)
	return sb.String()
}

func writeParts(sb *strings.Builder, parts []syntax.WordPart) {
	for _, part := range parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			writeParts(sb, p.Parts)
		default:
			printer := syntax.NewPrinter()
			_ = printer.Print(sb, part)
		}
	}
}

func looksLikePath(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	if strings.Contains(arg, "://") || strings.Contains(arg, "=") {
		return false
	}
	return strings.HasPrefix(arg, "/") ||
		strings.HasPrefix(arg, "./") ||
		strings.HasPrefix(arg, "../") ||
		strings.HasPrefix(arg, "~/") ||
		strings.Contains(arg, "/")
}

// expandPath resolves a leading ~/ and cleans the path. A trailing "/*"
// is kept so that glob targets such as "/*" stay recognizable.
func expandPath(path, homeDir string) string {
	if strings.HasPrefix(path, "~/") && homeDir != "" {
		path = filepath.Join(homeDir, path[2:])
	}
	if path == "/*" {
		return path
	}
	if strings.HasSuffix(path, "/*") {
		return filepath.Clean(strings.TrimSuffix(path, "/*")) + "/*"
	}
	return filepath.Clean(path)
}

func extractDomains(s string) []string {
	matches := domainRegex.FindAllStringSubmatch(s, -1)
	domains := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 {
			domains = append(domains, match[1])
		}
	}
	return domains
}

func uniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(input))
	for _, s := range input {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
