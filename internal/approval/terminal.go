package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/gzhole/shellgate/internal/category"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("11")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("8")).
	Padding(0, 2)

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	optionStyle = lipgloss.NewStyle().Bold(true)

	riskColors = map[category.RiskLevel]lipgloss.Color{
		category.RiskLow:      lipgloss.Color("10"),
		category.RiskMedium:   lipgloss.Color("11"),
		category.RiskHigh:     lipgloss.Color("208"),
		category.RiskCritical: lipgloss.Color("9"),
	}
)

// TerminalSource prompts a human on a terminal. Prompts are shown one at a
// time; concurrent requests wait their turn.
type TerminalSource struct {
	out         io.Writer
	interactive bool

	mu    sync.Mutex
	lines <-chan string
}

// NewTerminalSource prompts on stderr and reads answers from stdin. When
// stdin is not a terminal every request is denied without prompting.
func NewTerminalSource() *TerminalSource {
	return NewTerminalSourceIO(os.Stdin, os.Stderr, IsInteractive())
}

// NewTerminalSourceIO is NewTerminalSource with explicit streams.
func NewTerminalSourceIO(in io.Reader, out io.Writer, interactive bool) *TerminalSource {
	s := &TerminalSource{out: out, interactive: interactive}
	if interactive {
		s.lines = readLines(in)
	}
	return s
}

// readLines feeds in line by line into a channel, closed at EOF. A single
// reader outlives any one prompt so an abandoned prompt does not swallow
// the next answer.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

func (s *TerminalSource) Decide(ctx context.Context, req Request) (Response, error) {
	if !s.interactive {
		return Denied, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.render(req, false)

	for {
		fmt.Fprint(s.out, "Your choice [a/d/s/i]: ")
		var line string
		var ok bool
		select {
		case line, ok = <-s.lines:
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nNo answer in time, command denied.")
			return "", ctx.Err()
		}
		if !ok {
			return "", io.ErrUnexpectedEOF
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "a", "approve", "yes", "y":
			return Approved, nil
		case "d", "deny", "no", "n":
			return Denied, nil
		case "s", "skip":
			return Skip, nil
		case "i", "info", "details":
			s.render(req, true)
		default:
			fmt.Fprintln(s.out, "Invalid input. Enter 'a' to approve, 'd' to deny, 's' to stop asking, 'i' for details.")
		}
	}
}

func (s *TerminalSource) render(req Request, details bool) {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("APPROVAL REQUIRED"))
	b.WriteString("\n\n")

	cat := req.Analysis.Category
	risk := lipgloss.NewStyle().Bold(true).Foreground(riskColors[cat.RiskLevel]).
		Render(strings.ToUpper(string(cat.RiskLevel)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Command: "), req.CommandLine())
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Category:"), cat.Name)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Risk:    "), risk)
	fmt.Fprintf(&b, "%s %d/100\n", labelStyle.Render("Score:   "), req.Validation.Score)

	if details {
		if len(req.Analysis.Reasons) > 0 {
			b.WriteString("\nReasons:\n")
			for _, r := range req.Analysis.Reasons {
				fmt.Fprintf(&b, "  • %s\n", r)
			}
		}
		if len(req.Validation.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for _, r := range req.Validation.Recommendations {
				fmt.Fprintf(&b, "  • %s\n", r)
			}
		}
		b.WriteString("\nChecks:\n")
		for _, c := range req.Validation.Checks {
			mark := passStyle.Render("✓")
			if !c.Passed {
				mark = failStyle.Render("✗")
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", mark, c.Name, c.Message)
		}
	}

	b.WriteString("\nOptions:\n")
	fmt.Fprintf(&b, "  %s Approve once\n", optionStyle.Render("[a]"))
	fmt.Fprintf(&b, "  %s Deny\n", optionStyle.Render("[d]"))
	fmt.Fprintf(&b, "  %s Approve and stop asking for this session\n", optionStyle.Render("[s]"))
	fmt.Fprintf(&b, "  %s Show details\n", optionStyle.Render("[i]"))
	b.WriteString("\n")

	fmt.Fprint(s.out, b.String())
}
