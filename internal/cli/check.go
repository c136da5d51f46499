package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/gateway"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check [flags] -- <command> [args...]",
	Short: "Categorize and score a command without running it",
	Long: `Show how the gateway would treat a command: its category, the result of
every security check, the score, and whether it would be allowed. Nothing
is executed. Exits 1 when the command would be rejected.

  shellgate check -- rm -rf /tmp/build
  shellgate check --json -- curl http://10.0.0.1:8080/x`,
	RunE: checkCommand,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the assessment as JSON")
	checkCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided. Usage: shellgate check -- <command> [args...]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gw, err := gateway.New(*cfg, gateway.WithLogger(newLogger(cfg.LogLevel)))
	if err != nil {
		return err
	}

	a := gw.Assess(args[0], args[1:])
	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return err
		}
	} else {
		printAssessment(strings.Join(args, " "), a, cfg.SecurityThreshold)
	}

	if !a.Allowed {
		return &ExitError{Code: exitBlocked}
	}
	return nil
}

func printAssessment(cmdline string, a gateway.Assessment, threshold int) {
	c := a.Analysis.Category
	fmt.Printf("Command:    %s\n", cmdline)
	fmt.Printf("Category:   %s (%s risk, confidence %.2f)\n", c.Name, c.RiskLevel, a.Analysis.Confidence)
	for _, r := range a.Analysis.Reasons {
		fmt.Printf("  Reason:   %s\n", r)
	}
	for _, h := range a.Hidden {
		fmt.Printf("  ⚠  hidden %s %s at byte %d\n", h.Kind, h.Codepoint, h.Offset)
	}
	fmt.Println()

	for _, ch := range a.Validation.Checks {
		icon := "\xe2\x9c\x85" // ✅
		if !ch.Passed {
			icon = "\xe2\x9d\x8c" // ❌
		}
		fmt.Printf("  %s  %-22s %-8s %s\n", icon, ch.Name, ch.Severity, ch.Message)
	}
	fmt.Println()

	fmt.Printf("Score:      %d (threshold %d, valid=%v)\n", a.Validation.Score, threshold, a.Validation.IsValid)
	for _, r := range a.Validation.Recommendations {
		fmt.Printf("  • %s\n", r)
	}

	switch {
	case !a.Allowed:
		fmt.Println("Verdict:    BLOCK")
	case a.NeedsConfirmation:
		fmt.Println("Verdict:    CONFIRM")
	default:
		fmt.Println("Verdict:    ALLOW")
	}
}
