package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/logger"
)

var (
	logFilterDecision string
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the shellgate audit log with filtering and summary options.

Examples:
  shellgate log                        # Show all entries
  shellgate log --last 20              # Show last 20 entries
  shellgate log --decision rejected    # Show only rejected commands
  shellgate log --summary              # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterDecision, "decision", "", "Filter by decision (executed, rejected, denied, sandbox_blocked, error)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	events, err := readAuditLog(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No audit log entries found.")
		return nil
	}

	filtered := filterEvents(events, logFilterDecision)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(events)
		return nil
	}

	printEvents(filtered)
	return nil
}

func readAuditLog(path string) ([]logger.AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.AuditEvent, decision string) []logger.AuditEvent {
	if decision == "" {
		return events
	}
	var filtered []logger.AuditEvent
	for _, e := range events {
		if strings.EqualFold(e.Decision, decision) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func printEvents(events []logger.AuditEvent) {
	for _, e := range events {
		fmt.Printf("%s %s %s %s\n", decisionIcon(e.Decision), formatTimestamp(e.Timestamp), e.Command, strings.Join(e.Args, " "))
		fmt.Printf("     %s  %s/%s  score=%d\n", e.Decision, e.Category, e.RiskLevel, e.Score)
		if len(e.FailedChecks) > 0 {
			fmt.Printf("     Failed: %s\n", strings.Join(e.FailedChecks, ", "))
		}
		if e.Confirmation != "" {
			fmt.Printf("     Confirmation: %s\n", e.Confirmation)
		}
		if e.Error != "" {
			fmt.Printf("     Error: %s\n", e.Error)
		}
		if e.Cwd != "" {
			fmt.Printf("     Cwd: %s\n", e.Cwd)
		}
		fmt.Println()
	}
}

func printSummary(all []logger.AuditEvent) {
	counts := map[string]int{}
	for _, e := range all {
		counts[e.Decision]++
	}

	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  shellgate Audit Summary")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("  Total events:     %d\n", len(all))
	fmt.Printf("  Executed:         %d\n", counts[logger.DecisionExecuted])
	fmt.Printf("  Rejected:         %d\n", counts[logger.DecisionRejected])
	fmt.Printf("  Denied:           %d\n", counts[logger.DecisionDenied])
	fmt.Printf("  Sandbox blocked:  %d\n", counts[logger.DecisionSandbox])
	fmt.Printf("  Errors:           %d\n", counts[logger.DecisionError])
	fmt.Println("═══════════════════════════════════════════")

	fmt.Printf("  First event:      %s\n", formatTimestamp(all[0].Timestamp))
	fmt.Printf("  Last event:       %s\n", formatTimestamp(all[len(all)-1].Timestamp))

	var rejected []logger.AuditEvent
	for _, e := range all {
		if e.Decision == logger.DecisionRejected {
			rejected = append(rejected, e)
		}
	}
	if len(rejected) > 0 {
		fmt.Println()
		fmt.Println("  Rejected commands:")
		limit := min(len(rejected), 10)
		for _, e := range rejected[len(rejected)-limit:] {
			fmt.Printf("    %s %s %s\n", formatTimestamp(e.Timestamp), e.Command, strings.Join(e.Args, " "))
		}
	}
	fmt.Println()
}

func decisionIcon(decision string) string {
	switch decision {
	case logger.DecisionRejected, logger.DecisionSandbox:
		return "\xf0\x9f\x9b\x91" // stop sign
	case logger.DecisionDenied:
		return "\xe2\x9b\x94" // no entry
	case logger.DecisionExecuted:
		return "\xe2\x9c\x85" // check mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
