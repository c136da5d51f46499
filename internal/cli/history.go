package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/history"
)

var (
	historyLast   int
	historySearch string
	historyJSON   bool
	historyClear  bool
	historyOutput bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past executions",
	Long: `List executions recorded in the history database, newest first.

Examples:
  shellgate history                 # Last 20 executions
  shellgate history --last 100      # Last 100
  shellgate history --search git    # Only commands mentioning git
  shellgate history --output        # Include captured stdout/stderr
  shellgate history --clear         # Delete all history`,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVar(&historyLast, "last", 20, "Show last N executions (0 for all)")
	historyCmd.Flags().StringVar(&historySearch, "search", "", "Filter by command text")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print records as JSON")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all recorded executions")
	historyCmd.Flags().BoolVar(&historyOutput, "output", false, "Show captured output")
	rootCmd.AddCommand(historyCmd)
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if historyClear {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Println("History cleared.")
		return nil
	}

	records, err := store.Recent(ctx, historyLast, historySearch)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Println("No executions recorded.")
		return nil
	}
	printRecords(records)
	return nil
}

func printRecords(records []history.Record) {
	for _, r := range records {
		exit := "-"
		if r.ExitCode != nil {
			exit = fmt.Sprint(*r.ExitCode)
		}
		fmt.Printf("%s %s %s %s\n",
			stateIcon(r.State),
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			r.Command,
			strings.Join(r.Args, " "))
		fmt.Printf("     %s  exit=%s  %s  %s/%s  score=%d\n",
			r.State, exit, time.Duration(r.DurationMs)*time.Millisecond, r.Category, r.RiskLevel, r.Score)
		if historyOutput {
			printIndented("stdout", r.Stdout)
			printIndented("stderr", r.Stderr)
		}
		fmt.Println()
	}
}

func printIndented(label, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	fmt.Printf("     %s:\n", label)
	for _, line := range strings.Split(text, "\n") {
		fmt.Printf("       %s\n", line)
	}
}

func stateIcon(state string) string {
	switch state {
	case "completed":
		return "\xe2\x9c\x85" // check mark
	case "failed":
		return "\xe2\x9d\x8c" // cross
	case "timed-out":
		return "\xe2\x8f\xb1" // stopwatch
	default:
		return "\xe2\x9b\x94" // no entry
	}
}
