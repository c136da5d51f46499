package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/shellgate/internal/events"
	"github.com/gzhole/shellgate/internal/gateway"
)

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch -f <file>",
	Short: "Run a batch of commands concurrently",
	Long: `Run every command listed in a YAML file concurrently, bounded by
max_concurrent_executions. A batch larger than that limit is rejected
before anything runs. Failing items are reported and do not stop the rest.

File format:
  commands:
    - command: go
      args: [test, ./...]
      timeout: 2m
    - command: npm
      args: [run, lint]
      dir: ./web

  shellgate batch -f jobs.yaml
  cat jobs.yaml | shellgate batch -f -`,
	RunE: batchCommand,
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "Batch file (- for stdin)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

type batchSpec struct {
	Commands []gateway.Request `yaml:"commands"`
}

func readBatch(path string) ([]gateway.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var jobs batchSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&jobs); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("batch file is empty")
		}
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	for i, c := range jobs.Commands {
		if strings.TrimSpace(c.Command) == "" {
			return nil, fmt.Errorf("batch item %d: command is required", i+1)
		}
	}
	return jobs.Commands, nil
}

func batchCommand(cmd *cobra.Command, args []string) error {
	items, err := readBatch(batchFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	var failed atomic.Int32
	s.gw.Events().On(events.BatchItemFailed, func(e events.Event) {
		failed.Add(1)
		fmt.Fprintf(os.Stderr, "❌ [%v] %v: %v\n", e.Payload["index"], e.Payload["command"], e.Payload["error"])
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := s.gw.ExecuteBatch(ctx, items)
	if err != nil {
		return err
	}

	for _, x := range results {
		fmt.Printf("✅ %s %s (%s)\n", x.Command, strings.Join(x.Args, " "), x.Duration.Round(time.Millisecond))
		if out := strings.TrimRight(x.Stdout, "\n"); out != "" {
			for _, line := range strings.Split(out, "\n") {
				fmt.Printf("     %s\n", line)
			}
		}
	}

	m := s.gw.Metrics()
	fmt.Println()
	fmt.Printf("  Succeeded: %d/%d\n", len(results), len(items))
	fmt.Printf("  Avg time:  %s\n", m.AverageExecutionTime.Round(time.Millisecond))
	fmt.Printf("  Avg score: %.1f\n", m.SecurityScore)

	if failed.Load() > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}
