package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/events"
	"github.com/gzhole/shellgate/internal/executor"
	"github.com/gzhole/shellgate/internal/gateway"
)

// Exit codes for outcomes that have no child exit status.
const (
	exitBlocked  = 1
	exitTimeout  = 124
	exitNotFound = 127
	exitSignaled = 130
)

var (
	runTimeout  time.Duration
	runDir      string
	runEnv      []string
	runApproval string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command through shellgate",
	Long: `Run a command through the gateway. The command and its arguments
follow the flags, optionally after --.

Example:
  shellgate run -- echo "hello world"
  shellgate run --timeout 5s --env NODE_ENV=test -- npm test
  shellgate run --approval policy -- npm install lodash`,
	RunE: runCommand,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Execution timeout (default: execution_timeout from config)")
	runCmd.Flags().StringVar(&runDir, "dir", "", "Working directory for the command")
	runCmd.Flags().StringArrayVar(&runEnv, "env", nil, "Environment override KEY=VALUE (repeatable)")
	runCmd.Flags().StringVar(&runApproval, "approval", "", "Approval mode override: terminal, policy or deny")
	runCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided. Usage: shellgate run -- <command> [args...]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runApproval != "" {
		cfg.Approval.Mode = runApproval
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	env, err := parseEnv(runEnv)
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	bus := s.gw.Events()
	bus.On(events.Stdout, func(e events.Event) { fmt.Fprint(os.Stdout, e.Payload["data"]) })
	bus.On(events.Stderr, func(e events.Event) { fmt.Fprint(os.Stderr, e.Payload["data"]) })

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = s.gw.Execute(ctx, args[0], args[1:], gateway.Options{
		Timeout: runTimeout,
		Dir:     runDir,
		Env:     env,
	})
	return exitFor(err)
}

// exitFor reports a pipeline error on stderr and maps it to an exit code.
func exitFor(err error) error {
	if err == nil {
		return nil
	}

	var (
		exitErr    *executor.ExitError
		timeoutErr *executor.TimeoutError
		spawnErr   *executor.SpawnError
	)
	switch {
	case errors.As(err, &exitErr):
		return &ExitError{Code: exitErr.Code}
	case errors.Is(err, gateway.ErrRejected), errors.Is(err, gateway.ErrSandbox):
		fmt.Fprintln(os.Stderr, "\n❌ BLOCKED by shellgate")
		fmt.Fprintln(os.Stderr, err)
		return &ExitError{Code: exitBlocked}
	case errors.Is(err, gateway.ErrDenied):
		fmt.Fprintln(os.Stderr, "\n❌ Command denied")
		fmt.Fprintln(os.Stderr, err)
		return &ExitError{Code: exitBlocked}
	case errors.As(err, &timeoutErr):
		fmt.Fprintf(os.Stderr, "\n⏱  %v\n", err)
		return &ExitError{Code: exitTimeout}
	case errors.Is(err, executor.ErrTerminated):
		fmt.Fprintln(os.Stderr, "\nterminated")
		return &ExitError{Code: exitSignaled}
	case errors.As(err, &spawnErr):
		fmt.Fprintln(os.Stderr, err)
		return &ExitError{Code: exitNotFound}
	default:
		return err
	}
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}
