package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gzhole/shellgate/internal/config"
	"github.com/gzhole/shellgate/internal/history"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shellgate status: configuration, audit log, history",
	Long: `Show the effective configuration and whether the audit log and
history database exist.

  shellgate status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  shellgate Status")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Printf("  Binary:    %s (%s)\n", binPath, Version)
	fmt.Printf("  Config:    %s\n", configFileStatus(cfg))
	fmt.Println()

	fmt.Println("─── Gating ────────────────────────────────────────────")
	fmt.Printf("  Security threshold:   %d\n", cfg.SecurityThreshold)
	fmt.Printf("  Require confirmation: %v\n", cfg.RequireConfirmation)
	fmt.Printf("  Approval mode:        %s\n", cfg.Approval.Mode)
	fmt.Printf("  Sandbox mode:         %v\n", cfg.EnableSandbox)
	fmt.Printf("  Execution timeout:    %s\n", cfg.ExecutionTimeout)
	fmt.Printf("  Max concurrent:       %d\n", cfg.MaxConcurrentExecutions)
	fmt.Println()

	fmt.Println("─── Records ───────────────────────────────────────────")
	if info, err := os.Stat(cfg.AuditLog); err == nil {
		fmt.Printf("  ✅ Audit log:   %s (%d KB)\n", cfg.AuditLog, info.Size()/1024)
	} else {
		fmt.Printf("  ⚪ Audit log:   %s (not created yet)\n", cfg.AuditLog)
	}
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		fmt.Printf("  ⚪ History:     %s (not created yet)\n", cfg.HistoryDB)
	} else if store, err := history.Open(cfg.HistoryDB); err != nil {
		fmt.Printf("  ❌ History:     %s (%v)\n", cfg.HistoryDB, err)
	} else {
		records, err := store.Recent(cmd.Context(), 0, "")
		_ = store.Close()
		if err != nil {
			fmt.Printf("  ❌ History:     %s (%v)\n", cfg.HistoryDB, err)
		} else {
			fmt.Printf("  ✅ History:     %s (%d executions)\n", cfg.HistoryDB, len(records))
		}
	}
	fmt.Println()
	return nil
}

func configFileStatus(cfg *config.Config) string {
	path := configPath
	if path == "" {
		path = filepath.Join(cfg.ConfigDir, config.DefaultConfigFile)
	}
	if _, err := os.Stat(path); err != nil {
		return path + " (not found, using defaults)"
	}
	return path
}
