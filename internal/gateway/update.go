package gateway

import (
	"time"

	"github.com/gzhole/shellgate/internal/events"
)

// Update is a partial configuration change. Nil fields are left alone.
type Update struct {
	RequireConfirmation     *bool
	EnableSandbox           *bool
	SecurityThreshold       *int
	ExecutionTimeout        *time.Duration
	MaxConcurrentExecutions *int
}

// UpdateConfig applies u atomically. An update that would leave the
// configuration invalid is rejected as a whole. A config-updated event
// carrying the changed fields follows every applied update.
func (g *Gateway) UpdateConfig(u Update) error {
	changed := make(map[string]any)

	g.cfgMu.Lock()
	next := g.cfg
	if u.RequireConfirmation != nil {
		next.RequireConfirmation = *u.RequireConfirmation
		changed["require_confirmation"] = next.RequireConfirmation
	}
	if u.EnableSandbox != nil {
		next.EnableSandbox = *u.EnableSandbox
		changed["enable_sandbox"] = next.EnableSandbox
	}
	if u.SecurityThreshold != nil {
		next.SecurityThreshold = *u.SecurityThreshold
		changed["security_threshold"] = next.SecurityThreshold
	}
	if u.ExecutionTimeout != nil {
		next.ExecutionTimeout = *u.ExecutionTimeout
		changed["execution_timeout"] = next.ExecutionTimeout
	}
	if u.MaxConcurrentExecutions != nil {
		next.MaxConcurrentExecutions = *u.MaxConcurrentExecutions
		changed["max_concurrent_executions"] = next.MaxConcurrentExecutions
	}
	if err := next.Validate(); err != nil {
		g.cfgMu.Unlock()
		return err
	}
	g.cfg = next
	g.cfgMu.Unlock()

	g.logger.Info("config updated", "changes", changed)
	g.emit(events.ConfigUpdated, "", changed)
	return nil
}

// stopConfirming turns confirmation off after a skip-future answer.
func (g *Gateway) stopConfirming() {
	g.cfgMu.Lock()
	was := g.cfg.RequireConfirmation
	g.cfg.RequireConfirmation = false
	g.cfgMu.Unlock()
	if !was {
		return
	}
	g.logger.Info("confirmation disabled for this session")
	g.emit(events.ConfigUpdated, "", map[string]any{
		"require_confirmation": false,
		"reason":               "skip-future",
	})
}
