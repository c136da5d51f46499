package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gzhole/shellgate/internal/config"
	"github.com/gzhole/shellgate/internal/gateway"
	"github.com/gzhole/shellgate/internal/history"
	"github.com/gzhole/shellgate/internal/logger"
)

// session is a gateway wired to the audit log and history store named in
// the config.
type session struct {
	cfg    *config.Config
	gw     *gateway.Gateway
	logger *slog.Logger
	audit  *logger.AuditLogger
	store  *history.Store
}

func openSession(cfg *config.Config, extra ...gateway.Option) (*session, error) {
	s := &session{cfg: cfg, logger: newLogger(cfg.LogLevel)}

	if err := os.MkdirAll(filepath.Dir(cfg.AuditLog), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	audit, err := logger.New(cfg.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	s.audit = audit

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		_ = audit.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	s.store = store

	opts := []gateway.Option{
		gateway.WithLogger(s.logger),
		gateway.WithAuditLog(audit),
		gateway.WithRecorder(store),
	}
	gw, err := gateway.New(*cfg, append(opts, extra...)...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.gw = gw
	return s, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close history", "error", err)
	}
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("failed to close audit log", "error", err)
	}
}
