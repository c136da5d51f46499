// Package logger writes the gateway's audit trail: one JSON object per line
// for every pipeline outcome, with credentials redacted.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gzhole/shellgate/internal/redact"
)

// defaultMaxLogBytes is the size at which the log is rotated to "<path>.1".
const defaultMaxLogBytes = 10 << 20

// Decisions recorded in AuditEvent.Decision.
const (
	DecisionExecuted = "executed"
	DecisionRejected = "rejected"
	DecisionDenied   = "denied"
	DecisionSandbox  = "sandbox_blocked"
	DecisionError    = "error"
)

type AuditEvent struct {
	Timestamp    string            `json:"timestamp"`
	ExecutionID  string            `json:"execution_id,omitempty"`
	Command      string            `json:"command"`
	Args         []string          `json:"args"`
	Cwd          string            `json:"cwd,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Category     string            `json:"category"`
	RiskLevel    string            `json:"risk_level"`
	Score        int               `json:"score"`
	FailedChecks []string          `json:"failed_checks,omitempty"`
	Decision     string            `json:"decision"`
	Confirmation string            `json:"confirmation,omitempty"`
	State        string            `json:"state,omitempty"`
	ExitCode     *int              `json:"exit_code,omitempty"`
	DurationMs   int64             `json:"duration_ms,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type AuditLogger struct {
	path     string
	maxBytes int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// New opens path for appending, rotating it first if it is already at the
// size limit.
func New(path string) (*AuditLogger, error) {
	l := &AuditLogger{path: path, maxBytes: defaultMaxLogBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	if l.size >= l.maxBytes {
		if err := l.rotate(); err != nil {
			_ = l.file.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *AuditLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// rotate moves the current file to <path>.1, replacing any older backup,
// and starts a fresh one. Callers hold l.mu or own l exclusively.
func (l *AuditLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	return l.open()
}

// Log appends event. Command, arguments, environment and error text are
// redacted first; a missing timestamp is filled in.
func (l *AuditLogger) Log(event AuditEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.Command = redact.Redact(event.Command)
	event.Args = redact.Args(event.Args)
	event.Env = redact.Env(event.Env)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}
	if l.size > 0 && l.size+int64(len(data)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			return err
		}
	}
	n, err := l.file.Write(data)
	l.size += int64(n)
	return err
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
