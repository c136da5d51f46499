package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("failed to parse log line as JSON: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func TestAuditLogger_Log(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test_audit.jsonl")

	logger, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	code := 0
	event := AuditEvent{
		Timestamp:   "2026-02-02T12:00:00Z",
		ExecutionID: "exec-1",
		Command:     "echo",
		Args:        []string{"hello"},
		Category:    "file-system-read",
		RiskLevel:   "low",
		Score:       100,
		Decision:    DecisionExecuted,
		State:       "completed",
		ExitCode:    &code,
	}
	if err := logger.Log(event); err != nil {
		t.Fatalf("failed to log event: %v", err)
	}
	_ = logger.Close()

	events := readEvents(t, logPath)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.Command != "echo" || got.Decision != DecisionExecuted {
		t.Errorf("unexpected event %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Error("exit code 0 must be recorded")
	}
}

func TestAuditLogger_FillsTimestamp(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	lg, err := New(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := lg.Log(AuditEvent{Command: "ls", Decision: DecisionRejected}); err != nil {
		t.Fatal(err)
	}
	_ = lg.Close()

	if ts := readEvents(t, logPath)[0].Timestamp; ts == "" {
		t.Error("timestamp must be filled in")
	}
}

func TestAuditLogger_Redacts(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	lg, err := New(logPath)
	if err != nil {
		t.Fatal(err)
	}

	err = lg.Log(AuditEvent{
		Command:  "mysql",
		Args:     []string{"--password=hunter2hunter2"},
		Env:      map[string]string{"API_TOKEN": "abc", "LANG": "C"},
		Decision: DecisionError,
		Error:    "connect postgres://app:s3cr3tpass@db/app failed",
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = lg.Close()

	raw, _ := os.ReadFile(logPath)
	for _, secret := range []string{"hunter2hunter2", "s3cr3tpass", `"abc"`} {
		if strings.Contains(string(raw), secret) {
			t.Errorf("audit log leaked %q: %s", secret, raw)
		}
	}
	if e := readEvents(t, logPath)[0]; e.Env["LANG"] != "C" {
		t.Errorf("non-sensitive env dropped: %v", e.Env)
	}
}

func TestAuditLogger_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	// Pre-create the log file already at the rotation limit.
	big := make([]byte, defaultMaxLogBytes)
	if err := os.WriteFile(logPath, big, 0600); err != nil {
		t.Fatalf("failed to seed large log file: %v", err)
	}

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Close() }()

	if err := lg.Log(AuditEvent{Command: "echo hi", Decision: DecisionExecuted}); err != nil {
		t.Fatalf("Log after rotation failed: %v", err)
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1 to exist: %v", logPath, err)
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("fresh log file missing: %v", err)
	}
	if info.Size() >= defaultMaxLogBytes {
		t.Errorf("fresh log file is still %d bytes; expected < %d", info.Size(), defaultMaxLogBytes)
	}
}

func TestAuditLogger_RotatesWhileRunning(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	lg, err := New(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lg.Close() }()
	lg.maxBytes = 500

	for i := 0; i < 5; i++ {
		if err := lg.Log(AuditEvent{Command: "echo", Args: []string{strings.Repeat("x", 60)}, Decision: DecisionExecuted}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotation once the limit was crossed: %v", err)
	}
	info, _ := os.Stat(logPath)
	if info.Size() > 500 {
		t.Errorf("active log grew to %d bytes past the limit", info.Size())
	}
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "secure_audit.jsonl")

	logger, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	_ = logger.Close()

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("failed to stat log file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected file permissions 0600, got %04o", perm)
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	lg, err := New(logPath)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lg.Log(AuditEvent{Command: "ls", Decision: DecisionExecuted})
		}()
	}
	wg.Wait()
	_ = lg.Close()

	if n := len(readEvents(t, logPath)); n != 25 {
		t.Errorf("expected 25 intact lines, got %d", n)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	lg, err := New(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	_ = lg.Close()
	if err := lg.Log(AuditEvent{Command: "ls"}); err == nil {
		t.Error("expected error logging to a closed logger")
	}
	if err := lg.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
