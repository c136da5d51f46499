// Package history persists finished executions in SQLite so they outlive
// the process. The in-memory executor history stays authoritative for the
// running gateway; this store is the durable copy the CLI reads back.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/gzhole/shellgate/internal/executor"
	"github.com/gzhole/shellgate/internal/redact"
)

// maxOutputBytes caps the stored stdout and stderr of each record.
const maxOutputBytes = 4096

// Record is one persisted execution.
type Record struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	Category   string    `json:"category"`
	RiskLevel  string    `json:"risk_level"`
	Score      int       `json:"score"`
	State      string    `json:"state"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
}

// FromExecution builds a redacted, size-capped record from x.
func FromExecution(x executor.Execution, category string, score int) Record {
	return Record{
		ID:         x.ID,
		Command:    redact.Redact(x.Command),
		Args:       redact.Args(x.Args),
		Category:   category,
		RiskLevel:  string(x.RiskLevel),
		Score:      score,
		State:      string(x.State),
		ExitCode:   x.ExitCode,
		StartTime:  x.StartTime,
		EndTime:    x.EndTime,
		DurationMs: x.Duration.Milliseconds(),
		Stdout:     truncate(redact.Redact(x.Stdout)),
		Stderr:     truncate(redact.Redact(x.Stderr)),
	}
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	cut := maxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

// Store is a SQLite-backed execution history.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS executions (
		id          TEXT PRIMARY KEY,
		command     TEXT NOT NULL,
		args        TEXT NOT NULL,
		category    TEXT,
		risk_level  TEXT,
		score       INTEGER,
		state       TEXT NOT NULL,
		exit_code   INTEGER,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		duration_ms INTEGER,
		stdout      TEXT,
		stderr      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_executions_start ON executions(start_time);`)
	return err
}

// Save inserts rec, replacing any record with the same id.
func (s *Store) Save(ctx context.Context, rec Record) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	var exitCode sql.NullInt64
	if rec.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*rec.ExitCode), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO executions
		(id, command, args, category, risk_level, score, state, exit_code, start_time, end_time, duration_ms, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Command,
		string(args),
		rec.Category,
		rec.RiskLevel,
		rec.Score,
		rec.State,
		exitCode,
		rec.StartTime.UTC().Format(time.RFC3339Nano),
		rec.EndTime.UTC().Format(time.RFC3339Nano),
		rec.DurationMs,
		rec.Stdout,
		rec.Stderr,
	)
	if err != nil {
		return fmt.Errorf("save execution %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. A non-empty search
// filters on the command line; limit <= 0 returns everything.
func (s *Store) Recent(ctx context.Context, limit int, search string) ([]Record, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, command, args, category, risk_level, score, state, exit_code,
		start_time, end_time, duration_ms, stdout, stderr FROM executions`)
	var params []any
	if search != "" {
		b.WriteString(" WHERE command LIKE ? OR args LIKE ?")
		params = append(params, "%"+search+"%", "%"+search+"%")
	}
	b.WriteString(" ORDER BY start_time DESC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var args, start, end string
		var exitCode sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Command, &args, &rec.Category, &rec.RiskLevel, &rec.Score,
			&rec.State, &exitCode, &start, &end, &rec.DurationMs, &rec.Stdout, &rec.Stderr); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
			return nil, fmt.Errorf("decode args of %s: %w", rec.ID, err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.ExitCode = &code
		}
		rec.StartTime, _ = time.Parse(time.RFC3339Nano, start)
		rec.EndTime, _ = time.Parse(time.RFC3339Nano, end)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes every record.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM executions")
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}
