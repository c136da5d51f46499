package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/gzhole/shellgate/internal/category"
)

// State is a step of the execution lifecycle:
//
//	pending -> spawned -> running -> completed | failed | timed-out | terminated
type State string

const (
	StatePending    State = "pending"
	StateSpawned    State = "spawned"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed-out"
	StateTerminated State = "terminated"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateTerminated:
		return true
	}
	return false
}

// Execution records one spawned process. ExitCode is nil while running and
// when the process was killed by a signal.
type Execution struct {
	ID        string             `json:"id"`
	Command   string             `json:"command"`
	Args      []string           `json:"args"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	ExitCode  *int               `json:"exit_code,omitempty"`
	Stdout    string             `json:"stdout"`
	Stderr    string             `json:"stderr"`
	Duration  time.Duration      `json:"duration"`
	RiskLevel category.RiskLevel `json:"risk_level"`
	State     State              `json:"state"`
}

func (x *Execution) clone() Execution {
	c := *x
	c.Args = append([]string(nil), x.Args...)
	if x.ExitCode != nil {
		code := *x.ExitCode
		c.ExitCode = &code
	}
	return c
}

// Options tune a single execution.
type Options struct {
	// ID names the execution. Empty generates "exec-<uuid>".
	ID string
	// Timeout bounds the run. Zero uses the executor default.
	Timeout time.Duration
	// Dir is the working directory. Empty inherits the caller's.
	Dir string
	// Env is overlaid on the caller's environment.
	Env       map[string]string
	RiskLevel category.RiskLevel
}

// ErrTerminated is returned when an execution was stopped by Terminate or
// by cancellation of its context.
var ErrTerminated = errors.New("execution terminated")

// SpawnError means the process could not be started. No execution record
// exists for it.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the process ran and exited with a nonzero code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("process exited with code %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// TimeoutError means the process outlived its timeout and was killed.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.Timeout)
}
