package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gzhole/shellgate/internal/approval"
)

var (
	// ErrRejected matches every *ThresholdError.
	ErrRejected = errors.New("rejected by security threshold")
	// ErrDenied matches every *DeniedError.
	ErrDenied = errors.New("denied by confirmation")
	// ErrBatchSize matches every *BatchSizeError.
	ErrBatchSize = errors.New("batch size exceeded")
	// ErrSandbox matches every *SandboxError.
	ErrSandbox = errors.New("not allowed in sandbox")
)

// ThresholdError means the security score was below the configured
// minimum. Nothing was spawned.
type ThresholdError struct {
	Score        int
	Threshold    int
	FailedChecks []string
}

func (e *ThresholdError) Error() string {
	msg := fmt.Sprintf("security score %d below threshold %d", e.Score, e.Threshold)
	if len(e.FailedChecks) > 0 {
		msg += " (failed: " + strings.Join(e.FailedChecks, ", ") + ")"
	}
	return msg
}

func (e *ThresholdError) Unwrap() error { return ErrRejected }

// DeniedError means the confirmation gate did not approve the command.
// Response is Denied or Timeout.
type DeniedError struct {
	Response approval.Response
}

func (e *DeniedError) Error() string {
	if e.Response == approval.Timeout {
		return "command denied: confirmation timed out"
	}
	return "command denied by confirmation"
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// SandboxError means sandbox mode is on and the command's category is not
// allowed in it.
type SandboxError struct {
	Category string
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("category %s is not allowed in sandbox mode", e.Category)
}

func (e *SandboxError) Unwrap() error { return ErrSandbox }

// BatchSizeError means a batch was larger than the concurrency ceiling.
// No item of it ran.
type BatchSizeError struct {
	Size  int
	Limit int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("batch size %d exceeds maximum concurrent executions %d", e.Size, e.Limit)
}

func (e *BatchSizeError) Unwrap() error { return ErrBatchSize }
