package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gzhole/shellgate/internal/approval"
	"github.com/gzhole/shellgate/internal/executor"
	"github.com/gzhole/shellgate/internal/gateway"
)

func TestParseEnv(t *testing.T) {
	got, err := parseEnv([]string{"A=1", "B=x=y", "EMPTY="})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"A": "1", "B": "x=y", "EMPTY": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseEnv mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"NOEQUALS", "=value"} {
		if _, err := parseEnv([]string{bad}); err == nil {
			t.Errorf("parseEnv(%q) should fail", bad)
		}
	}
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	data := `commands:
  - command: echo
    args: [one]
  - command: go
    args: [test, ./...]
    dir: /src
    timeout: 2m
    env:
      GOFLAGS: -count=1
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := readBatch(path)
	if err != nil {
		t.Fatalf("readBatch: %v", err)
	}
	want := []gateway.Request{
		{Command: "echo", Args: []string{"one"}},
		{Command: "go", Args: []string{"test", "./..."}, Dir: "/src", Timeout: 2 * time.Minute, Env: map[string]string{"GOFLAGS": "-count=1"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readBatch mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBatch_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"missing name":  "commands:\n  - args: [x]\n",
		"unknown field": "commands:\n  - command: ls\n    shell: true\n",
		"not a mapping": "- ls\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "jobs.yaml")
			if err := os.WriteFile(path, []byte(data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := readBatch(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"child exit", &executor.ExitError{Code: 3}, 3},
		{"threshold", &gateway.ThresholdError{Score: 40, Threshold: 70}, exitBlocked},
		{"sandbox", &gateway.SandboxError{Category: "system-admin"}, exitBlocked},
		{"denied", &gateway.DeniedError{Response: approval.Denied}, exitBlocked},
		{"timeout", &executor.TimeoutError{Timeout: time.Second}, exitTimeout},
		{"terminated", fmt.Errorf("%w: context canceled", executor.ErrTerminated), exitSignaled},
		{"spawn", &executor.SpawnError{Command: "nope", Err: os.ErrNotExist}, exitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitErr *ExitError
			if err := exitFor(tt.err); !errors.As(err, &exitErr) || exitErr.Code != tt.want {
				t.Errorf("exitFor(%v) = %v, want exit %d", tt.err, err, tt.want)
			}
		})
	}

	if exitFor(nil) != nil {
		t.Error("nil error must map to nil")
	}
	plain := errors.New("boom")
	if exitFor(plain) != plain {
		t.Error("unknown errors must pass through")
	}
}
