// Package executor spawns and supervises child processes: output capture
// and streaming, timeouts, forced termination and exit-code
// interpretation. It makes no security decisions.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/shellgate/internal/events"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultKillGrace = 2 * time.Second

	// drainDelay bounds how long output is still read after the child has
	// exited, when orphaned descendants keep its pipes open.
	drainDelay = time.Second
)

// Config configures an Executor. Zero fields take defaults.
type Config struct {
	DefaultTimeout time.Duration
	// KillGrace is how long a terminated process group has between SIGTERM
	// and SIGKILL.
	KillGrace time.Duration
	Events    events.Emitter
	Logger    *slog.Logger
}

// Executor runs processes and tracks the ones in flight. It is safe for
// concurrent use.
type Executor struct {
	timeout time.Duration
	grace   time.Duration
	emitter events.Emitter
	logger  *slog.Logger

	mu      sync.Mutex
	active  map[string]*run
	history []Execution
}

// run is the supervision state of one live process.
type run struct {
	exec  *Execution
	cmd   *exec.Cmd
	grace time.Duration
	done  chan struct{}

	// outcome is claimed exactly once by whichever of exit, timeout or
	// termination gets there first.
	outcome atomic.Pointer[State]
}

func (r *run) claim(s State) bool {
	return r.outcome.CompareAndSwap(nil, &s)
}

// stop sends SIGTERM to the process group and SIGKILL if it is still
// alive after the grace period.
func (r *run) stop() {
	_ = interruptProcess(r.cmd)
	go func() {
		t := time.NewTimer(r.grace)
		defer t.Stop()
		select {
		case <-r.done:
		case <-t.C:
			_ = killProcess(r.cmd)
		}
	}()
}

// New returns an Executor.
func New(cfg Config) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		timeout: cfg.DefaultTimeout,
		grace:   cfg.KillGrace,
		emitter: cfg.Events,
		logger:  cfg.Logger,
		active:  make(map[string]*run),
	}
}

// Execute runs command with args and blocks until it reaches a terminal
// state. The returned Execution is set whenever the process was spawned,
// even when err is non-nil:
//
//   - exit code 0: nil
//   - nonzero exit: *ExitError
//   - timeout: *TimeoutError
//   - Terminate or ctx cancellation: ErrTerminated
//
// A process that cannot be started yields a *SpawnError and no Execution.
func (e *Executor) Execute(ctx context.Context, command string, args []string, opts Options) (*Execution, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	id := opts.ID
	if id == "" {
		id = NewID()
	}
	x := &Execution{
		ID:        id,
		Command:   command,
		Args:      append([]string(nil), args...),
		RiskLevel: opts.RiskLevel,
		State:     StatePending,
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), opts.Env)
	}
	stdout := &streamWriter{kind: events.Stdout, id: x.ID, emitter: e.emitter}
	stderr := &streamWriter{kind: events.Stderr, id: x.ID, emitter: e.emitter}
	setProcessGroup(cmd)

	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		outPipe.Close()
		return nil, &SpawnError{Command: command, Err: err}
	}

	x.StartTime = time.Now()
	if err := cmd.Start(); err != nil {
		outPipe.Close()
		errPipe.Close()
		e.logger.Debug("spawn failed", "command", command, "error", err)
		return nil, &SpawnError{Command: command, Err: err}
	}
	x.State = StateSpawned

	var copying sync.WaitGroup
	for _, s := range []struct {
		w *streamWriter
		r io.Reader
	}{{stdout, outPipe}, {stderr, errPipe}} {
		s := s
		copying.Add(1)
		go func() {
			defer copying.Done()
			_, _ = io.Copy(s.w, s.r)
		}()
	}

	r := &run{exec: x, cmd: cmd, grace: e.grace, done: make(chan struct{})}
	x.State = StateRunning
	e.mu.Lock()
	e.active[x.ID] = r
	e.mu.Unlock()
	e.logger.Debug("process started", "id", x.ID, "command", command, "pid", cmd.Process.Pid)

	timer := time.AfterFunc(timeout, func() {
		if r.claim(StateTimedOut) {
			r.stop()
		}
	})
	stopCancel := context.AfterFunc(ctx, func() {
		if r.claim(StateTerminated) {
			r.stop()
		}
	})

	// The outcome is settled as soon as the direct child is reaped. Pipe
	// draining comes after and cannot turn an exit into a timeout.
	ps, waitErr := cmd.Process.Wait()
	end := time.Now()
	close(r.done)
	timer.Stop()
	stopCancel()

	if ps != nil && ps.Success() {
		r.claim(StateCompleted)
	} else {
		r.claim(StateFailed)
	}
	e.mu.Lock()
	delete(e.active, x.ID)
	e.mu.Unlock()

	drain(&copying, drainDelay, outPipe, errPipe)

	e.mu.Lock()
	x.State = *r.outcome.Load()
	x.EndTime = end
	x.Duration = end.Sub(x.StartTime)
	x.Stdout = stdout.String()
	x.Stderr = stderr.String()
	if ps != nil && ps.Exited() {
		code := ps.ExitCode()
		x.ExitCode = &code
	}
	e.history = append(e.history, x.clone())
	result := x.clone()
	e.mu.Unlock()

	e.logger.Debug("process finished", "id", x.ID, "state", string(result.State), "duration", result.Duration)

	switch result.State {
	case StateCompleted:
		return &result, nil
	case StateTimedOut:
		return &result, &TimeoutError{Timeout: timeout}
	case StateTerminated:
		if cause := context.Cause(ctx); cause != nil {
			return &result, fmt.Errorf("%w: %w", ErrTerminated, cause)
		}
		return &result, ErrTerminated
	default:
		code := -1
		if result.ExitCode != nil {
			code = *result.ExitCode
		}
		if waitErr != nil {
			return &result, fmt.Errorf("wait %s: %w", command, waitErr)
		}
		return &result, &ExitError{Code: code, Stderr: result.Stderr}
	}
}

// drain waits for the output copiers, closing the pipes once delay has
// passed so a descendant holding them open cannot block the caller.
func drain(copying *sync.WaitGroup, delay time.Duration, pipes ...io.Closer) {
	done := make(chan struct{})
	go func() {
		copying.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(delay):
		for _, p := range pipes {
			_ = p.Close()
		}
		<-done
	}
	for _, p := range pipes {
		_ = p.Close()
	}
}

// Terminate stops the active execution id. It reports false when id is not
// active. The process group gets SIGTERM, then SIGKILL after the grace
// period; Execute returns ErrTerminated for it.
func (e *Executor) Terminate(id string) bool {
	e.mu.Lock()
	r, ok := e.active[id]
	if ok {
		delete(e.active, id)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}

	if r.claim(StateTerminated) {
		e.logger.Debug("terminating process", "id", id)
		r.stop()
	}
	return true
}

// Active returns a snapshot of the executions still running, oldest first.
func (e *Executor) Active() []Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Execution, 0, len(e.active))
	for _, r := range e.active {
		out = append(out, r.exec.clone())
	}
	slices.SortFunc(out, func(a, b Execution) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out
}

// History returns a snapshot of every execution that reached a terminal
// state, in completion order.
func (e *Executor) History() []Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Execution, len(e.history))
	for i := range e.history {
		out[i] = e.history[i].clone()
	}
	return out
}

// NewID returns a fresh execution id.
func NewID() string {
	return "exec-" + uuid.NewString()
}

// mergeEnv overlays env on base. Keys in env replace existing entries.
func mergeEnv(base []string, env map[string]string) []string {
	out := make([]string, 0, len(base)+len(env))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := env[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
