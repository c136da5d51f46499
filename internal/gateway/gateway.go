// Package gateway sequences the command pipeline: categorize, validate,
// gate on the security threshold and sandbox eligibility, confirm when
// required, then execute. It owns the running metrics and is the API the
// CLI and other front ends talk to.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gzhole/shellgate/internal/approval"
	"github.com/gzhole/shellgate/internal/category"
	"github.com/gzhole/shellgate/internal/config"
	"github.com/gzhole/shellgate/internal/events"
	"github.com/gzhole/shellgate/internal/executor"
	"github.com/gzhole/shellgate/internal/history"
	"github.com/gzhole/shellgate/internal/logger"
	"github.com/gzhole/shellgate/internal/normalize"
	"github.com/gzhole/shellgate/internal/validator"
)

// Metrics aggregates every terminal pipeline outcome. Rejections count
// toward the totals and the score average; AverageExecutionTime only
// covers commands that were actually spawned.
type Metrics struct {
	TotalExecutions      int           `json:"total_executions"`
	SuccessfulExecutions int           `json:"successful_executions"`
	FailedExecutions     int           `json:"failed_executions"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	SecurityScore        float64       `json:"security_score"`
	UserApprovalRate     float64       `json:"user_approval_rate"`
}

// Options tune one command. Zero values take the configured defaults.
type Options struct {
	Timeout time.Duration
	Dir     string
	Env     map[string]string
}

// Request is one item of a batch.
type Request struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
}

func (r Request) options() Options {
	return Options{Timeout: r.Timeout, Dir: r.Dir, Env: r.Env}
}

// Assessment is the verdict of the analysis stages without execution.
type Assessment struct {
	Analysis   category.Analysis `json:"analysis"`
	Validation validator.Result  `json:"validation"`
	// Allowed reports whether the threshold and sandbox gates would pass.
	Allowed bool `json:"allowed"`
	// NeedsConfirmation reports whether the confirmation gate would run.
	NeedsConfirmation bool `json:"needs_confirmation"`
	// Hidden lists invisible or look-alike characters in the command.
	Hidden []normalize.HiddenRune `json:"hidden,omitempty"`
}

// AuditSink receives one audit event per pipeline outcome.
type AuditSink interface {
	Log(event logger.AuditEvent) error
}

// Recorder persists terminal executions.
type Recorder interface {
	Save(ctx context.Context, rec history.Record) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDecisionSource sets where confirmation answers come from. The
// default is chosen from the approval section of the config.
func WithDecisionSource(src approval.DecisionSource) Option {
	return func(g *Gateway) { g.source = src }
}

// WithAuditLog sends audit events to sink.
func WithAuditLog(sink AuditSink) Option {
	return func(g *Gateway) { g.audit = sink }
}

// WithRecorder persists every spawned execution to rec.
func WithRecorder(rec Recorder) Option {
	return func(g *Gateway) { g.recorder = rec }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithBus publishes events on bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(g *Gateway) { g.bus = bus }
}

// WithKillGrace sets the delay between SIGTERM and SIGKILL when a process
// is stopped.
func WithKillGrace(d time.Duration) Option {
	return func(g *Gateway) { g.killGrace = d }
}

// Gateway runs commands through the pipeline. It is safe for concurrent
// use.
type Gateway struct {
	cfgMu sync.RWMutex
	cfg   config.Config

	categorizer *category.Categorizer
	validator   *validator.Validator
	gate        *approval.Gate
	exec        *executor.Executor
	bus         *events.Bus

	source    approval.DecisionSource
	audit     AuditSink
	recorder  Recorder
	logger    *slog.Logger
	killGrace time.Duration

	mu      sync.Mutex
	metrics Metrics
	avgTime float64
	timed   int
}

// New returns a Gateway for cfg.
func New(cfg config.Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:         cfg,
		categorizer: category.NewCategorizer(),
		validator:   validator.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.bus == nil {
		g.bus = events.NewBus(g.logger)
	}
	if g.source == nil {
		g.source = DefaultSource(cfg.Approval)
	}

	g.gate = approval.NewGate(g.source, cfg.ConfirmationTimeout)
	g.exec = executor.New(executor.Config{
		DefaultTimeout: cfg.ExecutionTimeout,
		KillGrace:      g.killGrace,
		Events:         g.bus,
		Logger:         g.logger,
	})
	return g, nil
}

// DefaultSource builds the decision source an approval config names.
func DefaultSource(c config.ApprovalConfig) approval.DecisionSource {
	switch c.Mode {
	case config.ApprovalPolicy:
		otherwise := approval.Denied
		if c.Otherwise == string(approval.Approved) {
			otherwise = approval.Approved
		}
		return &approval.PolicySource{ApproveAt: c.ApproveAt, DenyBelow: c.DenyBelow, Otherwise: otherwise}
	case config.ApprovalTerminal:
		return approval.NewTerminalSource()
	default:
		return approval.SourceFunc(func(context.Context, approval.Request) (approval.Response, error) {
			return approval.Denied, nil
		})
	}
}

// Config returns a copy of the current configuration.
func (g *Gateway) Config() config.Config {
	g.cfgMu.RLock()
	defer g.cfgMu.RUnlock()
	return g.cfg
}

// Events returns the bus every pipeline event is published on.
func (g *Gateway) Events() *events.Bus {
	return g.bus
}

// Assess runs categorization and validation only.
func (g *Gateway) Assess(command string, args []string) Assessment {
	cfg := g.Config()
	nc := normalize.Normalize(command, args)
	analysis := g.categorizer.AnalyzeNormalized(nc)
	result := g.validator.ValidateNormalized(nc, analysis)
	return Assessment{
		Analysis:          analysis,
		Validation:        result,
		Allowed:           result.Score >= cfg.SecurityThreshold && (!cfg.EnableSandbox || analysis.Category.AllowedInSandbox),
		NeedsConfirmation: cfg.RequireConfirmation && analysis.Category.RequiresConfirmation,
		Hidden:            nc.Hidden,
	}
}

// Execute runs command through the full pipeline and blocks until it
// finishes. Rejections return *ThresholdError, *SandboxError or
// *DeniedError and spawn nothing. Once spawned, the Execution is returned
// alongside any executor error (*executor.ExitError,
// *executor.TimeoutError or executor.ErrTerminated).
func (g *Gateway) Execute(ctx context.Context, command string, args []string, opts Options) (*executor.Execution, error) {
	cfg := g.Config()
	id := executor.NewID()
	g.emit(events.ExecutionStarted, id, map[string]any{"command": command, "args": args})

	nc := normalize.Normalize(command, args)
	analysis := g.categorizer.AnalyzeNormalized(nc)
	analyzed := map[string]any{
		"category":   analysis.Category.Name,
		"risk_level": string(analysis.Category.RiskLevel),
		"confidence": analysis.Confidence,
		"recognized": analysis.Recognized,
		"reasons":    analysis.Reasons,
	}
	if len(nc.Hidden) > 0 {
		analyzed["hidden"] = nc.Hidden
		g.logger.Warn("command contains hidden characters", "id", id, "count", len(nc.Hidden))
	}
	g.emit(events.CommandAnalyzed, id, analyzed)

	result := g.validator.ValidateNormalized(nc, analysis)
	failed := failedNames(result)
	g.emit(events.SecurityValidated, id, map[string]any{
		"score":         result.Score,
		"valid":         result.IsValid,
		"failed_checks": failed,
	})

	cwd := opts.Dir
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	audit := logger.AuditEvent{
		ExecutionID:  id,
		Command:      command,
		Args:         args,
		Cwd:          cwd,
		Env:          opts.Env,
		Category:     analysis.Category.Name,
		RiskLevel:    string(analysis.Category.RiskLevel),
		Score:        result.Score,
		FailedChecks: failed,
	}

	if result.Score < cfg.SecurityThreshold {
		err := &ThresholdError{Score: result.Score, Threshold: cfg.SecurityThreshold, FailedChecks: failed}
		return nil, g.reject(id, audit, logger.DecisionRejected, err)
	}
	if cfg.EnableSandbox && !analysis.Category.AllowedInSandbox {
		return nil, g.reject(id, audit, logger.DecisionSandbox, &SandboxError{Category: analysis.Category.Name})
	}

	if cfg.RequireConfirmation && analysis.Category.RequiresConfirmation {
		conf := g.gate.Confirm(ctx, approval.Request{
			Command:    command,
			Args:       args,
			Analysis:   analysis,
			Validation: result,
		})
		audit.Confirmation = string(conf.Response)
		if !conf.Confirmed {
			return nil, g.reject(id, audit, logger.DecisionDenied, &DeniedError{Response: conf.Response})
		}
		if conf.SkipFuture {
			g.stopConfirming()
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cfg.ExecutionTimeout
	}
	x, err := g.exec.Execute(ctx, command, args, executor.Options{
		ID:        id,
		Timeout:   timeout,
		Dir:       opts.Dir,
		Env:       opts.Env,
		RiskLevel: analysis.Category.RiskLevel,
	})
	if x == nil {
		return nil, g.reject(id, audit, logger.DecisionError, err)
	}

	g.record(result.Score, x, err == nil)
	g.persist(ctx, *x, analysis.Category.Name, result.Score)

	audit.Decision = logger.DecisionExecuted
	audit.State = string(x.State)
	audit.ExitCode = x.ExitCode
	audit.DurationMs = x.Duration.Milliseconds()

	payload := map[string]any{
		"state":       string(x.State),
		"duration_ms": x.Duration.Milliseconds(),
		"category":    analysis.Category.Name,
		"score":       result.Score,
	}
	if x.ExitCode != nil {
		payload["exit_code"] = *x.ExitCode
	}
	if err != nil {
		audit.Error = err.Error()
		payload["error"] = err.Error()
		g.writeAudit(audit)
		g.emit(events.ExecutionFailed, id, payload)
		g.logger.Info("command failed", "id", id, "command", command, "state", string(x.State), "error", err)
		return x, err
	}

	g.writeAudit(audit)
	g.emit(events.ExecutionCompleted, id, payload)
	g.logger.Info("command completed", "id", id, "command", command, "duration", x.Duration)
	return x, nil
}

// reject accounts for an outcome that never produced an execution.
func (g *Gateway) reject(id string, audit logger.AuditEvent, decision string, err error) error {
	g.record(audit.Score, nil, false)

	audit.Decision = decision
	audit.Error = err.Error()
	g.writeAudit(audit)

	g.emit(events.ExecutionFailed, id, map[string]any{
		"command":  audit.Command,
		"args":     audit.Args,
		"decision": decision,
		"error":    err.Error(),
	})
	g.logger.Info("command rejected", "id", id, "command", audit.Command, "decision", decision, "error", err)
	return err
}

// ExecuteBatch runs items concurrently and returns the executions that
// succeeded, in input order. A batch larger than MaxConcurrentExecutions
// fails with *BatchSizeError before anything runs. Every failing item
// emits one batch-item-failed event and the rest still run.
func (g *Gateway) ExecuteBatch(ctx context.Context, items []Request) ([]executor.Execution, error) {
	limit := g.Config().MaxConcurrentExecutions
	if len(items) > limit {
		return nil, &BatchSizeError{Size: len(items), Limit: limit}
	}

	results := make([]*executor.Execution, len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			x, err := g.Execute(ctx, item.Command, item.Args, item.options())
			if err != nil {
				var id string
				if x != nil {
					id = x.ID
				}
				g.emit(events.BatchItemFailed, id, map[string]any{
					"index":   i,
					"command": item.Command,
					"args":    item.Args,
					"error":   err.Error(),
				})
				return
			}
			results[i] = x
		}()
	}
	wg.Wait()

	out := make([]executor.Execution, 0, len(items))
	for _, x := range results {
		if x != nil {
			out = append(out, *x)
		}
	}
	return out, nil
}

// Metrics returns a snapshot, with the approval rate taken from the
// confirmation gate.
func (g *Gateway) Metrics() Metrics {
	g.mu.Lock()
	m := g.metrics
	m.AverageExecutionTime = time.Duration(g.avgTime)
	g.mu.Unlock()

	m.UserApprovalRate = g.gate.Stats().ApprovalRate
	return m
}

// History returns every spawned execution that finished, in completion
// order.
func (g *Gateway) History() []executor.Execution {
	return g.exec.History()
}

// Active returns the ids of running executions, oldest first.
func (g *Gateway) Active() []string {
	active := g.exec.Active()
	ids := make([]string, len(active))
	for i, x := range active {
		ids[i] = x.ID
	}
	return ids
}

// Terminate stops a running execution. It reports whether id was active.
func (g *Gateway) Terminate(id string) bool {
	return g.exec.Terminate(id)
}

// Confirmations returns the confirmation gate's decision log.
func (g *Gateway) Confirmations() []approval.Record {
	return g.gate.History()
}

func (g *Gateway) record(score int, x *executor.Execution, success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := &g.metrics
	m.TotalExecutions++
	if success {
		m.SuccessfulExecutions++
	} else {
		m.FailedExecutions++
	}
	m.SecurityScore = runningAverage(m.SecurityScore, float64(score), m.TotalExecutions)

	if x != nil {
		g.timed++
		g.avgTime = runningAverage(g.avgTime, float64(x.Duration), g.timed)
	}
}

// runningAverage folds v into an average over n values.
func runningAverage(avg, v float64, n int) float64 {
	return (avg*float64(n-1) + v) / float64(n)
}

func (g *Gateway) persist(ctx context.Context, x executor.Execution, categoryName string, score int) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Save(context.WithoutCancel(ctx), history.FromExecution(x, categoryName, score)); err != nil {
		g.logger.Warn("failed to persist execution", "id", x.ID, "error", err)
	}
}

func (g *Gateway) writeAudit(e logger.AuditEvent) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Log(e); err != nil {
		g.logger.Warn("failed to write audit log", "id", e.ExecutionID, "error", err)
	}
}

func (g *Gateway) emit(t events.Type, id string, payload map[string]any) {
	g.bus.Emit(events.Event{Type: t, ExecutionID: id, Payload: payload})
}

func failedNames(r validator.Result) []string {
	var names []string
	for _, c := range r.Failed() {
		names = append(names, c.Name)
	}
	return names
}
