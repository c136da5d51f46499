// Package approval decides whether a command that needs confirmation may
// run. A Gate asks a DecisionSource and enforces the answer deadline; the
// source may be a terminal prompt, a fixed policy or an external channel.
package approval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gzhole/shellgate/internal/category"
	"github.com/gzhole/shellgate/internal/validator"
)

// DefaultTimeout is how long a Gate waits for an answer.
const DefaultTimeout = 10 * time.Second

// Response is the answer to a confirmation request.
type Response string

const (
	Approved Response = "approved"
	Denied   Response = "denied"
	Timeout  Response = "timeout"
	// Skip approves this command and asks not to be asked again.
	Skip Response = "skip"
)

func (r Response) valid() bool {
	switch r {
	case Approved, Denied, Timeout, Skip:
		return true
	}
	return false
}

// Request carries everything a decision source may show or weigh.
type Request struct {
	Command    string
	Args       []string
	Analysis   category.Analysis
	Validation validator.Result
}

// CommandLine returns the command and its arguments joined by spaces.
func (r Request) CommandLine() string {
	return strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
}

// Result is the gate's verdict.
type Result struct {
	Confirmed  bool      `json:"confirmed"`
	SkipFuture bool      `json:"skip_future"`
	Timestamp  time.Time `json:"timestamp"`
	Response   Response  `json:"response"`
}

// Record is one entry of the decision log.
type Record struct {
	Command string `json:"command"`
	Result  Result `json:"result"`
}

// Stats summarizes the decision log. ApprovalRate is the percentage of
// requests answered with Approved.
type Stats struct {
	Total        int     `json:"total"`
	Approved     int     `json:"approved"`
	Denied       int     `json:"denied"`
	Timeout      int     `json:"timeout"`
	Skipped      int     `json:"skipped"`
	ApprovalRate float64 `json:"approval_rate"`
}

// DecisionSource produces an answer for a request. It should return once
// ctx is done.
type DecisionSource interface {
	Decide(ctx context.Context, req Request) (Response, error)
}

// Gate enforces the answer deadline and keeps the decision log. It is safe
// for concurrent use.
type Gate struct {
	source  DecisionSource
	timeout time.Duration

	mu      sync.Mutex
	history []Record
}

// NewGate returns a Gate asking source and waiting at most timeout for
// each answer. A non-positive timeout uses DefaultTimeout.
func NewGate(source DecisionSource, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{source: source, timeout: timeout}
}

type answer struct {
	response Response
	err      error
}

// Confirm asks the source about req. The answer races the gate timeout:
// no answer in time is a Timeout, which denies. Source errors and unknown
// responses deny. Every verdict is logged.
func (g *Gate) Confirm(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan answer, 1)
	go func() {
		resp, err := g.source.Decide(ctx, req)
		ch <- answer{resp, err}
	}()

	var resp Response
	select {
	case a := <-ch:
		switch {
		case a.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
			resp = Timeout
		case a.err != nil || !a.response.valid():
			resp = Denied
		default:
			resp = a.response
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp = Timeout
		} else {
			resp = Denied
		}
	}

	result := Result{
		Confirmed:  resp == Approved || resp == Skip,
		SkipFuture: resp == Skip,
		Timestamp:  time.Now(),
		Response:   resp,
	}

	g.mu.Lock()
	g.history = append(g.history, Record{Command: req.CommandLine(), Result: result})
	g.mu.Unlock()

	return result
}

// History returns a copy of the decision log, oldest first.
func (g *Gate) History() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Record(nil), g.history...)
}

// Stats counts the decision log by response.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{Total: len(g.history)}
	for _, r := range g.history {
		switch r.Result.Response {
		case Approved:
			s.Approved++
		case Denied:
			s.Denied++
		case Timeout:
			s.Timeout++
		case Skip:
			s.Skipped++
		}
	}
	if s.Total > 0 {
		s.ApprovalRate = float64(s.Approved) / float64(s.Total) * 100
	}
	return s
}
