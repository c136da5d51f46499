package approval

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gzhole/shellgate/internal/category"
	"github.com/gzhole/shellgate/internal/validator"
)

func request(score int) Request {
	return Request{
		Command:    "curl",
		Args:       []string{"https://example.com"},
		Analysis:   category.NewCategorizer().Analyze("curl", []string{"https://example.com"}),
		Validation: validator.Result{Score: score},
	}
}

func fixed(r Response, err error) DecisionSource {
	return SourceFunc(func(context.Context, Request) (Response, error) { return r, err })
}

func TestGate_Confirm(t *testing.T) {
	tests := []struct {
		name      string
		source    DecisionSource
		response  Response
		confirmed bool
		skip      bool
	}{
		{"approved", fixed(Approved, nil), Approved, true, false},
		{"denied", fixed(Denied, nil), Denied, false, false},
		{"skip approves", fixed(Skip, nil), Skip, true, true},
		{"source error denies", fixed(Approved, errors.New("broken")), Denied, false, false},
		{"unknown response denies", fixed(Response("maybe"), nil), Denied, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.source, time.Second)
			r := g.Confirm(context.Background(), request(80))
			if r.Response != tt.response {
				t.Errorf("got response %s, want %s", r.Response, tt.response)
			}
			if r.Confirmed != tt.confirmed {
				t.Errorf("got confirmed %v, want %v", r.Confirmed, tt.confirmed)
			}
			if r.SkipFuture != tt.skip {
				t.Errorf("got skipFuture %v, want %v", r.SkipFuture, tt.skip)
			}
			if r.Timestamp.IsZero() {
				t.Error("result must be timestamped")
			}
		})
	}
}

func TestGate_Timeout(t *testing.T) {
	slow := SourceFunc(func(ctx context.Context, _ Request) (Response, error) {
		select {
		case <-time.After(5 * time.Second):
			return Approved, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	g := NewGate(slow, 50*time.Millisecond)

	start := time.Now()
	r := g.Confirm(context.Background(), request(80))
	if r.Response != Timeout || r.Confirmed {
		t.Errorf("expected unconfirmed timeout, got %+v", r)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("gate did not enforce its timeout")
	}
}

func TestGate_IgnoresSourceThatNeverReturns(t *testing.T) {
	stuck := SourceFunc(func(context.Context, Request) (Response, error) {
		select {}
	})
	r := NewGate(stuck, 20*time.Millisecond).Confirm(context.Background(), request(80))
	if r.Response != Timeout {
		t.Errorf("got %s, want timeout", r.Response)
	}
}

func TestGate_ParentCancelDenies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := SourceFunc(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewGate(block, time.Second).Confirm(ctx, request(80))
	if r.Response != Denied {
		t.Errorf("got %s, want denied", r.Response)
	}
}

func TestGate_StatsAndHistory(t *testing.T) {
	responses := []Response{Approved, Approved, Denied, Skip}
	i := 0
	var mu sync.Mutex
	src := SourceFunc(func(context.Context, Request) (Response, error) {
		mu.Lock()
		defer mu.Unlock()
		r := responses[i]
		i++
		return r, nil
	})
	g := NewGate(src, time.Second)

	if s := g.Stats(); s.ApprovalRate != 0 || s.Total != 0 {
		t.Errorf("empty gate stats: %+v", s)
	}

	for range responses {
		g.Confirm(context.Background(), request(80))
	}

	want := Stats{Total: 4, Approved: 2, Denied: 1, Skipped: 1, ApprovalRate: 50}
	if diff := cmp.Diff(want, g.Stats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	history := g.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 records, got %d", len(history))
	}
	if history[0].Command != "curl https://example.com" {
		t.Errorf("got command %q", history[0].Command)
	}
	wantResponses := []Response{Approved, Approved, Denied, Skip}
	var gotResponses []Response
	for _, h := range history {
		gotResponses = append(gotResponses, h.Result.Response)
	}
	if diff := cmp.Diff(wantResponses, gotResponses); diff != "" {
		t.Errorf("history order mismatch (-want +got):\n%s", diff)
	}

	history[0].Command = "tampered"
	if g.History()[0].Command == "tampered" {
		t.Error("History must return a copy")
	}
}

func TestPolicySource(t *testing.T) {
	tests := []struct {
		name   string
		policy *PolicySource
		score  int
		want   Response
	}{
		{"high score approves", NewPolicySource(), 95, Approved},
		{"boundary approves", NewPolicySource(), 90, Approved},
		{"low score denies", NewPolicySource(), 40, Denied},
		{"middle defaults to deny", NewPolicySource(), 70, Denied},
		{"middle uses otherwise", &PolicySource{ApproveAt: 90, DenyBelow: 50, Otherwise: Approved}, 70, Approved},
		{"empty otherwise denies", &PolicySource{ApproveAt: 90, DenyBelow: 50}, 70, Denied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.Decide(context.Background(), request(tt.score))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolicySource_Deterministic(t *testing.T) {
	g := NewGate(NewPolicySource(), time.Second)
	first := g.Confirm(context.Background(), request(75))
	for i := 0; i < 20; i++ {
		r := g.Confirm(context.Background(), request(75))
		if r.Response != first.Response {
			t.Fatalf("policy answered %s then %s", first.Response, r.Response)
		}
	}
}

func TestChannelSource(t *testing.T) {
	src := NewChannelSource(1)
	g := NewGate(src, time.Second)

	go func() {
		p := <-src.Requests()
		if p.Request.Command != "curl" {
			t.Errorf("got request for %q", p.Request.Command)
		}
		p.Reply(Skip)
		p.Reply(Denied)
	}()

	r := g.Confirm(context.Background(), request(60))
	if r.Response != Skip {
		t.Errorf("got %s, want skip", r.Response)
	}
}

func TestChannelSource_NoConsumerTimesOut(t *testing.T) {
	src := NewChannelSource(0)
	r := NewGate(src, 30*time.Millisecond).Confirm(context.Background(), request(60))
	if r.Response != Timeout {
		t.Errorf("got %s, want timeout", r.Response)
	}
}

func TestTerminalSource(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Response
	}{
		{"approve", "a\n", Approved},
		{"yes", "YES\n", Approved},
		{"deny", "n\n", Denied},
		{"skip", "s\n", Skip},
		{"invalid then approve", "what\na\n", Approved},
		{"details then deny", "i\nd\n", Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			src := NewTerminalSourceIO(strings.NewReader(tt.input), &out, true)
			got, err := src.Decide(context.Background(), request(75))
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if !strings.Contains(out.String(), "curl https://example.com") {
				t.Error("prompt must show the command")
			}
		})
	}
}

func TestTerminalSource_Details(t *testing.T) {
	var out bytes.Buffer
	req := request(75)
	req.Validation.Checks = []validator.Check{{Name: validator.CheckNetworkSecurity, Passed: false, Message: "Network command with suspicious destination"}}
	src := NewTerminalSourceIO(strings.NewReader("i\na\n"), &out, true)
	if _, err := src.Decide(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Network command with suspicious destination") {
		t.Errorf("details not rendered:\n%s", out.String())
	}
}

func TestTerminalSource_NonInteractiveDenies(t *testing.T) {
	var out bytes.Buffer
	src := NewTerminalSourceIO(strings.NewReader("a\n"), &out, false)
	got, err := src.Decide(context.Background(), request(99))
	if err != nil {
		t.Fatal(err)
	}
	if got != Denied {
		t.Errorf("got %s, want denied", got)
	}
	if out.Len() != 0 {
		t.Error("non-interactive source must not prompt")
	}
}

func TestTerminalSource_EOF(t *testing.T) {
	src := NewTerminalSourceIO(strings.NewReader(""), io.Discard, true)
	_, err := src.Decide(context.Background(), request(75))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF, got %v", err)
	}
}

func TestTerminalSource_AbandonedPromptKeepsNextAnswer(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewTerminalSourceIO(pr, io.Discard, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Decide(ctx, request(75)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	go func() { _, _ = pw.Write([]byte("a\n")) }()
	got, err := src.Decide(context.Background(), request(75))
	if err != nil {
		t.Fatal(err)
	}
	if got != Approved {
		t.Errorf("got %s, want approved", got)
	}
}

func TestRequest_CommandLine(t *testing.T) {
	if got := (Request{Command: "ls"}).CommandLine(); got != "ls" {
		t.Errorf("got %q", got)
	}
	r := Request{Command: "git", Args: []string{"commit", "-m", "msg"}}
	if got := r.CommandLine(); got != "git commit -m msg" {
		t.Errorf("got %q", got)
	}
}
