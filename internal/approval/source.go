package approval

import (
	"context"
)

// SourceFunc adapts a function to DecisionSource.
type SourceFunc func(ctx context.Context, req Request) (Response, error)

func (f SourceFunc) Decide(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// PolicySource answers from the security score alone.
type PolicySource struct {
	// ApproveAt is the lowest score approved outright.
	ApproveAt int
	// DenyBelow denies every score under it.
	DenyBelow int
	// Otherwise answers scores in between. Empty means Denied.
	Otherwise Response
}

// NewPolicySource returns a policy approving scores of 90 and above and
// denying everything else.
func NewPolicySource() *PolicySource {
	return &PolicySource{ApproveAt: 90, DenyBelow: 50, Otherwise: Denied}
}

func (p *PolicySource) Decide(_ context.Context, req Request) (Response, error) {
	score := req.Validation.Score
	switch {
	case score >= p.ApproveAt:
		return Approved, nil
	case score < p.DenyBelow:
		return Denied, nil
	case p.Otherwise != "":
		return p.Otherwise, nil
	default:
		return Denied, nil
	}
}

// Pending is a request waiting on a ChannelSource consumer.
type Pending struct {
	Request Request
	reply   chan Response
}

// Reply answers the request. Only the first reply counts, and replies
// after the gate gave up are dropped.
func (p Pending) Reply(r Response) {
	select {
	case p.reply <- r:
	default:
	}
}

// ChannelSource hands requests to an external consumer, such as a chat
// integration, and waits for its reply.
type ChannelSource struct {
	requests chan Pending
}

// NewChannelSource returns a source whose request channel holds up to
// buffer unread requests.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{requests: make(chan Pending, buffer)}
}

// Requests is the stream of requests awaiting a Reply.
func (s *ChannelSource) Requests() <-chan Pending {
	return s.requests
}

func (s *ChannelSource) Decide(ctx context.Context, req Request) (Response, error) {
	p := Pending{Request: req, reply: make(chan Response, 1)}
	select {
	case s.requests <- p:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-p.reply:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
