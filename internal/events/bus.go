// Package events is the in-process publish/subscribe bus the executor and
// the gateway report progress on. Delivery is synchronous and at most once.
// Nothing is buffered, so subscribers only see events emitted after they
// subscribe.
package events

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	ExecutionStarted   Type = "execution-started"
	CommandAnalyzed    Type = "command-analyzed"
	SecurityValidated  Type = "security-validated"
	ExecutionCompleted Type = "execution-completed"
	ExecutionFailed    Type = "execution-failed"
	BatchItemFailed    Type = "batch-item-failed"
	Stdout             Type = "stdout"
	Stderr             Type = "stderr"
	ConfigUpdated      Type = "config-updated"

	// All subscribes a handler to every event type.
	All Type = "*"
)

// Event is a single notification. Payload holds event-specific data.
type Event struct {
	Type        Type
	ExecutionID string
	Payload     map[string]any
	Timestamp   time.Time
}

// Handler is a subscriber callback. It runs on the emitting goroutine and
// must not block for long.
type Handler func(Event)

type subscription struct {
	id      string
	handler Handler
}

// Bus fans events out to subscribers. The zero value is not usable; call
// NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
	nextID   uint64
	logger   *slog.Logger
}

// NewBus returns an empty bus. A nil logger discards handler panics.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{
		handlers: make(map[Type][]subscription),
		logger:   logger,
	}
}

// On registers handler for t and returns an id for Off.
func (b *Bus) On(t Type, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := string(t) + "-" + strconv.FormatUint(b.nextID, 10)
	b.handlers[t] = append(b.handlers[t], subscription{id: id, handler: handler})
	return id
}

// Off removes the handler registered under id. Unknown ids are ignored.
func (b *Bus) Off(t Type, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[t]
	for i, s := range subs {
		if s.id == id {
			b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers e to the handlers of e.Type, then to wildcard handlers, in
// registration order. A panicking handler is logged and does not stop
// delivery to the rest.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[e.Type])+len(b.handlers[All]))
	subs = append(subs, b.handlers[e.Type]...)
	if e.Type != All {
		subs = append(subs, b.handlers[All]...)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "event", string(e.Type), "handler", s.id, "panic", r)
		}
	}()
	s.handler(e)
}

// Emitter is the publishing side of a Bus.
type Emitter interface {
	Emit(Event)
}
