package executor

import (
	"bytes"
	"sync"

	"github.com/gzhole/shellgate/internal/events"
)

// streamWriter captures one output stream and republishes every chunk as
// an event. Each pipe is copied by a single goroutine, so chunks of
// one stream are emitted in the order the process produced them.
type streamWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	kind    events.Type
	id      string
	emitter events.Emitter
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	if w.emitter != nil && len(p) > 0 {
		w.emitter.Emit(events.Event{
			Type:        w.kind,
			ExecutionID: w.id,
			Payload:     map[string]any{"data": string(p)},
		})
	}
	return len(p), nil
}

func (w *streamWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
