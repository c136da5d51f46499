package events

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBus_EmitAndReceive(t *testing.T) {
	b := NewBus(nil)

	var got []Event
	b.On(ExecutionStarted, func(e Event) { got = append(got, e) })

	b.Emit(Event{Type: ExecutionStarted, ExecutionID: "exec-1", Payload: map[string]any{"command": "ls"}})
	b.Emit(Event{Type: ExecutionCompleted})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ExecutionID != "exec-1" {
		t.Errorf("got execution id %q", got[0].ExecutionID)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("emit must stamp the event")
	}
}

func TestBus_Wildcard(t *testing.T) {
	b := NewBus(nil)

	var types []Type
	b.On(All, func(e Event) { types = append(types, e.Type) })

	b.Emit(Event{Type: Stdout})
	b.Emit(Event{Type: Stderr})

	if diff := cmp.Diff([]Type{Stdout, Stderr}, types); diff != "" {
		t.Errorf("wildcard mismatch (-want +got):\n%s", diff)
	}
}

func TestBus_OrderIsPreserved(t *testing.T) {
	b := NewBus(nil)

	var chunks []string
	b.On(Stdout, func(e Event) { chunks = append(chunks, e.Payload["data"].(string)) })

	want := []string{"a", "b", "c", "d"}
	for _, c := range want {
		b.Emit(Event{Type: Stdout, Payload: map[string]any{"data": c}})
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBus_Off(t *testing.T) {
	b := NewBus(nil)

	count := 0
	first := b.On(ConfigUpdated, func(Event) { count++ })
	b.On(ConfigUpdated, func(Event) { count += 10 })

	b.Emit(Event{Type: ConfigUpdated})
	b.Off(ConfigUpdated, first)
	b.Emit(Event{Type: ConfigUpdated})
	b.Off(ConfigUpdated, "unknown")

	if count != 21 {
		t.Errorf("expected 21, got %d", count)
	}
}

func TestBus_IDsAreUniqueAfterOff(t *testing.T) {
	b := NewBus(nil)
	a := b.On(Stdout, func(Event) {})
	b.Off(Stdout, a)
	c := b.On(Stdout, func(Event) {})
	if a == c {
		t.Errorf("reused subscription id %q", a)
	}
}

func TestBus_NoReplay(t *testing.T) {
	b := NewBus(nil)
	b.Emit(Event{Type: ExecutionStarted})

	called := false
	b.On(ExecutionStarted, func(Event) { called = true })
	if called {
		t.Error("late subscriber must not see earlier events")
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	b := NewBus(slog.New(slog.NewTextHandler(&buf, nil)))

	reached := false
	b.On(ExecutionFailed, func(Event) { panic("boom") })
	b.On(ExecutionFailed, func(Event) { reached = true })

	b.Emit(Event{Type: ExecutionFailed})

	if !reached {
		t.Error("a panicking handler must not stop delivery")
	}
	if !strings.Contains(buf.String(), "event handler panic") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_ConcurrentEmit(t *testing.T) {
	b := NewBus(nil)

	var mu sync.Mutex
	count := 0
	b.On(Stdout, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(Event{Type: Stdout})
		}()
	}
	wg.Wait()

	if count != 20 {
		t.Errorf("expected 20 deliveries, got %d", count)
	}
}
