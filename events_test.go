package goAuthForm

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu      sync.Mutex
	events  []FlowEvent
	entered chan struct{}
	gate    chan struct{}
}

func (s *recordingSink) Emit(ctx context.Context, event FlowEvent) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []FlowEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FlowEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), FlowEvent{EventType: eventAttemptStarted, AttemptID: string(rune('a' + i))})
	}
	d.Close()

	events := sink.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.AttemptID != string(rune('a'+i)) {
			t.Fatalf("events out of order: %+v", events)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 8)
	sink := &recordingSink{gate: gate, entered: entered}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// Park the worker on the first event so the buffer state is deterministic:
	// the second event fills the buffer and the rest are dropped.
	d.Emit(context.Background(), FlowEvent{EventType: eventAttemptStarted})
	<-entered
	for i := 0; i < 4; i++ {
		d.Emit(context.Background(), FlowEvent{EventType: eventAttemptStarted})
	}

	close(gate)
	d.Close()

	if got := d.Dropped(); got != 3 {
		t.Fatalf("expected 3 drops, got %d", got)
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), FlowEvent{EventType: eventAttemptStarted})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("expected 10 drained events, got %d", got)
	}

	// Emit after close is a no-op.
	d.Emit(context.Background(), FlowEvent{EventType: eventAttemptStarted})
	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("post-close emit delivered: %d", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("disabled config must produce a nil dispatcher")
	}
	// nil receivers are safe.
	d.Emit(context.Background(), FlowEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), FlowEvent{EventType: eventCaptchaConfirmed})

	select {
	case e := <-sink.Events():
		if e.EventType != eventCaptchaConfirmed {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), FlowEvent{
		Timestamp: time.Now(),
		EventType: eventAttemptSucceeded,
		Action:    ActionLogIn.String(),
		Method:    MethodAuthenticator.String(),
		Username:  "alice@example.com",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded FlowEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal emitted line: %v", err)
	}
	if decoded.EventType != eventAttemptSucceeded || decoded.Username != "alice@example.com" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestFormEmitsLifecycleEvents(t *testing.T) {
	sink := NewChannelSink(64)
	client := &scriptClient{}
	form := buildForm(t, client, func(b *Builder) {
		b.WithEventSink(sink)
		b.WithConfig(Config{
			Events:        EventsConfig{Enabled: true, BufferSize: 64, DropIfFull: true},
			DefaultAction: ActionLogIn,
		})
		b.WithClient(client)
	})
	ctx := WithRequestOrigin(context.Background(), "https://app.example.com")

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodAuthenticator); err != nil {
		t.Fatalf("select method: %v", err)
	}
	waitFor(t, "success", func() bool { return form.Snapshot().IsSucceeded })
	form.Close()

	seen := map[string]FlowEvent{}
	for {
		select {
		case e := <-sink.Events():
			seen[e.EventType] = e
			continue
		default:
		}
		break
	}

	for _, want := range []string{
		eventUsernameSubmitted,
		eventMethodsResolved,
		eventMethodSelected,
		eventAttemptStarted,
		eventAttemptQRPublished,
		eventAttemptSucceeded,
	} {
		if _, ok := seen[want]; !ok {
			t.Fatalf("missing event %q in %v", want, seen)
		}
	}
	if got := seen[eventUsernameSubmitted].Metadata["origin"]; got != "https://app.example.com" {
		t.Fatalf("request origin metadata missing, got %q", got)
	}
}
