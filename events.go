package goAuthForm

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// FlowEvent defines a public type used by goAuthForm APIs.
//
// FlowEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FlowEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Action    string            `json:"action,omitempty"`
	Method    string            `json:"method,omitempty"`
	Username  string            `json:"username,omitempty"`
	AttemptID string            `json:"attempt_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	eventActionSelected       = "form.action_selected"
	eventUsernameSubmitted    = "form.username_submitted"
	eventMethodsResolved      = "form.methods_resolved"
	eventMethodSelected       = "form.method_selected"
	eventWentBack             = "form.went_back"
	eventAttemptStarted       = "attempt.started"
	eventAttemptQRPublished   = "attempt.qr_published"
	eventAttemptSucceeded     = "attempt.succeeded"
	eventAttemptFailed        = "attempt.failed"
	eventUsernamelessStarted  = "usernameless.cycle_started"
	eventUsernamelessTimedOut = "usernameless.timed_out"
	eventUsernamelessStopped  = "usernameless.stopped"
	eventCaptchaConfirmed     = "captcha.confirmed"
	eventCaptchaStaleDropped  = "captcha.stale_dropped"
	eventCaptchaUnavailable   = "captcha.site_id_unavailable"
	eventOutOfBandPending     = "oob.pending"
	eventOutOfBandCompleted   = "oob.completed"
)

// EventSink defines a public type used by goAuthForm APIs.
//
// EventSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventSink interface {
	Emit(ctx context.Context, event FlowEvent)
}

// NoOpSink defines a public type used by goAuthForm APIs.
//
// NoOpSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
//
// Emit may return an error when input validation, dependency calls, or security checks fail.
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (NoOpSink) Emit(context.Context, FlowEvent) {}

// ChannelSink defines a public type used by goAuthForm APIs.
//
// ChannelSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChannelSink struct {
	events chan FlowEvent
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// NewChannelSink may return an error when input validation, dependency calls, or security checks fail.
// NewChannelSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan FlowEvent, buffer),
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit may return an error when input validation, dependency calls, or security checks fail.
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Emit(ctx context.Context, event FlowEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
//
// Events may return an error when input validation, dependency calls, or security checks fail.
// Events does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ChannelSink) Events() <-chan FlowEvent {
	return s.events
}

// JSONWriterSink defines a public type used by goAuthForm APIs.
//
// JSONWriterSink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// NewJSONWriterSink may return an error when input validation, dependency calls, or security checks fail.
// NewJSONWriterSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit may return an error when input validation, dependency calls, or security checks fail.
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *JSONWriterSink) Emit(ctx context.Context, event FlowEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
