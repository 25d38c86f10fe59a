package goAuthForm

import "sync"

// VisibilitySignal reports whether the surface hosting the form is currently
// visible. The usernameless loop pauses between polling cycles while the
// surface is hidden. Visibility is an injected capability; the engine never
// probes the environment itself.
type VisibilitySignal interface {
	// Visible reports the current visibility.
	Visible() bool
	// Updates returns a channel of visibility transitions, or nil if the
	// signal never changes. The form drains it for its whole lifetime.
	Updates() <-chan bool
}

// StaticVisibility is a VisibilitySignal that never changes. Servers and
// mobile embeddings typically use StaticVisibility(true).
type StaticVisibility bool

// Visible describes the visible operation and its observable behavior.
//
// Visible may return an error when input validation, dependency calls, or security checks fail.
// Visible does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v StaticVisibility) Visible() bool { return bool(v) }

// Updates describes the updates operation and its observable behavior.
//
// Updates may return an error when input validation, dependency calls, or security checks fail.
// Updates does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (StaticVisibility) Updates() <-chan bool { return nil }

// SwitchableVisibility is a VisibilitySignal the host flips as its surface is
// shown and hidden (the document visibility bridge in browser embeddings).
type SwitchableVisibility struct {
	mu      sync.Mutex
	visible bool
	updates chan bool
}

// NewSwitchableVisibility describes the newswitchablevisibility operation and its observable behavior.
//
// NewSwitchableVisibility may return an error when input validation, dependency calls, or security checks fail.
// NewSwitchableVisibility does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewSwitchableVisibility(visible bool) *SwitchableVisibility {
	return &SwitchableVisibility{
		visible: visible,
		updates: make(chan bool, 16),
	}
}

// Visible describes the visible operation and its observable behavior.
//
// Visible may return an error when input validation, dependency calls, or security checks fail.
// Visible does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *SwitchableVisibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Updates describes the updates operation and its observable behavior.
//
// Updates may return an error when input validation, dependency calls, or security checks fail.
// Updates does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *SwitchableVisibility) Updates() <-chan bool {
	return v.updates
}

// Set publishes a visibility transition. Redundant sets are ignored. Set never
// blocks; if the update buffer is full the latest state still wins because
// consumers re-read Visible after draining.
func (v *SwitchableVisibility) Set(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	v.mu.Unlock()

	select {
	case v.updates <- visible:
	default:
	}
}
