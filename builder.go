package goAuthForm

import (
	"context"
	"errors"
)

// Builder defines a public type used by goAuthForm APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config     Config
	client     Client
	callbacks  Callbacks
	visibility VisibilitySignal
	eventSink  EventSink
	relay      OutOfBandRelay

	fixedAction   *FormAction
	fixedUsername *string
	fixedMethod   *AuthMethod

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithClient describes the withclient operation and its observable behavior.
//
// WithClient may return an error when input validation, dependency calls, or security checks fail.
// WithClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClient(client Client) *Builder {
	b.client = client
	return b
}

// WithCallbacks describes the withcallbacks operation and its observable behavior.
//
// WithCallbacks may return an error when input validation, dependency calls, or security checks fail.
// WithCallbacks does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCallbacks(callbacks Callbacks) *Builder {
	b.callbacks = callbacks
	return b
}

// WithVisibility describes the withvisibility operation and its observable behavior.
//
// WithVisibility may return an error when input validation, dependency calls, or security checks fail.
// WithVisibility does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithVisibility(signal VisibilitySignal) *Builder {
	b.visibility = signal
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink may return an error when input validation, dependency calls, or security checks fail.
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithOutOfBandRelay describes the withoutofbandrelay operation and its observable behavior.
//
// WithOutOfBandRelay may return an error when input validation, dependency calls, or security checks fail.
// WithOutOfBandRelay does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOutOfBandRelay(relay OutOfBandRelay) *Builder {
	b.relay = relay
	return b
}

// WithFixedAction pins the form to one action; the tab switcher disappears.
func (b *Builder) WithFixedAction(action FormAction) *Builder {
	pinned := action
	b.fixedAction = &pinned
	return b
}

// WithFixedUsername pins the username; the form mounts past the username step.
func (b *Builder) WithFixedUsername(username string) *Builder {
	pinned := username
	b.fixedUsername = &pinned
	return b
}

// WithFixedMethod pins the method; availability resolution must still confirm
// the user can use it.
func (b *Builder) WithFixedMethod(method AuthMethod) *Builder {
	pinned := method
	b.fixedMethod = &pinned
	return b
}

// WithUsernamelessLogIn describes the withusernamelesslogin operation and its observable behavior.
//
// WithUsernamelessLogIn may return an error when input validation, dependency calls, or security checks fail.
// WithUsernamelessLogIn does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUsernamelessLogIn(enabled bool) *Builder {
	b.config.Usernameless.Enabled = enabled
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Form, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.client == nil {
		return nil, errors.New("capability client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.fixedUsername != nil && *b.fixedUsername == "" {
		return nil, ErrUsernameEmpty
	}
	if b.fixedMethod != nil && cfg.Methods.Permitted != nil && !cfg.Methods.Permitted.Has(*b.fixedMethod) {
		return nil, ErrMethodUnavailable
	}
	if b.fixedAction != nil {
		switch *b.fixedAction {
		case ActionLogIn, ActionRegister:
		default:
			return nil, errors.New("invalid fixed action")
		}
	}

	visibility := b.visibility
	if visibility == nil {
		visibility = StaticVisibility(true)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	form := &Form{
		config:     cfg,
		client:     b.client,
		callbacks:  b.callbacks,
		visibility: visibility,
		relay:      b.relay,
		events:     newEventDispatcher(cfg.Events, b.eventSink),
		metrics:    NewMetrics(cfg.Metrics),
		intent: intentState{
			action:   b.fixedAction,
			username: b.fixedUsername,
			method:   b.fixedMethod,
		},
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		visWait:    make(chan struct{}),
	}

	form.start()

	b.built = true

	return form, nil
}
