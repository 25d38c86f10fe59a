package goAuthForm

import (
	"context"
	"sync"
	"time"
)

type intentState struct {
	action   *FormAction
	username *string
	method   *AuthMethod
}

// effectScope is one cancellable effect family. gen advances every time the
// family re-fires or is torn down, so a goroutine holding an older gen can
// detect that it lost ownership before publishing.
type effectScope struct {
	gen    uint64
	cancel context.CancelFunc
}

type resolveKey struct {
	action   FormAction
	username string
}

type fireKey struct {
	action   FormAction
	username string
	method   AuthMethod
	captcha  string
}

// Form is the authentication form orchestrator. One Form corresponds to one
// mounted form surface; it is created through [Builder.Build] and released
// through [Form.Close].
//
// All exported methods are safe for concurrent use.
type Form struct {
	config     Config
	client     Client
	callbacks  Callbacks
	visibility VisibilitySignal
	relay      OutOfBandRelay
	events     *eventDispatcher
	metrics    *Metrics
	intent     intentState

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool

	userAction   *FormAction
	userUsername string
	hasUsername  bool
	userMethod   *AuthMethod
	available    *AvailableMethods

	gate    captchaGate
	visWait chan struct{}

	resolving      bool
	attemptLoading bool
	isSucceeded    bool
	isOutOfBand    bool

	qrCodePayload    string
	verificationCode string
	usernamelessQR   string
	usernamelessCode string

	usernamelessErr     FlowError
	usernameLogInErr    FlowError
	usernameRegisterErr FlowError
	authenticatorErr    FlowError
	magicLinkErr        FlowError
	passkeyErr          FlowError

	resolveScope effectScope
	attemptScope effectScope
	loopScope    effectScope

	lastResolve  resolveKey
	resolveValid bool
	lastFire     fireKey
	fireValid    bool
}

// start spins up the long-lived effect goroutines. Called exactly once by the
// builder after construction.
func (f *Form) start() {
	f.wg.Add(1)
	go f.fetchCaptchaSiteID(f.baseCtx)

	if updates := f.visibility.Updates(); updates != nil {
		f.wg.Add(1)
		go f.watchVisibility(f.baseCtx, updates)
	}

	f.evaluate(f.baseCtx)
}

/*
====================================
DERIVED STATE
====================================
*/

func (f *Form) currentActionLocked() FormAction {
	if f.intent.action != nil {
		return *f.intent.action
	}
	if f.userAction != nil {
		return *f.userAction
	}
	return f.config.DefaultAction
}

func (f *Form) currentUsernameLocked() (string, bool) {
	if f.intent.username != nil {
		return *f.intent.username, true
	}
	if f.hasUsername {
		return f.userUsername, true
	}
	return "", false
}

// currentMethodLocked resolves the method in effect: a fixed intent method,
// the single available method, or the user's pick when it is still available.
func (f *Form) currentMethodLocked() (AuthMethod, bool) {
	if f.intent.method != nil {
		return *f.intent.method, true
	}
	if f.available == nil {
		return 0, false
	}
	if f.available.Count() == 1 {
		return f.available.List()[0], true
	}
	if f.userMethod != nil && f.available.Has(*f.userMethod) {
		return *f.userMethod, true
	}
	return 0, false
}

func (f *Form) usernameErrLocked(action FormAction) FlowError {
	if action == ActionRegister {
		return f.usernameRegisterErr
	}
	return f.usernameLogInErr
}

func (f *Form) setUsernameErrLocked(action FormAction, flowErr FlowError) {
	if action == ActionRegister {
		f.usernameRegisterErr = flowErr
	} else {
		f.usernameLogInErr = flowErr
	}
}

func (f *Form) methodErrLocked(method AuthMethod) FlowError {
	switch method {
	case MethodMagicLinkEmail:
		return f.magicLinkErr
	case MethodPasskey:
		return f.passkeyErr
	default:
		return f.authenticatorErr
	}
}

func (f *Form) setMethodErrLocked(method AuthMethod, flowErr FlowError) {
	switch method {
	case MethodMagicLinkEmail:
		f.magicLinkErr = flowErr
	case MethodPasskey:
		f.passkeyErr = flowErr
	default:
		f.authenticatorErr = flowErr
	}
}

func (f *Form) clearMethodErrsLocked() {
	f.authenticatorErr = FlowErrorNone
	f.magicLinkErr = FlowErrorNone
	f.passkeyErr = FlowErrorNone
}

// visibleNowLocked reads the signal directly so decisions made between
// transition calls (the loop's timeout branch in particular) observe the
// current state, not a cached copy that trails the update watcher.
func (f *Form) visibleNowLocked() bool {
	return f.config.MobileDevice || f.visibility.Visible()
}

/*
====================================
EFFECT SCOPES
====================================
*/

// beginScopeLocked cancels the scope's previous generation and opens a new
// one rooted at the form's base context, carrying the transition call's
// request metadata.
func (f *Form) beginScopeLocked(s *effectScope, call context.Context) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(carryRequestValues(f.baseCtx, call))
	s.cancel = cancel
	return ctx, s.gen
}

func (f *Form) cancelScopeLocked(s *effectScope) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (f *Form) ownsLocked(s *effectScope, gen uint64) bool {
	return !f.closed && s.gen == gen
}

/*
====================================
RECOMPUTATION
====================================
*/

// evaluate re-derives every effect decision from current state: whether the
// usernameless loop should run, whether username resolution must fire, and
// whether a method attempt is ready to dispatch. It is the single recompute
// entry point; transitions and completing effects call it after mutating
// state.
func (f *Form) evaluate(ctx context.Context) {
	type launch struct {
		kind      string
		ctx       context.Context
		gen       uint64
		action    FormAction
		username  string
		method    AuthMethod
		attemptID string
		captcha   *CaptchaConfirmation
	}
	var launches []launch
	var staleDropped bool

	f.mu.Lock()

	if f.closed || f.isSucceeded {
		f.cancelScopeLocked(&f.loopScope)
		f.usernamelessQR = ""
		f.usernamelessCode = ""
		f.mu.Unlock()
		return
	}

	action := f.currentActionLocked()
	username, hasUsername := f.currentUsernameLocked()

	// Usernameless loop. Visibility gates the start only: a running loop
	// pauses in place while hidden instead of being torn down, so that at
	// most one poll is issued when visibility returns.
	loopStop := !f.config.Usernameless.Enabled ||
		action != ActionLogIn ||
		hasUsername ||
		f.usernamelessErr != FlowErrorNone
	if loopStop {
		if f.loopScope.cancel != nil {
			f.cancelScopeLocked(&f.loopScope)
			f.usernamelessQR = ""
			f.usernamelessCode = ""
		}
	} else if f.loopScope.cancel == nil && f.visibleNowLocked() {
		loopCtx, gen := f.beginScopeLocked(&f.loopScope, ctx)
		launches = append(launches, launch{kind: "loop", ctx: loopCtx, gen: gen})
	}

	// Username resolution.
	if hasUsername && f.available == nil && !f.resolving &&
		f.usernameErrLocked(action) == FlowErrorNone {
		key := resolveKey{action: action, username: username}
		if !f.resolveValid || f.lastResolve != key {
			resolveCtx, gen := f.beginScopeLocked(&f.resolveScope, ctx)
			f.resolving = true
			f.lastResolve = key
			f.resolveValid = true
			launches = append(launches, launch{
				kind: "resolve", ctx: resolveCtx, gen: gen,
				action: action, username: username,
			})
		}
	}

	// Method attempt.
	if method, hasMethod := f.currentMethodLocked(); hasMethod && hasUsername {
		pending := f.gate.pendingFor(method, action)
		if !pending {
			key := fireKey{action: action, username: username, method: method}
			needsCaptcha := f.gate.requiredFor(method, action) && f.gate.site != captchaSiteDisabled
			if needsCaptcha && f.gate.confirmation != nil {
				key.captcha = f.gate.confirmation.Token
			}
			if !f.fireValid || f.lastFire != key {
				var confirmation *CaptchaConfirmation
				dispatch := true
				if needsCaptcha {
					var dropped bool
					confirmation, dropped = f.gate.take()
					if dropped {
						// Single-use confirmation fired twice: consume it and
						// hold execution until the host solves again.
						staleDropped = true
						dispatch = false
					}
				}
				if dispatch {
					attemptCtx, gen := f.beginScopeLocked(&f.attemptScope, ctx)
					f.attemptLoading = true
					f.clearMethodErrsLocked()
					f.qrCodePayload = ""
					f.verificationCode = ""
					f.lastFire = key
					f.fireValid = true
					launches = append(launches, launch{
						kind: "attempt", ctx: attemptCtx, gen: gen,
						action: action, username: username, method: method,
						attemptID: newAttemptID(), captcha: confirmation,
					})
				}
			}
		}
	}

	f.mu.Unlock()

	if staleDropped {
		f.metrics.Inc(MetricCaptchaStaleDropped)
		f.emitEvent(ctx, eventCaptchaStaleDropped, false, action.String(), "", username, "", nil)
	}

	for _, l := range launches {
		switch l.kind {
		case "loop":
			f.wg.Add(1)
			go f.runUsernamelessLoop(l.ctx, l.gen)
		case "resolve":
			f.wg.Add(1)
			go f.runResolve(l.ctx, l.gen, l.action, l.username)
		case "attempt":
			f.metrics.Inc(MetricAttemptStarted)
			f.emitEvent(l.ctx, eventAttemptStarted, true, l.action.String(), l.method.String(), l.username, l.attemptID, nil)
			f.wg.Add(1)
			go f.runAttempt(l.ctx, l.gen, l.attemptID, l.action, l.username, l.method, l.captcha)
		}
	}
}

/*
====================================
TRANSITIONS
====================================
*/

// SelectAction switches between the log-in and register tabs. Switching
// discards the user-entered username, the chosen method, latched errors of
// both, and any pending CAPTCHA confirmation.
func (f *Form) SelectAction(ctx context.Context, action FormAction) error {
	switch action {
	case ActionLogIn, ActionRegister:
	default:
		return ErrMethodUnavailable
	}

	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.intent.action != nil {
		f.mu.Unlock()
		return ErrActionFixed
	}
	if f.userAction != nil && *f.userAction == action {
		f.mu.Unlock()
		return nil
	}

	selected := action
	f.userAction = &selected
	if f.intent.username == nil {
		f.userUsername = ""
		f.hasUsername = false
	}
	f.userMethod = nil
	f.available = nil
	f.usernameLogInErr = FlowErrorNone
	f.usernameRegisterErr = FlowErrorNone
	f.clearMethodErrsLocked()
	f.gate.reset()
	f.qrCodePayload = ""
	f.verificationCode = ""
	f.resolving = false
	f.attemptLoading = false
	f.resolveValid = false
	f.fireValid = false
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.attemptScope)
	f.mu.Unlock()

	f.metrics.Inc(MetricActionSwitched)
	f.emitEvent(ctx, eventActionSelected, true, action.String(), "", "", "", nil)
	f.evaluate(ctx)
	return nil
}

// SubmitUsername supplies the username and starts method resolution for the
// current action. Submitting again replaces the previous username and
// restarts resolution from scratch.
func (f *Form) SubmitUsername(ctx context.Context, username string) error {
	if username == "" {
		return ErrUsernameEmpty
	}

	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.intent.username != nil {
		f.mu.Unlock()
		return ErrUsernameFixed
	}

	action := f.currentActionLocked()
	f.userUsername = username
	f.hasUsername = true
	f.userMethod = nil
	f.available = nil
	f.setUsernameErrLocked(action, FlowErrorNone)
	f.clearMethodErrsLocked()
	f.qrCodePayload = ""
	f.verificationCode = ""
	f.resolving = false
	f.attemptLoading = false
	f.resolveValid = false
	f.fireValid = false
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.attemptScope)
	f.mu.Unlock()

	f.emitEvent(ctx, eventUsernameSubmitted, true, action.String(), "", username, "", nil)
	f.evaluate(ctx)
	return nil
}

// SelectMethod picks one of the resolved methods. It is only meaningful when
// more than one method is available; a single available method dispatches
// automatically.
func (f *Form) SelectMethod(ctx context.Context, method AuthMethod) error {
	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.intent.method != nil {
		f.mu.Unlock()
		return ErrMethodFixed
	}
	if f.available == nil {
		f.mu.Unlock()
		return ErrMethodsNotResolved
	}
	if !f.available.Has(method) {
		f.mu.Unlock()
		return ErrMethodUnavailable
	}

	selected := method
	f.userMethod = &selected
	action := f.currentActionLocked()
	username, _ := f.currentUsernameLocked()
	f.mu.Unlock()

	f.emitEvent(ctx, eventMethodSelected, true, action.String(), method.String(), username, "", nil)
	f.evaluate(ctx)
	return nil
}

// ConfirmCaptcha hands the form a solved CAPTCHA token. Each confirmation
// authorizes at most one dispatch; re-firing with the same confirmation
// consumes it and blocks until the host solves again.
func (f *Form) ConfirmCaptcha(ctx context.Context, token string) error {
	if token == "" {
		return ErrCaptchaTokenEmpty
	}

	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.gate.confirm(token)
	action := f.currentActionLocked()
	f.mu.Unlock()

	f.metrics.Inc(MetricCaptchaConfirmed)
	f.emitEvent(ctx, eventCaptchaConfirmed, true, action.String(), "", "", "", nil)
	f.evaluate(ctx)
	return nil
}

// GoBack pops one level of the resolution chain: first the chosen method,
// then the submitted username. Each pop clears only that level's latched
// error and cancels the attempt it invalidates.
func (f *Form) GoBack(ctx context.Context) error {
	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}

	action := f.currentActionLocked()

	switch {
	case f.userMethod != nil && f.intent.method == nil:
		popped := *f.userMethod
		f.userMethod = nil
		f.setMethodErrLocked(popped, FlowErrorNone)
		f.qrCodePayload = ""
		f.verificationCode = ""
		f.attemptLoading = false
		f.fireValid = false
		f.cancelScopeLocked(&f.attemptScope)

	case f.hasUsername && f.intent.username == nil:
		f.userUsername = ""
		f.hasUsername = false
		f.available = nil
		f.setUsernameErrLocked(action, FlowErrorNone)
		f.clearMethodErrsLocked()
		f.qrCodePayload = ""
		f.verificationCode = ""
		f.resolving = false
		f.attemptLoading = false
		f.resolveValid = false
		f.fireValid = false
		f.cancelScopeLocked(&f.resolveScope)
		f.cancelScopeLocked(&f.attemptScope)

	default:
		f.mu.Unlock()
		return ErrNothingToGoBack
	}
	f.mu.Unlock()

	f.metrics.Inc(MetricWentBack)
	f.emitEvent(ctx, eventWentBack, true, action.String(), "", "", "", nil)
	f.evaluate(ctx)
	return nil
}

// Retry clears the latched error of the current method and re-dispatches it.
func (f *Form) Retry(ctx context.Context) error {
	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	method, hasMethod := f.currentMethodLocked()
	if !hasMethod || f.methodErrLocked(method) == FlowErrorNone {
		f.mu.Unlock()
		return ErrNoRetryableError
	}
	f.setMethodErrLocked(method, FlowErrorNone)
	f.fireValid = false
	f.mu.Unlock()

	f.evaluate(ctx)
	return nil
}

// RetryUsernameless clears a latched usernameless loop error and lets the
// loop restart if its preconditions hold.
func (f *Form) RetryUsernameless(ctx context.Context) error {
	f.mu.Lock()
	if err := f.transitionGuardLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.usernamelessErr == FlowErrorNone {
		f.mu.Unlock()
		return ErrNoRetryableError
	}
	f.usernamelessErr = FlowErrorNone
	f.mu.Unlock()

	f.evaluate(ctx)
	return nil
}

func (f *Form) transitionGuardLocked() error {
	if f.closed {
		return ErrFormClosed
	}
	if f.isSucceeded {
		return ErrFormCompleted
	}
	return nil
}

// Close tears the form down: every effect scope is cancelled, goroutines are
// waited out, and the event dispatcher is drained. Close is idempotent.
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.attemptScope)
	f.cancelScopeLocked(&f.loopScope)
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.qrCodePayload = ""
	f.verificationCode = ""
	f.mu.Unlock()

	f.baseCancel()
	f.wg.Wait()
	f.events.Close()
}

/*
====================================
OBSERVATION
====================================
*/

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Form) Snapshot() FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	action := f.currentActionLocked()
	username, hasUsername := f.currentUsernameLocked()
	method, hasMethod := f.currentMethodLocked()

	s := FormSnapshot{
		Action:      action,
		Username:    username,
		HasUsername: hasUsername,

		MethodsResolved: f.available != nil,
		Method:          method,
		HasMethod:       hasMethod,

		QRCodePayload:    f.qrCodePayload,
		VerificationCode: f.verificationCode,

		UsernamelessQRCodePayload:    f.usernamelessQR,
		UsernamelessVerificationCode: f.usernamelessCode,

		CaptchaResolved: f.gate.site != captchaSiteUnknown,
		CaptchaSiteID:   f.gate.siteID,

		IsLoading:            f.resolving || f.attemptLoading,
		IsSucceeded:          f.isSucceeded,
		IsOutOfBandCompleted: f.isOutOfBand,

		UsernamelessError:     f.usernamelessErr,
		UsernameLogInError:    f.usernameLogInErr,
		UsernameRegisterError: f.usernameRegisterErr,
		AuthenticatorError:    f.authenticatorErr,
		MagicLinkEmailError:   f.magicLinkErr,
		PasskeyError:          f.passkeyErr,
	}
	if f.available != nil {
		s.AvailableMethods = *f.available
	}
	if hasMethod {
		s.CaptchaRequired = f.gate.requiredFor(method, action)
		s.CaptchaPending = f.gate.pendingFor(method, action)
	}
	s.Phase = f.phaseLocked(s)
	return s
}

func (f *Form) phaseLocked(s FormSnapshot) FormPhase {
	switch {
	case f.isSucceeded:
		return PhaseSucceeded
	case !s.HasUsername:
		if f.intent.action == nil && f.userAction == nil {
			return PhaseChoosingAction
		}
		return PhaseEnteringUsername
	case f.usernameErrLocked(s.Action) != FlowErrorNone:
		return PhaseEnteringUsername
	case !s.MethodsResolved && f.intent.method == nil:
		return PhaseResolvingMethods
	case !s.HasMethod:
		return PhaseSelectingMethod
	case s.CaptchaPending:
		return PhaseAwaitingCaptcha
	case s.HasMethod && f.methodErrLocked(s.Method) != FlowErrorNone:
		return PhaseLatchedError
	default:
		return PhaseExecutingMethod
	}
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Form) MetricsSnapshot() MetricsSnapshot {
	return f.metrics.Snapshot()
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped may return an error when input validation, dependency calls, or security checks fail.
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (f *Form) EventsDropped() uint64 {
	return f.events.Dropped()
}

/*
====================================
AMBIENT EFFECTS
====================================
*/

// fetchCaptchaSiteID resolves the CAPTCHA site configuration once. On failure
// the gate stays unknown and captcha-gated methods stay pending; the failure
// is reported through the event stream but is not fatal to the form.
func (f *Form) fetchCaptchaSiteID(ctx context.Context) {
	defer f.wg.Done()

	if f.config.Captcha.SiteIDFetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Captcha.SiteIDFetchTimeout)
		defer cancel()
	}

	siteID, err := f.client.CaptchaSiteID(ctx)
	if err != nil {
		if f.baseCtx.Err() != nil {
			return
		}
		f.emitEvent(ctx, eventCaptchaUnavailable, false, "", "", "", "", err)
		return
	}

	f.mu.Lock()
	f.gate.resolveSite(siteID)
	f.mu.Unlock()

	f.evaluate(f.baseCtx)
}

func (f *Form) watchVisibility(ctx context.Context, updates <-chan bool) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			f.mu.Lock()
			close(f.visWait)
			f.visWait = make(chan struct{})
			f.mu.Unlock()

			f.evaluate(ctx)
		}
	}
}

// waitVisible blocks until the form surface is visible or ctx is cancelled.
func (f *Form) waitVisible(ctx context.Context) bool {
	for {
		f.mu.Lock()
		if f.visibleNowLocked() {
			f.mu.Unlock()
			return true
		}
		wait := f.visWait
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-wait:
		}
	}
}

func (f *Form) emitEvent(ctx context.Context, eventType string, success bool, action, method, username, attemptID string, err error) {
	if f.events == nil {
		return
	}

	event := FlowEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Action:    action,
		Method:    method,
		Username:  username,
		AttemptID: attemptID,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	origin := requestOriginFromContext(ctx)
	deviceClass := deviceClassFromContext(ctx)
	if origin != "" || deviceClass != "" {
		event.Metadata = make(map[string]string, 2)
		if origin != "" {
			event.Metadata["origin"] = origin
		}
		if deviceClass != "" {
			event.Metadata["device_class"] = deviceClass
		}
	}

	f.events.Emit(ctx, event)
}

func (f *Form) reportError(err error) {
	if f.callbacks.OnError != nil && err != nil {
		f.callbacks.OnError(err)
	}
}
