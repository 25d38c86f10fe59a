package goAuthForm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func newAttemptID() string {
	return uuid.NewString()
}

// optionsFor merges the global option bag with a per-method bag; per-method
// entries win.
func (f *Form) optionsFor(bag OptionBag) OptionBag {
	return mergeOptions(f.config.Options.Global, bag)
}

// runAttempt dispatches one method execution inside its own effect scope. The
// dispatch table pairs (method, action) with one capability call each;
// authenticator flows additionally publish a QR payload before long-polling
// for the result.
func (f *Form) runAttempt(
	ctx context.Context,
	gen uint64,
	attemptID string,
	action FormAction,
	username string,
	method AuthMethod,
	captcha *CaptchaConfirmation,
) {
	defer f.wg.Done()

	start := time.Now()
	defer func() {
		f.metrics.Observe(MetricAttemptLatency, time.Since(start))
	}()

	switch method {
	case MethodAuthenticator:
		if action == ActionRegister {
			f.runAuthenticatorRegister(ctx, gen, attemptID, username)
		} else {
			f.runAuthenticatorLogIn(ctx, gen, attemptID, username, captcha)
		}
	case MethodMagicLinkEmail:
		if action == ActionRegister {
			f.runMagicLinkRegister(ctx, gen, attemptID, username, captcha)
		} else {
			f.runMagicLinkLogIn(ctx, gen, attemptID, username, captcha)
		}
	case MethodPasskey:
		if action == ActionRegister {
			f.runPasskeyRegister(ctx, gen, attemptID, username)
		} else {
			f.runPasskeyLogIn(ctx, gen, attemptID, username)
		}
	}
}

/*
====================================
AUTHENTICATOR
====================================
*/

func (f *Form) runAuthenticatorLogIn(ctx context.Context, gen uint64, attemptID, username string, captcha *CaptchaConfirmation) {
	attempt, err := f.client.AuthenticateWithAuthenticator(ctx, username, f.optionsFor(f.config.Options.AuthenticatorLogIn), captcha)
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionLogIn, username, MethodAuthenticator, classifyError(err), err)
		return
	}
	if !f.publishAttemptQR(ctx, gen, attemptID, ActionLogIn, username, attempt.QRCodePayload, attempt.VerificationCode) {
		return
	}

	result, err := attempt.AwaitResult(ctx)
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionLogIn, username, MethodAuthenticator, classifyError(err), err)
		return
	}
	if result.Succeeded {
		f.completeLogIn(ctx, gen, attemptID, MethodAuthenticator, result)
		return
	}
	f.failLogIn(ctx, gen, attemptID, username, MethodAuthenticator, result)
}

func (f *Form) runAuthenticatorRegister(ctx context.Context, gen uint64, attemptID, username string) {
	attempt, err := f.client.RegisterWithAuthenticator(ctx, username, f.optionsFor(f.config.Options.AuthenticatorRegister))
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionRegister, username, MethodAuthenticator, classifyError(err), err)
		return
	}
	if !f.publishAttemptQR(ctx, gen, attemptID, ActionRegister, username, attempt.QRCodePayload, attempt.VerificationCode) {
		return
	}

	result, err := attempt.AwaitResult(ctx)
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionRegister, username, MethodAuthenticator, classifyError(err), err)
		return
	}
	if result.Succeeded {
		f.completeRegister(ctx, gen, attemptID, MethodAuthenticator, result)
		return
	}
	f.failRegister(ctx, gen, attemptID, username, MethodAuthenticator, result)
}

/*
====================================
MAGIC LINK EMAIL
====================================
*/

func (f *Form) runMagicLinkLogIn(ctx context.Context, gen uint64, attemptID, username string, captcha *CaptchaConfirmation) {
	redirect := f.config.MagicLink.LogInRedirectURL
	if redirect == "" {
		f.latchAttemptError(ctx, gen, attemptID, ActionLogIn, username, MethodMagicLinkEmail, FlowErrorUnknown, ErrRedirectURLMissing)
		return
	}

	result, err := f.client.SendLogInMagicLinkEmail(ctx, username, redirect, f.optionsFor(f.config.Options.MagicLinkEmailLogIn), captcha)
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionLogIn, username, MethodMagicLinkEmail, classifyError(err), err)
		return
	}
	if !result.Succeeded {
		f.failLogIn(ctx, gen, attemptID, username, MethodMagicLinkEmail, result)
		return
	}

	// The link lands in another browsing context or process. The form is
	// done unless an out-of-band relay is wired in.
	if !f.markOutOfBand(ctx, gen, attemptID, ActionLogIn, username, MethodMagicLinkEmail) {
		return
	}
	if f.callbacks.OnOutOfBandLogIn != nil {
		f.callbacks.OnOutOfBandLogIn(result)
	}
	if f.relay != nil {
		f.wg.Add(1)
		go f.watchOutOfBandLogIn(ctx, gen, attemptID, result.RequestID)
	}
}

func (f *Form) runMagicLinkRegister(ctx context.Context, gen uint64, attemptID, username string, captcha *CaptchaConfirmation) {
	redirect := f.config.MagicLink.RegisterRedirectURL
	if redirect == "" {
		f.latchAttemptError(ctx, gen, attemptID, ActionRegister, username, MethodMagicLinkEmail, FlowErrorUnknown, ErrRedirectURLMissing)
		return
	}

	result, err := f.client.SendRegisterMagicLinkEmail(ctx, username, redirect, f.optionsFor(f.config.Options.MagicLinkEmailRegister), captcha)
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionRegister, username, MethodMagicLinkEmail, classifyError(err), err)
		return
	}
	if !result.Succeeded {
		f.failRegister(ctx, gen, attemptID, username, MethodMagicLinkEmail, result)
		return
	}

	if !f.markOutOfBand(ctx, gen, attemptID, ActionRegister, username, MethodMagicLinkEmail) {
		return
	}
	if f.callbacks.OnOutOfBandRegister != nil {
		f.callbacks.OnOutOfBandRegister(result)
	}
	if f.relay != nil {
		f.wg.Add(1)
		go f.watchOutOfBandRegister(ctx, gen, attemptID, result.RequestID)
	}
}

func (f *Form) watchOutOfBandLogIn(ctx context.Context, gen uint64, attemptID, requestID string) {
	defer f.wg.Done()

	completion, err := f.relay.Await(ctx, requestID)
	if err != nil {
		return
	}

	result := AuthenticationResult{
		Succeeded: true,
		Username:  completion.Username,
		RequestID: completion.RequestID,
	}
	f.metrics.Inc(MetricOutOfBandCompleted)
	f.emitEvent(ctx, eventOutOfBandCompleted, true, ActionLogIn.String(), MethodMagicLinkEmail.String(), completion.Username, attemptID, nil)
	f.completeLogIn(ctx, gen, attemptID, MethodMagicLinkEmail, result)
}

func (f *Form) watchOutOfBandRegister(ctx context.Context, gen uint64, attemptID, requestID string) {
	defer f.wg.Done()

	completion, err := f.relay.Await(ctx, requestID)
	if err != nil {
		return
	}

	result := RegistrationResult{
		Succeeded: true,
		Username:  completion.Username,
	}
	f.metrics.Inc(MetricOutOfBandCompleted)
	f.emitEvent(ctx, eventOutOfBandCompleted, true, ActionRegister.String(), MethodMagicLinkEmail.String(), completion.Username, attemptID, nil)
	f.completeRegister(ctx, gen, attemptID, MethodMagicLinkEmail, result)
}

/*
====================================
PASSKEY
====================================
*/

func (f *Form) runPasskeyLogIn(ctx context.Context, gen uint64, attemptID, username string) {
	result, err := f.client.AuthenticateWithPasskey(ctx, username, f.optionsFor(f.config.Options.PasskeyLogIn))
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionLogIn, username, MethodPasskey, classifyError(err), err)
		return
	}
	if result.Succeeded {
		f.completeLogIn(ctx, gen, attemptID, MethodPasskey, result)
		return
	}
	f.failLogIn(ctx, gen, attemptID, username, MethodPasskey, result)
}

func (f *Form) runPasskeyRegister(ctx context.Context, gen uint64, attemptID, username string) {
	result, err := f.client.RegisterWithPasskey(ctx, username, f.optionsFor(f.config.Options.PasskeyRegister))
	if err != nil {
		f.latchAttemptError(ctx, gen, attemptID, ActionRegister, username, MethodPasskey, classifyError(err), err)
		return
	}
	if result.Succeeded {
		f.completeRegister(ctx, gen, attemptID, MethodPasskey, result)
		return
	}
	f.failRegister(ctx, gen, attemptID, username, MethodPasskey, result)
}

/*
====================================
PUBLICATION
====================================
*/

// publishAttemptQR makes the attempt's QR payload renderable, gated by scope
// ownership so a superseded attempt cannot overwrite its successor's state.
func (f *Form) publishAttemptQR(ctx context.Context, gen uint64, attemptID string, action FormAction, username, payload, code string) bool {
	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return false
	}
	f.qrCodePayload = payload
	f.verificationCode = code
	f.attemptLoading = false
	f.mu.Unlock()

	f.emitEvent(ctx, eventAttemptQRPublished, true, action.String(), MethodAuthenticator.String(), username, attemptID, nil)
	return true
}

// latchAttemptError records a hard attempt failure. Errors inside a cancelled
// scope are swallowed: cancellation is teardown, not failure.
func (f *Form) latchAttemptError(
	ctx context.Context,
	gen uint64,
	attemptID string,
	action FormAction,
	username string,
	method AuthMethod,
	flowErr FlowError,
	cause error,
) {
	if ctx.Err() != nil {
		return
	}

	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return
	}
	f.attemptLoading = false
	f.setMethodErrLocked(method, flowErr)
	f.mu.Unlock()

	f.metrics.Inc(metricForFlowError(flowErr))
	f.emitEvent(ctx, eventAttemptFailed, false, action.String(), method.String(), username, attemptID, cause)
	f.reportError(cause)
}

func (f *Form) failLogIn(ctx context.Context, gen uint64, attemptID, username string, method AuthMethod, result AuthenticationResult) {
	flowErr := flowErrorForFailure(result.FailureReason)

	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return
	}
	f.attemptLoading = false
	f.setMethodErrLocked(method, flowErr)
	f.mu.Unlock()

	f.metrics.Inc(metricForFlowError(flowErr))
	f.emitEvent(ctx, eventAttemptFailed, false, ActionLogIn.String(), method.String(), username, attemptID, nil)
	if f.callbacks.OnLogInFailure != nil {
		f.callbacks.OnLogInFailure(result)
	}
}

func (f *Form) failRegister(ctx context.Context, gen uint64, attemptID, username string, method AuthMethod, result RegistrationResult) {
	flowErr := flowErrorForFailure(result.FailureReason)

	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return
	}
	f.attemptLoading = false
	f.setMethodErrLocked(method, flowErr)
	f.mu.Unlock()

	f.metrics.Inc(metricForFlowError(flowErr))
	f.emitEvent(ctx, eventAttemptFailed, false, ActionRegister.String(), method.String(), username, attemptID, nil)
	if f.callbacks.OnRegisterFailure != nil {
		f.callbacks.OnRegisterFailure(result)
	}
}

// completeLogIn flips the form into the absorbing succeeded state.
func (f *Form) completeLogIn(ctx context.Context, gen uint64, attemptID string, method AuthMethod, result AuthenticationResult) {
	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return
	}
	f.attemptLoading = false
	f.resolving = false
	f.isSucceeded = true
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.loopScope)
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.mu.Unlock()

	f.metrics.Inc(MetricAttemptSucceeded)
	f.emitEvent(ctx, eventAttemptSucceeded, true, ActionLogIn.String(), method.String(), result.Username, attemptID, nil)
	if f.callbacks.OnLogIn != nil {
		f.callbacks.OnLogIn(result)
	}
}

func (f *Form) completeRegister(ctx context.Context, gen uint64, attemptID string, method AuthMethod, result RegistrationResult) {
	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return
	}
	f.attemptLoading = false
	f.resolving = false
	f.isSucceeded = true
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.loopScope)
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.mu.Unlock()

	f.metrics.Inc(MetricAttemptSucceeded)
	f.emitEvent(ctx, eventAttemptSucceeded, true, ActionRegister.String(), method.String(), result.Username, attemptID, nil)
	if f.callbacks.OnRegister != nil {
		f.callbacks.OnRegister(result)
	}
}

// markOutOfBand records that the result will materialize elsewhere.
func (f *Form) markOutOfBand(ctx context.Context, gen uint64, attemptID string, action FormAction, username string, method AuthMethod) bool {
	f.mu.Lock()
	if !f.ownsLocked(&f.attemptScope, gen) {
		f.mu.Unlock()
		return false
	}
	f.attemptLoading = false
	f.isOutOfBand = true
	f.mu.Unlock()

	f.metrics.Inc(MetricOutOfBandPending)
	f.emitEvent(ctx, eventOutOfBandPending, true, action.String(), method.String(), username, attemptID, nil)
	return true
}

func metricForFlowError(flowErr FlowError) MetricID {
	switch flowErr {
	case FlowErrorNetwork:
		return MetricAttemptNetworkError
	case FlowErrorDeclined:
		return MetricAttemptDeclined
	case FlowErrorTimedOut:
		return MetricAttemptTimedOut
	default:
		return MetricAttemptUnknownError
	}
}
