package goAuthForm

import "context"

// runUsernamelessLoop drives the self-restarting usernameless QR flow. Each
// cycle requests a fresh usernameless attempt, publishes its QR payload, and
// long-polls for the outcome:
//
//   - timedOut restarts the cycle immediately, pausing first if the surface
//     is hidden so that exactly one call is issued when visibility returns
//   - declined, network, and unknown outcomes latch and stop the loop until
//     RetryUsernameless
//   - success is terminal and adopts the approving username
//
// Teardown (scope cancellation) clears the published QR state; the canceller
// owns that cleanup because a parked long-poll may never observe ctx.Done.
func (f *Form) runUsernamelessLoop(ctx context.Context, gen uint64) {
	defer f.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		f.metrics.Inc(MetricUsernamelessCycle)
		f.emitEvent(ctx, eventUsernamelessStarted, true, ActionLogIn.String(), MethodAuthenticator.String(), "", "", nil)

		attempt, err := f.client.AuthenticateWithAuthenticatorUsernameless(ctx, f.optionsFor(f.config.Options.AuthenticatorUsernameless))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.latchUsernamelessError(ctx, gen, classifyError(err), err)
			return
		}
		if !f.publishUsernamelessQR(gen, attempt.QRCodePayload, attempt.VerificationCode) {
			return
		}

		result, err := attempt.AwaitResult(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.latchUsernamelessError(ctx, gen, classifyError(err), err)
			return
		}

		if result.Succeeded {
			f.completeUsernameless(ctx, gen, result)
			return
		}

		switch result.FailureReason {
		case FailureTimedOut:
			f.metrics.Inc(MetricUsernamelessTimedOut)
			f.emitEvent(ctx, eventUsernamelessTimedOut, false, ActionLogIn.String(), MethodAuthenticator.String(), "", "", nil)
			if !f.waitVisible(ctx) {
				return
			}
		case FailureDeclined:
			f.latchUsernamelessFailure(ctx, gen, FlowErrorDeclined, result)
			return
		default:
			f.latchUsernamelessFailure(ctx, gen, FlowErrorUnknown, result)
			return
		}
	}
}

func (f *Form) publishUsernamelessQR(gen uint64, payload, code string) bool {
	f.mu.Lock()
	if !f.ownsLocked(&f.loopScope, gen) {
		f.mu.Unlock()
		return false
	}
	f.usernamelessQR = payload
	f.usernamelessCode = code
	f.mu.Unlock()
	return true
}

// latchUsernamelessError stops the loop on a hard call failure.
func (f *Form) latchUsernamelessError(ctx context.Context, gen uint64, flowErr FlowError, cause error) {
	f.mu.Lock()
	if !f.ownsLocked(&f.loopScope, gen) {
		f.mu.Unlock()
		return
	}
	f.usernamelessErr = flowErr
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.cancelScopeLocked(&f.loopScope)
	f.mu.Unlock()

	f.metrics.Inc(MetricUsernamelessError)
	f.emitEvent(ctx, eventUsernamelessStopped, false, ActionLogIn.String(), MethodAuthenticator.String(), "", "", cause)
	f.reportError(cause)
}

// latchUsernamelessFailure stops the loop on a declined or unclassified poll
// outcome and surfaces it as a log-in failure.
func (f *Form) latchUsernamelessFailure(ctx context.Context, gen uint64, flowErr FlowError, result AuthenticationResult) {
	f.mu.Lock()
	if !f.ownsLocked(&f.loopScope, gen) {
		f.mu.Unlock()
		return
	}
	f.usernamelessErr = flowErr
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.cancelScopeLocked(&f.loopScope)
	f.mu.Unlock()

	if flowErr == FlowErrorDeclined {
		f.metrics.Inc(MetricUsernamelessDeclined)
	} else {
		f.metrics.Inc(MetricUsernamelessError)
	}
	f.emitEvent(ctx, eventUsernamelessStopped, false, ActionLogIn.String(), MethodAuthenticator.String(), "", "", nil)
	if f.callbacks.OnLogInFailure != nil {
		f.callbacks.OnLogInFailure(result)
	}
}

// completeUsernameless is the loop's terminal success: the approving user's
// identity is adopted and the whole form flips to succeeded.
func (f *Form) completeUsernameless(ctx context.Context, gen uint64, result AuthenticationResult) {
	f.mu.Lock()
	if !f.ownsLocked(&f.loopScope, gen) {
		f.mu.Unlock()
		return
	}
	if f.intent.username == nil {
		f.userUsername = result.Username
		f.hasUsername = true
	}
	f.isSucceeded = true
	f.usernamelessQR = ""
	f.usernamelessCode = ""
	f.cancelScopeLocked(&f.loopScope)
	f.cancelScopeLocked(&f.resolveScope)
	f.cancelScopeLocked(&f.attemptScope)
	f.resolving = false
	f.attemptLoading = false
	f.mu.Unlock()

	f.metrics.Inc(MetricUsernamelessSuccess)
	f.emitEvent(ctx, eventAttemptSucceeded, true, ActionLogIn.String(), MethodAuthenticator.String(), result.Username, "", nil)
	if f.callbacks.OnLogIn != nil {
		f.callbacks.OnLogIn(result)
	}
}
