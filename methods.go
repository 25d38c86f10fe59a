package goAuthForm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// emailShapePattern accepts anything with a plausible local part and a domain
// that is not empty, not a bare dot, and free of URL delimiter characters. It
// is a cheap client-side gate, not RFC validation; the remote service has the
// final word when the magic link is sent.
var emailShapePattern = regexp.MustCompile(`^[^@]+@[^@:/?#]*[^@:/.?#]+$`)

func emailShaped(username string) bool {
	return emailShapePattern.MatchString(username)
}

// resolveAvailableMethods computes the offerable method set for the pair
// (action, username).
//
// Log-in asks the remote service which methods the user has enrolled; a 404
// on this branch (and only this branch) means the user does not exist.
//
// Registration inverts the probe: an existing user is the failure case, and
// the set itself is computed locally from permitted methods, the email shape
// of the username, and the presence of a register redirect URL.
//
// Both branches intersect with the configured permitted set and fail with
// ErrNoAuthenticationMethodsAvailable when nothing remains or when a fixed or
// previously chosen method is not in the set.
func (f *Form) resolveAvailableMethods(ctx context.Context, action FormAction, username string) (AvailableMethods, error) {
	var methods AvailableMethods

	switch action {
	case ActionLogIn:
		remote, err := f.client.AvailableMethods(ctx, username)
		if err != nil {
			if IsNotFound(err) {
				return AvailableMethods{}, ErrUserNotFound
			}
			return AvailableMethods{}, fmt.Errorf("resolve methods: %w", err)
		}
		methods = remote.Intersect(f.permittedMethods())

	case ActionRegister:
		_, err := f.client.AvailableMethods(ctx, username)
		if err == nil {
			return AvailableMethods{}, ErrUserAlreadyExists
		}
		if !IsNotFound(err) {
			return AvailableMethods{}, fmt.Errorf("resolve methods: %w", err)
		}

		methods = f.permittedMethods()
		if !emailShaped(username) || f.config.MagicLink.RegisterRedirectURL == "" {
			methods.MagicLinkEmail = false
		}
	}

	if methods.Count() == 0 {
		return AvailableMethods{}, ErrNoAuthenticationMethodsAvailable
	}
	if fixed, ok := f.pinnedMethod(); ok && !methods.Has(fixed) {
		return AvailableMethods{}, ErrNoAuthenticationMethodsAvailable
	}

	return methods, nil
}

// runResolve executes one method resolution pass in its own effect scope.
func (f *Form) runResolve(ctx context.Context, gen uint64, action FormAction, username string) {
	defer f.wg.Done()

	methods, err := f.resolveAvailableMethods(ctx, action, username)

	f.mu.Lock()
	if !f.ownsLocked(&f.resolveScope, gen) {
		f.mu.Unlock()
		return
	}
	f.resolving = false

	if err != nil {
		if ctx.Err() != nil {
			f.mu.Unlock()
			return
		}

		var flowErr FlowError
		var metric MetricID
		report := err
		switch {
		case errors.Is(err, ErrUserNotFound):
			flowErr, metric, report = FlowErrorUserNotFound, MetricUserNotFound, ErrUserNotFound
		case errors.Is(err, ErrUserAlreadyExists):
			flowErr, metric, report = FlowErrorUserAlreadyExists, MetricUserAlreadyExists, ErrUserAlreadyExists
		case errors.Is(err, ErrNoAuthenticationMethodsAvailable):
			flowErr, metric, report = FlowErrorNoMethods, MetricNoMethodsAvailable, ErrNoAuthenticationMethodsAvailable
		default:
			flowErr, metric = classifyError(err), MetricMethodsResolveFailed
		}
		f.setUsernameErrLocked(action, flowErr)
		f.mu.Unlock()

		f.metrics.Inc(MetricMethodsResolveFailed)
		if metric != MetricMethodsResolveFailed {
			f.metrics.Inc(metric)
		}
		f.emitEvent(ctx, eventMethodsResolved, false, action.String(), "", username, "", err)
		f.reportError(report)
		return
	}

	resolved := methods
	f.available = &resolved
	f.mu.Unlock()

	f.metrics.Inc(MetricMethodsResolved)
	f.emitEvent(ctx, eventMethodsResolved, true, action.String(), "", username, "", nil)
	f.evaluate(ctx)
}

// permittedMethods returns the configured permitted set, or every method by
// default. Log-in availability is the remote service's call; the redirect-URL
// rule applies only to the locally computed register set, and a magic-link
// dispatch without its redirect URL latches ErrRedirectURLMissing instead of
// being silently hidden.
func (f *Form) permittedMethods() AvailableMethods {
	if f.config.Methods.Permitted != nil {
		return *f.config.Methods.Permitted
	}
	return AvailableMethods{
		Authenticator:  true,
		MagicLinkEmail: true,
		Passkey:        true,
	}
}

// pinnedMethod reports the method the resolved set must contain: a fixed
// intent method, or a user choice that survived from before a re-resolution.
func (f *Form) pinnedMethod() (AuthMethod, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intent.method != nil {
		return *f.intent.method, true
	}
	if f.userMethod != nil {
		return *f.userMethod, true
	}
	return 0, false
}
