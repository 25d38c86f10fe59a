package goAuthForm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// scriptClient is a Client whose behavior is scripted per test through
// function fields. Unset fields fall back to permissive defaults: all
// methods available, CAPTCHA disabled, every attempt approved immediately.
type scriptClient struct {
	availableMethodsFn func(ctx context.Context, username string) (AvailableMethods, error)
	captchaSiteIDFn    func(ctx context.Context) (string, error)
	authenticatorFn    func(ctx context.Context, username string, options OptionBag, captcha *CaptchaConfirmation) (*AuthenticatorLogInAttempt, error)
	usernamelessFn     func(ctx context.Context, options OptionBag) (*AuthenticatorLogInAttempt, error)
	registerAuthFn     func(ctx context.Context, username string, options OptionBag) (*AuthenticatorRegisterAttempt, error)
	logInEmailFn       func(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (AuthenticationResult, error)
	registerEmailFn    func(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (RegistrationResult, error)
	passkeyLogInFn     func(ctx context.Context, username string, options OptionBag) (AuthenticationResult, error)
	passkeyRegisterFn  func(ctx context.Context, username string, options OptionBag) (RegistrationResult, error)

	resolveCalls      atomic.Int64
	authenticatorCall atomic.Int64
	usernamelessCalls atomic.Int64
}

func (c *scriptClient) AvailableMethods(ctx context.Context, username string) (AvailableMethods, error) {
	c.resolveCalls.Add(1)
	if c.availableMethodsFn != nil {
		return c.availableMethodsFn(ctx, username)
	}
	return AvailableMethods{Authenticator: true, MagicLinkEmail: true, Passkey: true}, nil
}

func (c *scriptClient) CaptchaSiteID(ctx context.Context) (string, error) {
	if c.captchaSiteIDFn != nil {
		return c.captchaSiteIDFn(ctx)
	}
	return "", nil
}

func (c *scriptClient) AuthenticateWithAuthenticator(ctx context.Context, username string, options OptionBag, captcha *CaptchaConfirmation) (*AuthenticatorLogInAttempt, error) {
	c.authenticatorCall.Add(1)
	if c.authenticatorFn != nil {
		return c.authenticatorFn(ctx, username, options, captcha)
	}
	return approvedLogInAttempt(username), nil
}

func (c *scriptClient) AuthenticateWithAuthenticatorUsernameless(ctx context.Context, options OptionBag) (*AuthenticatorLogInAttempt, error) {
	c.usernamelessCalls.Add(1)
	if c.usernamelessFn != nil {
		return c.usernamelessFn(ctx, options)
	}
	return approvedLogInAttempt("qr-user@example.com"), nil
}

func (c *scriptClient) RegisterWithAuthenticator(ctx context.Context, username string, options OptionBag) (*AuthenticatorRegisterAttempt, error) {
	if c.registerAuthFn != nil {
		return c.registerAuthFn(ctx, username, options)
	}
	return &AuthenticatorRegisterAttempt{
		QRCodePayload:    "qr-register",
		VerificationCode: "11",
		AwaitResult: func(ctx context.Context) (RegistrationResult, error) {
			return RegistrationResult{Succeeded: true, Username: username, UserID: "uid-1"}, nil
		},
	}, nil
}

func (c *scriptClient) SendLogInMagicLinkEmail(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (AuthenticationResult, error) {
	if c.logInEmailFn != nil {
		return c.logInEmailFn(ctx, username, redirectURL, options, captcha)
	}
	return AuthenticationResult{Succeeded: true, Username: username, RequestID: "req-email"}, nil
}

func (c *scriptClient) SendRegisterMagicLinkEmail(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (RegistrationResult, error) {
	if c.registerEmailFn != nil {
		return c.registerEmailFn(ctx, username, redirectURL, options, captcha)
	}
	return RegistrationResult{Succeeded: true, Username: username, RequestID: "req-reg"}, nil
}

func (c *scriptClient) AuthenticateWithPasskey(ctx context.Context, username string, options OptionBag) (AuthenticationResult, error) {
	if c.passkeyLogInFn != nil {
		return c.passkeyLogInFn(ctx, username, options)
	}
	return AuthenticationResult{Succeeded: true, Username: username}, nil
}

func (c *scriptClient) RegisterWithPasskey(ctx context.Context, username string, options OptionBag) (RegistrationResult, error) {
	if c.passkeyRegisterFn != nil {
		return c.passkeyRegisterFn(ctx, username, options)
	}
	return RegistrationResult{Succeeded: true, Username: username, UserID: "uid-1"}, nil
}

func approvedLogInAttempt(username string) *AuthenticatorLogInAttempt {
	return &AuthenticatorLogInAttempt{
		QRCodePayload:    "qr-login",
		VerificationCode: "42",
		AwaitResult: func(ctx context.Context) (AuthenticationResult, error) {
			return AuthenticationResult{Succeeded: true, Username: username, RequestID: "req-1"}, nil
		},
	}
}

// parkedLogInAttempt blocks in AwaitResult until outcome delivers a result or
// the attempt's scope is cancelled.
func parkedLogInAttempt(outcome <-chan AuthenticationResult) *AuthenticatorLogInAttempt {
	return &AuthenticatorLogInAttempt{
		QRCodePayload:    "qr-parked",
		VerificationCode: "42",
		AwaitResult: func(ctx context.Context) (AuthenticationResult, error) {
			select {
			case <-ctx.Done():
				return AuthenticationResult{}, ctx.Err()
			case result := <-outcome:
				return result, nil
			}
		},
	}
}

func buildForm(t *testing.T, client Client, mutate ...func(*Builder)) *Form {
	t.Helper()
	b := New().WithClient(client)
	for _, m := range mutate {
		m(b)
	}
	form, err := b.Build()
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	t.Cleanup(form.Close)
	return form
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives in-flight effect goroutines a moment to publish, for asserting
// that something did NOT happen.
func settle() {
	time.Sleep(30 * time.Millisecond)
}
