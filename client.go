package goAuthForm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// OptionBag carries method options that are opaque to the form engine. Bags
// are merged shallowly (per-call entries win over configured defaults) and
// passed to the Client verbatim.
type OptionBag map[string]any

func mergeOptions(base, extra OptionBag) OptionBag {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(OptionBag, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// CaptchaConfirmation defines a public type used by goAuthForm APIs.
//
// CaptchaConfirmation instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CaptchaConfirmation struct {
	Token string
}

// AuthenticatorLogInAttempt is a started authenticator log-in request. The QR
// payload and verification code are renderable immediately; AwaitResult blocks
// (long poll) until the user approves, declines, or the request times out.
type AuthenticatorLogInAttempt struct {
	QRCodePayload    string
	VerificationCode string
	AwaitResult      func(ctx context.Context) (AuthenticationResult, error)
}

// AuthenticatorRegisterAttempt is a started authenticator registration
// request. Same shape as the log-in attempt but resolves to a
// RegistrationResult.
type AuthenticatorRegisterAttempt struct {
	QRCodePayload    string
	VerificationCode string
	AwaitResult      func(ctx context.Context) (RegistrationResult, error)
}

// Client is the capability surface of the remote identity service. The form
// engine treats it as a black box: QR payloads, verification codes, and
// CAPTCHA site IDs pass through untouched, and all cryptography (passkey
// ceremonies included) happens behind this interface.
//
// Implementations must honor context cancellation on every call. Non-exceptional
// flow outcomes (declined, timed out) are returned as results with Succeeded
// set to false, not as errors.
type Client interface {
	// AvailableMethods returns the methods enrolled for username. A missing
	// user is reported as an *APIError with StatusCode 404.
	AvailableMethods(ctx context.Context, username string) (AvailableMethods, error)

	// CaptchaSiteID resolves the CAPTCHA site configuration once per client.
	// An empty site ID means CAPTCHA is disabled for this tenant.
	CaptchaSiteID(ctx context.Context) (string, error)

	AuthenticateWithAuthenticator(ctx context.Context, username string, options OptionBag, captcha *CaptchaConfirmation) (*AuthenticatorLogInAttempt, error)
	AuthenticateWithAuthenticatorUsernameless(ctx context.Context, options OptionBag) (*AuthenticatorLogInAttempt, error)
	RegisterWithAuthenticator(ctx context.Context, username string, options OptionBag) (*AuthenticatorRegisterAttempt, error)

	SendLogInMagicLinkEmail(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (AuthenticationResult, error)
	SendRegisterMagicLinkEmail(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (RegistrationResult, error)

	AuthenticateWithPasskey(ctx context.Context, username string, options OptionBag) (AuthenticationResult, error)
	RegisterWithPasskey(ctx context.Context, username string, options OptionBag) (RegistrationResult, error)
}

// APIError is a structured failure from the remote identity service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error describes the error operation and its observable behavior.
//
// Error may return an error when input validation, dependency calls, or security checks fail.
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound describes the isnotfound operation and its observable behavior.
//
// IsNotFound may return an error when input validation, dependency calls, or security checks fail.
// IsNotFound does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// classifyError maps a capability call failure to a latched flow error.
// Transport failures (anything implementing net.Error) latch as network;
// structured API failures and everything else latch as unknown. 404 handling
// is branch-specific and happens before classification.
func classifyError(err error) FlowError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return FlowErrorUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FlowErrorNetwork
	}
	return FlowErrorUnknown
}

func flowErrorForFailure(reason FailureReason) FlowError {
	switch reason {
	case FailureTimedOut:
		return FlowErrorTimedOut
	case FailureDeclined:
		return FlowErrorDeclined
	default:
		return FlowErrorUnknown
	}
}
