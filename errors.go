package goAuthForm

import "errors"

var (
	// ErrUserNotFound is an exported constant or variable used by the form engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is an exported constant or variable used by the form engine.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrNoAuthenticationMethodsAvailable is an exported constant or variable used by the form engine.
	ErrNoAuthenticationMethodsAvailable = errors.New("no authentication methods available")
	// ErrRedirectURLMissing is an exported constant or variable used by the form engine.
	ErrRedirectURLMissing = errors.New("magic link redirect url not configured")
	// ErrUsernameEmpty is an exported constant or variable used by the form engine.
	ErrUsernameEmpty = errors.New("username must not be empty")
	// ErrActionFixed is an exported constant or variable used by the form engine.
	ErrActionFixed = errors.New("form action is fixed")
	// ErrUsernameFixed is an exported constant or variable used by the form engine.
	ErrUsernameFixed = errors.New("form username is fixed")
	// ErrMethodFixed is an exported constant or variable used by the form engine.
	ErrMethodFixed = errors.New("form method is fixed")
	// ErrMethodUnavailable is an exported constant or variable used by the form engine.
	ErrMethodUnavailable = errors.New("method not available for this user")
	// ErrMethodsNotResolved is an exported constant or variable used by the form engine.
	ErrMethodsNotResolved = errors.New("methods not resolved yet")
	// ErrCaptchaNotPending is an exported constant or variable used by the form engine.
	ErrCaptchaNotPending = errors.New("no captcha confirmation pending")
	// ErrCaptchaTokenEmpty is an exported constant or variable used by the form engine.
	ErrCaptchaTokenEmpty = errors.New("captcha token must not be empty")
	// ErrNothingToGoBack is an exported constant or variable used by the form engine.
	ErrNothingToGoBack = errors.New("already at the initial step")
	// ErrNoRetryableError is an exported constant or variable used by the form engine.
	ErrNoRetryableError = errors.New("no latched error to retry")
	// ErrFormCompleted is an exported constant or variable used by the form engine.
	ErrFormCompleted = errors.New("form already completed")
	// ErrFormClosed is an exported constant or variable used by the form engine.
	ErrFormClosed = errors.New("form closed")
	// ErrFormNotReady is an exported constant or variable used by the form engine.
	ErrFormNotReady = errors.New("form not initialized")
)
