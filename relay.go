package goAuthForm

import "context"

// OutOfBandCompletion is a magic-link completion claimed outside the process
// running the form, typically by the redirect handler validating the link.
type OutOfBandCompletion struct {
	RequestID string
	Username  string
	Action    FormAction
	Token     string
}

// OutOfBandRelay hands completed magic-link results back to the form. When a
// relay is configured, a magic-link send leaves the form in the out-of-band
// pending state and a watcher awaits the completion under the attempt's
// cancellation scope; claiming the completion flips the form to succeeded.
//
// The oob sub-package provides a redis-backed implementation so the redirect
// can land in a different process.
type OutOfBandRelay interface {
	Await(ctx context.Context, requestID string) (OutOfBandCompletion, error)
}
