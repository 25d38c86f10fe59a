// Package oob carries completed magic-link results across process
// boundaries over redis.
//
// The redirect handler that validates a magic link runs in a different
// process from the form that sent it. The handler publishes the completion
// under the attempt's request id; the form's relay polls for it and flips
// the form to succeeded when it lands. Completions are single use: the
// first consumer removes the record.
//
// # Architecture boundaries
//
// This package knows nothing about tokens or URLs; validating the link is
// the magiclink package's job. It stores only the already-validated
// completion record.
package oob
