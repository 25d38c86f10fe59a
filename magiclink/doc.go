// Package magiclink mints and validates the tokens carried by magic-link
// email redirects, and builds and parses the redirect URLs themselves.
//
// A magic-link send embeds a validation token in the redirect URL. The
// handler serving that URL parses the link, validates the token, and then
// completes the flow, typically by publishing the completion through the
// oob package so the originating form can observe it.
//
// # Architecture boundaries
//
// This package never talks to the network and never touches the form's
// state machine. It is pure token and URL plumbing.
package magiclink
