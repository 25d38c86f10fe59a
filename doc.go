// Package goAuthForm provides a headless multi-method authentication form
// orchestrator: authenticator push/QR approval, magic-link email, and passkeys,
// with usernameless QR log-in and CAPTCHA gating.
//
// The package owns derived form state, effect scheduling, cancellation, and
// error latching. The host supplies a [Client] (the remote identity service),
// renders from [Form.Snapshot], and reacts through [Callbacks]. Forms are built
// through [Builder.Build] and are safe to drive from multiple goroutines.
//
// # Architecture boundaries
//
// goAuthForm is the public surface. It exposes [Form], [Builder], [Config],
// [Client], and value types (FormSnapshot, AuthenticationResult, etc.). The
// magiclink and oob sub-packages are optional host-side companions for
// claiming out-of-band magic-link completions; the core never imports them.
//
// # What this package must NOT do
//
//   - Render anything, rasterize QR payloads, or talk to a CAPTCHA widget.
//     Payloads, verification codes, and site IDs pass through as opaque strings.
//   - Verify credentials or validate tokens. All protocol work happens behind
//     the [Client] interface.
//   - Perform I/O outside of effect goroutines started by form transitions
//     (construction via Builder is allocation-only until Build).
//
// # Concurrency contract
//
// Every capability call runs in an effect goroutine with its own cancellation
// scope. Re-firing an effect cancels its predecessor before the successor
// starts; results arriving after cancellation are discarded without touching
// form state. Close cancels all scopes and waits for goroutine exit.
package goAuthForm
