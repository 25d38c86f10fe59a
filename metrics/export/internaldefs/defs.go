package internaldefs

import (
	goAuthForm "github.com/MrEthical07/goAuthForm"
)

// CounterDef defines a public type used by goAuthForm APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goAuthForm.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goAuthForm APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goAuthForm.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the form engine.
var CounterDefs = []CounterDef{
	{ID: goAuthForm.MetricAttemptStarted, Name: "goauthform_attempt_started_total", Help: "Started method attempts."},
	{ID: goAuthForm.MetricAttemptSucceeded, Name: "goauthform_attempt_succeeded_total", Help: "Attempts that completed successfully."},
	{ID: goAuthForm.MetricAttemptDeclined, Name: "goauthform_attempt_declined_total", Help: "Attempts declined by the user."},
	{ID: goAuthForm.MetricAttemptTimedOut, Name: "goauthform_attempt_timed_out_total", Help: "Attempts that timed out."},
	{ID: goAuthForm.MetricAttemptNetworkError, Name: "goauthform_attempt_network_error_total", Help: "Attempts that failed with a network error."},
	{ID: goAuthForm.MetricAttemptUnknownError, Name: "goauthform_attempt_unknown_error_total", Help: "Attempts that failed with an unclassified error."},
	{ID: goAuthForm.MetricUsernamelessCycle, Name: "goauthform_usernameless_cycle_total", Help: "Started usernameless QR cycles."},
	{ID: goAuthForm.MetricUsernamelessSuccess, Name: "goauthform_usernameless_success_total", Help: "Usernameless cycles ending in approval."},
	{ID: goAuthForm.MetricUsernamelessDeclined, Name: "goauthform_usernameless_declined_total", Help: "Usernameless cycles declined by the approver."},
	{ID: goAuthForm.MetricUsernamelessTimedOut, Name: "goauthform_usernameless_timed_out_total", Help: "Usernameless cycles that timed out and restarted."},
	{ID: goAuthForm.MetricUsernamelessError, Name: "goauthform_usernameless_error_total", Help: "Usernameless cycles stopped by an error."},
	{ID: goAuthForm.MetricMethodsResolved, Name: "goauthform_methods_resolved_total", Help: "Successful method availability resolutions."},
	{ID: goAuthForm.MetricMethodsResolveFailed, Name: "goauthform_methods_resolve_failed_total", Help: "Failed method availability resolutions."},
	{ID: goAuthForm.MetricUserNotFound, Name: "goauthform_user_not_found_total", Help: "Log-in resolutions rejecting an unknown username."},
	{ID: goAuthForm.MetricUserAlreadyExists, Name: "goauthform_user_already_exists_total", Help: "Register resolutions rejecting an existing username."},
	{ID: goAuthForm.MetricNoMethodsAvailable, Name: "goauthform_no_methods_available_total", Help: "Resolutions producing an empty method set."},
	{ID: goAuthForm.MetricCaptchaConfirmed, Name: "goauthform_captcha_confirmed_total", Help: "CAPTCHA confirmations accepted."},
	{ID: goAuthForm.MetricCaptchaStaleDropped, Name: "goauthform_captcha_stale_dropped_total", Help: "Dispatches dropped because the CAPTCHA confirmation was stale."},
	{ID: goAuthForm.MetricOutOfBandPending, Name: "goauthform_out_of_band_pending_total", Help: "Magic-link sends leaving the form pending out of band."},
	{ID: goAuthForm.MetricOutOfBandCompleted, Name: "goauthform_out_of_band_completed_total", Help: "Out-of-band completions claimed by the relay."},
	{ID: goAuthForm.MetricWentBack, Name: "goauthform_went_back_total", Help: "Backward navigation steps."},
	{ID: goAuthForm.MetricActionSwitched, Name: "goauthform_action_switched_total", Help: "Switches between the log-in and register actions."},
}

// HistogramDefs is an exported constant or variable used by the form engine.
var HistogramDefs = []HistogramDef{
	{ID: goAuthForm.MetricAttemptLatency, Name: "goauthform_attempt_latency_seconds", Help: "Attempt latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the form engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the form engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
