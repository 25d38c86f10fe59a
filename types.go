package goAuthForm

// FormAction defines a public type used by goAuthForm APIs.
//
// FormAction instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FormAction uint8

const (
	// ActionLogIn is an exported constant or variable used by the form engine.
	ActionLogIn FormAction = iota
	// ActionRegister is an exported constant or variable used by the form engine.
	ActionRegister
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a FormAction) String() string {
	switch a {
	case ActionRegister:
		return "register"
	default:
		return "logIn"
	}
}

// AuthMethod defines a public type used by goAuthForm APIs.
//
// AuthMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthMethod uint8

const (
	// MethodAuthenticator is an exported constant or variable used by the form engine.
	MethodAuthenticator AuthMethod = iota
	// MethodMagicLinkEmail is an exported constant or variable used by the form engine.
	MethodMagicLinkEmail
	// MethodPasskey is an exported constant or variable used by the form engine.
	MethodPasskey
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m AuthMethod) String() string {
	switch m {
	case MethodMagicLinkEmail:
		return "magicLinkEmail"
	case MethodPasskey:
		return "passkey"
	default:
		return "authenticator"
	}
}

// AvailableMethods defines a public type used by goAuthForm APIs.
//
// AvailableMethods instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AvailableMethods struct {
	Authenticator  bool
	MagicLinkEmail bool
	Passkey        bool
}

// Has describes the has operation and its observable behavior.
//
// Has may return an error when input validation, dependency calls, or security checks fail.
// Has does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AvailableMethods) Has(method AuthMethod) bool {
	switch method {
	case MethodAuthenticator:
		return s.Authenticator
	case MethodMagicLinkEmail:
		return s.MagicLinkEmail
	case MethodPasskey:
		return s.Passkey
	default:
		return false
	}
}

// Count describes the count operation and its observable behavior.
//
// Count may return an error when input validation, dependency calls, or security checks fail.
// Count does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AvailableMethods) Count() int {
	n := 0
	if s.Authenticator {
		n++
	}
	if s.MagicLinkEmail {
		n++
	}
	if s.Passkey {
		n++
	}
	return n
}

// List describes the list operation and its observable behavior.
//
// List may return an error when input validation, dependency calls, or security checks fail.
// List does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AvailableMethods) List() []AuthMethod {
	out := make([]AuthMethod, 0, 3)
	if s.Authenticator {
		out = append(out, MethodAuthenticator)
	}
	if s.MagicLinkEmail {
		out = append(out, MethodMagicLinkEmail)
	}
	if s.Passkey {
		out = append(out, MethodPasskey)
	}
	return out
}

// Intersect describes the intersect operation and its observable behavior.
//
// Intersect may return an error when input validation, dependency calls, or security checks fail.
// Intersect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AvailableMethods) Intersect(other AvailableMethods) AvailableMethods {
	return AvailableMethods{
		Authenticator:  s.Authenticator && other.Authenticator,
		MagicLinkEmail: s.MagicLinkEmail && other.MagicLinkEmail,
		Passkey:        s.Passkey && other.Passkey,
	}
}

// FailureReason defines a public type used by goAuthForm APIs.
//
// FailureReason instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FailureReason uint8

const (
	// FailureUnknown is an exported constant or variable used by the form engine.
	FailureUnknown FailureReason = iota
	// FailureTimedOut is an exported constant or variable used by the form engine.
	FailureTimedOut
	// FailureDeclined is an exported constant or variable used by the form engine.
	FailureDeclined
	// FailureAborted is an exported constant or variable used by the form engine.
	FailureAborted
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r FailureReason) String() string {
	switch r {
	case FailureTimedOut:
		return "timedOut"
	case FailureDeclined:
		return "declined"
	case FailureAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// AuthenticationResult defines a public type used by goAuthForm APIs.
//
// AuthenticationResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthenticationResult struct {
	Succeeded     bool
	Username      string
	RequestID     string
	FailureReason FailureReason
}

// RegistrationResult defines a public type used by goAuthForm APIs.
//
// RegistrationResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationResult struct {
	Succeeded     bool
	Username      string
	UserID        string
	RequestID     string
	FailureReason FailureReason
}

// FlowError is the latched, renderable error of one flow slot. It is a display
// value, not a Go error: hard failures additionally reach Callbacks.OnError as
// sentinel errors.
type FlowError uint8

const (
	// FlowErrorNone is an exported constant or variable used by the form engine.
	FlowErrorNone FlowError = iota
	// FlowErrorNetwork is an exported constant or variable used by the form engine.
	FlowErrorNetwork
	// FlowErrorUnknown is an exported constant or variable used by the form engine.
	FlowErrorUnknown
	// FlowErrorDeclined is an exported constant or variable used by the form engine.
	FlowErrorDeclined
	// FlowErrorTimedOut is an exported constant or variable used by the form engine.
	FlowErrorTimedOut
	// FlowErrorUserNotFound is an exported constant or variable used by the form engine.
	FlowErrorUserNotFound
	// FlowErrorUserAlreadyExists is an exported constant or variable used by the form engine.
	FlowErrorUserAlreadyExists
	// FlowErrorNoMethods is an exported constant or variable used by the form engine.
	FlowErrorNoMethods
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e FlowError) String() string {
	switch e {
	case FlowErrorNone:
		return "none"
	case FlowErrorNetwork:
		return "network"
	case FlowErrorDeclined:
		return "declined"
	case FlowErrorTimedOut:
		return "timedOut"
	case FlowErrorUserNotFound:
		return "userNotFound"
	case FlowErrorUserAlreadyExists:
		return "userAlreadyExists"
	case FlowErrorNoMethods:
		return "noMethods"
	default:
		return "unknown"
	}
}

// FormPhase defines a public type used by goAuthForm APIs.
//
// FormPhase instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type FormPhase uint8

const (
	// PhaseChoosingAction is an exported constant or variable used by the form engine.
	PhaseChoosingAction FormPhase = iota
	// PhaseEnteringUsername is an exported constant or variable used by the form engine.
	PhaseEnteringUsername
	// PhaseResolvingMethods is an exported constant or variable used by the form engine.
	PhaseResolvingMethods
	// PhaseSelectingMethod is an exported constant or variable used by the form engine.
	PhaseSelectingMethod
	// PhaseAwaitingCaptcha is an exported constant or variable used by the form engine.
	PhaseAwaitingCaptcha
	// PhaseExecutingMethod is an exported constant or variable used by the form engine.
	PhaseExecutingMethod
	// PhaseLatchedError is an exported constant or variable used by the form engine.
	PhaseLatchedError
	// PhaseSucceeded is an exported constant or variable used by the form engine.
	PhaseSucceeded
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p FormPhase) String() string {
	switch p {
	case PhaseChoosingAction:
		return "choosingAction"
	case PhaseEnteringUsername:
		return "enteringUsername"
	case PhaseResolvingMethods:
		return "resolvingMethods"
	case PhaseSelectingMethod:
		return "selectingMethod"
	case PhaseAwaitingCaptcha:
		return "awaitingCaptcha"
	case PhaseExecutingMethod:
		return "executingMethod"
	case PhaseLatchedError:
		return "latchedError"
	case PhaseSucceeded:
		return "succeeded"
	default:
		return "invalid"
	}
}

// FormSnapshot is a point-in-time copy of the renderable form state. Hosts
// re-render from snapshots; mutating a snapshot has no effect on the form.
type FormSnapshot struct {
	Phase  FormPhase
	Action FormAction

	Username    string
	HasUsername bool

	AvailableMethods AvailableMethods
	MethodsResolved  bool
	Method           AuthMethod
	HasMethod        bool

	QRCodePayload    string
	VerificationCode string

	UsernamelessQRCodePayload    string
	UsernamelessVerificationCode string

	CaptchaRequired bool
	CaptchaPending  bool
	CaptchaResolved bool
	CaptchaSiteID   string

	IsLoading            bool
	IsSucceeded          bool
	IsOutOfBandCompleted bool

	UsernamelessError     FlowError
	UsernameLogInError    FlowError
	UsernameRegisterError FlowError
	AuthenticatorError    FlowError
	MagicLinkEmailError   FlowError
	PasskeyError          FlowError
}

// Callbacks carries the host's lifecycle hooks. Every field is optional; nil
// hooks are skipped. Hooks are invoked outside the form's internal lock and
// may call back into the form.
type Callbacks struct {
	OnLogIn             func(AuthenticationResult)
	OnRegister          func(RegistrationResult)
	OnOutOfBandLogIn    func(AuthenticationResult)
	OnOutOfBandRegister func(RegistrationResult)
	OnLogInFailure      func(AuthenticationResult)
	OnRegisterFailure   func(RegistrationResult)
	OnError             func(error)
}
