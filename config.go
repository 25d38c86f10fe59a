package goAuthForm

import (
	"errors"
	"time"
)

// Config defines a public type used by goAuthForm APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Methods      MethodsConfig
	MagicLink    MagicLinkConfig
	Captcha      CaptchaConfig
	Usernameless UsernamelessConfig
	Options      OptionsConfig
	Events       EventsConfig
	Metrics      MetricsConfig

	// DefaultAction is the tab preselected before the user picks one.
	DefaultAction FormAction

	// MobileDevice marks mobile form factors, which are treated as always
	// visible by the usernameless loop.
	MobileDevice bool
}

/*
====================================
METHODS CONFIG
====================================
*/

// MethodsConfig defines a public type used by goAuthForm APIs.
//
// MethodsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MethodsConfig struct {
	// Permitted restricts which methods the form may offer. nil means the
	// built-in defaults: everything, with magic-link email gated on a
	// configured register redirect URL at registration time.
	Permitted *AvailableMethods
}

/*
====================================
MAGIC LINK CONFIG
====================================
*/

// MagicLinkConfig defines a public type used by goAuthForm APIs.
//
// MagicLinkConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MagicLinkConfig struct {
	// LogInRedirectURL is where the remote service sends the user after a
	// log-in magic link is clicked. Required for magic-link log-in.
	LogInRedirectURL string
	// RegisterRedirectURL is the registration counterpart. Required for
	// magic-link registration; its absence removes magic-link email from the
	// register-time method set.
	RegisterRedirectURL string
}

/*
====================================
CAPTCHA CONFIG
====================================
*/

// CaptchaConfig defines a public type used by goAuthForm APIs.
//
// CaptchaConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CaptchaConfig struct {
	// SiteIDFetchTimeout bounds the one-time site configuration fetch. Zero
	// means no bound beyond the form lifetime.
	SiteIDFetchTimeout time.Duration
}

/*
====================================
USERNAMELESS CONFIG
====================================
*/

// UsernamelessConfig defines a public type used by goAuthForm APIs.
//
// UsernamelessConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type UsernamelessConfig struct {
	Enabled bool
}

/*
====================================
OPTIONS CONFIG
====================================
*/

// OptionsConfig holds default option bags forwarded to the Client per method
// and action. Global entries apply to every call and are overridden by the
// per-method bags. The form engine never inspects their contents.
type OptionsConfig struct {
	Global OptionBag

	AuthenticatorLogIn        OptionBag
	AuthenticatorRegister     OptionBag
	AuthenticatorUsernameless OptionBag
	MagicLinkEmailLogIn       OptionBag
	MagicLinkEmailRegister    OptionBag
	PasskeyLogIn              OptionBag
	PasskeyRegister           OptionBag
}

// EventsConfig defines a public type used by goAuthForm APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goAuthForm APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Methods: MethodsConfig{
			Permitted: nil,
		},
		Captcha: CaptchaConfig{
			SiteIDFetchTimeout: 30 * time.Second,
		},
		Usernameless: UsernamelessConfig{
			Enabled: false,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		DefaultAction: ActionLogIn,
		MobileDevice:  false,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Methods.Permitted != nil {
		permitted := *cfg.Methods.Permitted
		out.Methods.Permitted = &permitted
	}
	out.Options.Global = cloneBag(cfg.Options.Global)
	out.Options.AuthenticatorLogIn = cloneBag(cfg.Options.AuthenticatorLogIn)
	out.Options.AuthenticatorRegister = cloneBag(cfg.Options.AuthenticatorRegister)
	out.Options.AuthenticatorUsernameless = cloneBag(cfg.Options.AuthenticatorUsernameless)
	out.Options.MagicLinkEmailLogIn = cloneBag(cfg.Options.MagicLinkEmailLogIn)
	out.Options.MagicLinkEmailRegister = cloneBag(cfg.Options.MagicLinkEmailRegister)
	out.Options.PasskeyLogIn = cloneBag(cfg.Options.PasskeyLogIn)
	out.Options.PasskeyRegister = cloneBag(cfg.Options.PasskeyRegister)
	return out
}

func cloneBag(bag OptionBag) OptionBag {
	if len(bag) == 0 {
		return nil
	}
	out := make(OptionBag, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Methods
	if c.Methods.Permitted != nil && c.Methods.Permitted.Count() == 0 {
		return errors.New("Methods Permitted must enable at least one method")
	}
	if c.Methods.Permitted != nil && c.Methods.Permitted.MagicLinkEmail &&
		c.MagicLink.LogInRedirectURL == "" && c.MagicLink.RegisterRedirectURL == "" {
		return errors.New("Methods Permitted enables magic-link email but MagicLink has no redirect URL")
	}

	switch c.DefaultAction {
	case ActionLogIn, ActionRegister:
		// valid
	default:
		return errors.New("invalid DefaultAction")
	}

	// Captcha
	if c.Captcha.SiteIDFetchTimeout < 0 {
		return errors.New("Captcha SiteIDFetchTimeout must be >= 0")
	}

	// Events
	if c.Events.Enabled {
		if c.Events.BufferSize <= 0 {
			return errors.New("Events BufferSize must be > 0 when events are enabled")
		}
	}

	return nil
}
