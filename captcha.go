package goAuthForm

type captchaSiteState uint8

const (
	captchaSiteUnknown captchaSiteState = iota
	captchaSiteDisabled
	captchaSiteRequired
)

// captchaGate tracks the CAPTCHA site configuration and the single-use
// confirmation handshake. All access happens under the owning Form's mutex.
//
// A confirmation survives until the dispatch that carries it; at that moment
// it is marked stale. If a stale confirmation would fire again (inputs
// re-resolved without a fresh solve), the gate consumes it instead of letting
// the attempt execute, forcing the host to present the widget again.
type captchaGate struct {
	site         captchaSiteState
	siteID       string
	confirmation *CaptchaConfirmation
	stale        bool
}

// requiredFor reports whether the pair needs CAPTCHA at all: authenticator
// log-in (not registration) and magic-link email on either action.
func (g *captchaGate) requiredFor(method AuthMethod, action FormAction) bool {
	switch method {
	case MethodAuthenticator:
		return action == ActionLogIn
	case MethodMagicLinkEmail:
		return true
	default:
		return false
	}
}

// pendingFor reports whether execution must hold for a confirmation. An
// unresolved site ID still blocks: until the fetch lands the gate cannot know
// that CAPTCHA is disabled.
func (g *captchaGate) pendingFor(method AuthMethod, action FormAction) bool {
	if !g.requiredFor(method, action) {
		return false
	}
	if g.site == captchaSiteDisabled {
		return false
	}
	return g.confirmation == nil
}

func (g *captchaGate) resolveSite(siteID string) {
	if siteID == "" {
		g.site = captchaSiteDisabled
		g.siteID = ""
		return
	}
	g.site = captchaSiteRequired
	g.siteID = siteID
}

func (g *captchaGate) confirm(token string) {
	g.confirmation = &CaptchaConfirmation{Token: token}
	g.stale = false
}

// take returns the confirmation an attempt should carry. The first dispatch
// marks the confirmation stale; a later dispatch with the same confirmation
// consumes it and reports drop instead.
func (g *captchaGate) take() (confirmation *CaptchaConfirmation, dropStale bool) {
	if g.confirmation == nil {
		return nil, false
	}
	if g.stale {
		g.confirmation = nil
		g.stale = false
		return nil, true
	}
	g.stale = true
	return g.confirmation, false
}

func (g *captchaGate) reset() {
	g.confirmation = nil
	g.stale = false
}
