package goAuthForm

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want FlowError
	}{
		{&APIError{StatusCode: 500}, FlowErrorUnknown},
		{&timeoutError{}, FlowErrorNetwork},
		{errors.New("opaque"), FlowErrorUnknown},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestFlowErrorForFailure(t *testing.T) {
	cases := []struct {
		reason FailureReason
		want   FlowError
	}{
		{FailureTimedOut, FlowErrorTimedOut},
		{FailureDeclined, FlowErrorDeclined},
		{FailureUnknown, FlowErrorUnknown},
	}
	for _, tc := range cases {
		if got := flowErrorForFailure(tc.reason); got != tc.want {
			t.Fatalf("flowErrorForFailure(%v) = %v, want %v", tc.reason, got, tc.want)
		}
	}
}

func magicLinkConfig() Config {
	return Config{
		MagicLink: MagicLinkConfig{
			LogInRedirectURL:    "https://app.example.com/auth",
			RegisterRedirectURL: "https://app.example.com/welcome",
		},
		DefaultAction: ActionLogIn,
		Events:        EventsConfig{BufferSize: 16, DropIfFull: true},
	}
}

func TestMagicLinkLogInWithoutRelayStaysOutOfBand(t *testing.T) {
	client := &scriptClient{}
	var outOfBand AuthenticationResult
	notified := make(chan struct{})

	form := buildForm(t, client, func(b *Builder) {
		b.WithConfig(magicLinkConfig())
		b.WithMetricsEnabled(true)
		b.WithCallbacks(Callbacks{
			OnOutOfBandLogIn: func(result AuthenticationResult) {
				outOfBand = result
				close(notified)
			},
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodMagicLinkEmail); err != nil {
		t.Fatalf("select method: %v", err)
	}

	<-notified
	if outOfBand.RequestID != "req-email" {
		t.Fatalf("unexpected out-of-band result %+v", outOfBand)
	}

	snap := form.Snapshot()
	if !snap.IsOutOfBandCompleted {
		t.Fatal("out-of-band flag not set")
	}
	if snap.IsSucceeded {
		t.Fatal("form succeeded without a relay completion")
	}
	if got := form.MetricsSnapshot().Counters[MetricOutOfBandPending]; got != 1 {
		t.Fatalf("expected 1 pending, got %d", got)
	}
}

// stubRelay parks Await until a completion is delivered.
type stubRelay struct {
	completions chan OutOfBandCompletion
	requestIDs  chan string
}

func newStubRelay() *stubRelay {
	return &stubRelay{
		completions: make(chan OutOfBandCompletion, 1),
		requestIDs:  make(chan string, 1),
	}
}

func (r *stubRelay) Await(ctx context.Context, requestID string) (OutOfBandCompletion, error) {
	r.requestIDs <- requestID
	select {
	case <-ctx.Done():
		return OutOfBandCompletion{}, ctx.Err()
	case c := <-r.completions:
		return c, nil
	}
}

func TestMagicLinkLogInRelayCompletesForm(t *testing.T) {
	client := &scriptClient{}
	relay := newStubRelay()
	done := make(chan AuthenticationResult, 1)

	form := buildForm(t, client, func(b *Builder) {
		b.WithConfig(magicLinkConfig())
		b.WithMetricsEnabled(true)
		b.WithOutOfBandRelay(relay)
		b.WithCallbacks(Callbacks{
			OnLogIn: func(result AuthenticationResult) { done <- result },
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodMagicLinkEmail); err != nil {
		t.Fatalf("select method: %v", err)
	}

	// The watcher awaits the request id the send reported.
	if got := <-relay.requestIDs; got != "req-email" {
		t.Fatalf("watcher awaited %q", got)
	}
	relay.completions <- OutOfBandCompletion{
		RequestID: "req-email",
		Username:  "alice@example.com",
		Action:    ActionLogIn,
	}

	result := <-done
	if result.Username != "alice@example.com" || !result.Succeeded {
		t.Fatalf("unexpected completion %+v", result)
	}
	waitFor(t, "succeeded", func() bool { return form.Snapshot().IsSucceeded })
	if got := form.MetricsSnapshot().Counters[MetricOutOfBandCompleted]; got != 1 {
		t.Fatalf("expected 1 completed, got %d", got)
	}
}

func TestMagicLinkRegisterRelayCompletesForm(t *testing.T) {
	client := &scriptClient{
		availableMethodsFn: func(ctx context.Context, username string) (AvailableMethods, error) {
			// Register probe: the user must not exist yet.
			return AvailableMethods{}, &APIError{StatusCode: 404}
		},
	}
	relay := newStubRelay()
	done := make(chan RegistrationResult, 1)

	form := buildForm(t, client, func(b *Builder) {
		cfg := magicLinkConfig()
		cfg.DefaultAction = ActionRegister
		b.WithConfig(cfg)
		b.WithOutOfBandRelay(relay)
		b.WithCallbacks(Callbacks{
			OnRegister: func(result RegistrationResult) { done <- result },
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "new@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodMagicLinkEmail); err != nil {
		t.Fatalf("select method: %v", err)
	}

	// Register magic link is gated, but the site id resolves to disabled here
	// so the dispatch goes straight through. The watcher awaits the request id
	// the send reported.
	if got := <-relay.requestIDs; got != "req-reg" {
		t.Fatalf("watcher awaited %q", got)
	}
	relay.completions <- OutOfBandCompletion{
		RequestID: "req-reg",
		Username:  "new@example.com",
		Action:    ActionRegister,
	}

	result := <-done
	if result.Username != "new@example.com" || !result.Succeeded {
		t.Fatalf("unexpected completion %+v", result)
	}
	waitFor(t, "succeeded", func() bool { return form.Snapshot().IsSucceeded })
}

func TestMagicLinkMissingRedirectURLLatches(t *testing.T) {
	var reported error
	client := &scriptClient{
		// Authenticator off so magic link is selectable without auto-dispatch
		// concerns; redirect URL deliberately left unset.
		availableMethodsFn: func(ctx context.Context, username string) (AvailableMethods, error) {
			return AvailableMethods{MagicLinkEmail: true, Passkey: true}, nil
		},
	}
	form := buildForm(t, client, func(b *Builder) {
		b.WithCallbacks(Callbacks{OnError: func(err error) { reported = err }})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodMagicLinkEmail); err != nil {
		t.Fatalf("select method: %v", err)
	}

	waitFor(t, "latched error", func() bool {
		return form.Snapshot().MagicLinkEmailError == FlowErrorUnknown
	})
	if !errors.Is(reported, ErrRedirectURLMissing) {
		t.Fatalf("expected ErrRedirectURLMissing, got %v", reported)
	}
}

func TestMagicLinkSendRejectionLatchesMethodError(t *testing.T) {
	client := &scriptClient{
		logInEmailFn: func(ctx context.Context, username, redirectURL string, options OptionBag, captcha *CaptchaConfirmation) (AuthenticationResult, error) {
			return AuthenticationResult{FailureReason: FailureTimedOut}, nil
		},
	}
	var failed AuthenticationResult
	notified := make(chan struct{})

	form := buildForm(t, client, func(b *Builder) {
		b.WithConfig(magicLinkConfig())
		b.WithCallbacks(Callbacks{
			OnLogInFailure: func(result AuthenticationResult) {
				failed = result
				close(notified)
			},
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodMagicLinkEmail); err != nil {
		t.Fatalf("select method: %v", err)
	}

	<-notified
	if failed.FailureReason != FailureTimedOut {
		t.Fatalf("unexpected failure %+v", failed)
	}
	waitFor(t, "latched timeout", func() bool {
		return form.Snapshot().MagicLinkEmailError == FlowErrorTimedOut
	})
}

func TestAuthenticatorRegisterPublishesQRAndCompletes(t *testing.T) {
	client := &scriptClient{
		availableMethodsFn: func(ctx context.Context, username string) (AvailableMethods, error) {
			return AvailableMethods{}, &APIError{StatusCode: 404}
		},
	}
	done := make(chan RegistrationResult, 1)

	form := buildForm(t, client, func(b *Builder) {
		b.WithFixedAction(ActionRegister)
		b.WithCallbacks(Callbacks{
			OnRegister: func(result RegistrationResult) { done <- result },
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "new@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodAuthenticator); err != nil {
		t.Fatalf("select method: %v", err)
	}

	result := <-done
	if result.UserID != "uid-1" || !result.Succeeded {
		t.Fatalf("unexpected registration %+v", result)
	}
	waitFor(t, "succeeded", func() bool { return form.Snapshot().IsSucceeded })
}

func TestOptionsForMergesGlobalBag(t *testing.T) {
	var seen OptionBag
	client := &scriptClient{
		passkeyLogInFn: func(ctx context.Context, username string, options OptionBag) (AuthenticationResult, error) {
			seen = options
			return AuthenticationResult{Succeeded: true, Username: username}, nil
		},
	}
	form := buildForm(t, client, func(b *Builder) {
		b.WithConfig(Config{
			Options: OptionsConfig{
				Global:       OptionBag{"timeout_seconds": "30", "theme": "dark"},
				PasskeyLogIn: OptionBag{"timeout_seconds": "60"},
			},
			DefaultAction: ActionLogIn,
			Events:        EventsConfig{BufferSize: 16, DropIfFull: true},
		})
	})
	ctx := context.Background()

	if err := form.SubmitUsername(ctx, "alice@example.com"); err != nil {
		t.Fatalf("submit username: %v", err)
	}
	waitFor(t, "methods resolved", func() bool { return form.Snapshot().MethodsResolved })
	if err := form.SelectMethod(ctx, MethodPasskey); err != nil {
		t.Fatalf("select method: %v", err)
	}
	waitFor(t, "succeeded", func() bool { return form.Snapshot().IsSucceeded })

	if seen["timeout_seconds"] != "60" {
		t.Fatalf("per-method entry must win, got %q", seen["timeout_seconds"])
	}
	if seen["theme"] != "dark" {
		t.Fatalf("global entry missing, got %v", seen)
	}
}
