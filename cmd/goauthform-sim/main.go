package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goAuthForm "github.com/MrEthical07/goAuthForm"
	"github.com/MrEthical07/goAuthForm/metrics/export/prometheus"
	"github.com/MrEthical07/goAuthForm/oob"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// simClient is an in-memory capability client with tunable outcome rates.
type simClient struct {
	declineRate float64
	timeoutRate float64
	latency     time.Duration
	store       *oob.Store

	calls atomic.Int64
}

func (c *simClient) outcome(r *rand.Rand, username string) goAuthForm.AuthenticationResult {
	roll := r.Float64()
	switch {
	case roll < c.declineRate:
		return goAuthForm.AuthenticationResult{FailureReason: goAuthForm.FailureDeclined, Username: username}
	case roll < c.declineRate+c.timeoutRate:
		return goAuthForm.AuthenticationResult{FailureReason: goAuthForm.FailureTimedOut, Username: username}
	default:
		return goAuthForm.AuthenticationResult{Succeeded: true, Username: username, RequestID: uuid.NewString()}
	}
}

func (c *simClient) AvailableMethods(ctx context.Context, username string) (goAuthForm.AvailableMethods, error) {
	c.calls.Add(1)
	return goAuthForm.AvailableMethods{Authenticator: true, MagicLinkEmail: true, Passkey: true}, nil
}

func (c *simClient) CaptchaSiteID(ctx context.Context) (string, error) {
	return "", nil
}

func (c *simClient) AuthenticateWithAuthenticator(ctx context.Context, username string, options goAuthForm.OptionBag, captcha *goAuthForm.CaptchaConfirmation) (*goAuthForm.AuthenticatorLogInAttempt, error) {
	c.calls.Add(1)
	latency := c.latency
	client := c
	return &goAuthForm.AuthenticatorLogInAttempt{
		QRCodePayload:    "qr:" + uuid.NewString(),
		VerificationCode: "42",
		AwaitResult: func(ctx context.Context) (goAuthForm.AuthenticationResult, error) {
			select {
			case <-ctx.Done():
				return goAuthForm.AuthenticationResult{}, ctx.Err()
			case <-time.After(latency):
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			return client.outcome(r, username), nil
		},
	}, nil
}

func (c *simClient) AuthenticateWithAuthenticatorUsernameless(ctx context.Context, options goAuthForm.OptionBag) (*goAuthForm.AuthenticatorLogInAttempt, error) {
	return c.AuthenticateWithAuthenticator(ctx, "usernameless@example.com", options, nil)
}

func (c *simClient) RegisterWithAuthenticator(ctx context.Context, username string, options goAuthForm.OptionBag) (*goAuthForm.AuthenticatorRegisterAttempt, error) {
	c.calls.Add(1)
	latency := c.latency
	return &goAuthForm.AuthenticatorRegisterAttempt{
		QRCodePayload:    "qr:" + uuid.NewString(),
		VerificationCode: "42",
		AwaitResult: func(ctx context.Context) (goAuthForm.RegistrationResult, error) {
			select {
			case <-ctx.Done():
				return goAuthForm.RegistrationResult{}, ctx.Err()
			case <-time.After(latency):
			}
			return goAuthForm.RegistrationResult{Succeeded: true, Username: username, UserID: uuid.NewString()}, nil
		},
	}, nil
}

func (c *simClient) SendLogInMagicLinkEmail(ctx context.Context, username, redirectURL string, options goAuthForm.OptionBag, captcha *goAuthForm.CaptchaConfirmation) (goAuthForm.AuthenticationResult, error) {
	c.calls.Add(1)
	requestID := uuid.NewString()
	if c.store != nil {
		// Simulate the redirect handler completing the link out of band.
		go func() {
			time.Sleep(c.latency)
			_ = c.store.Publish(context.Background(), &oob.Record{
				RequestID: requestID,
				Username:  username,
				Action:    goAuthForm.ActionLogIn,
				Token:     uuid.NewString(),
			})
		}()
	}
	return goAuthForm.AuthenticationResult{Succeeded: true, Username: username, RequestID: requestID}, nil
}

func (c *simClient) SendRegisterMagicLinkEmail(ctx context.Context, username, redirectURL string, options goAuthForm.OptionBag, captcha *goAuthForm.CaptchaConfirmation) (goAuthForm.RegistrationResult, error) {
	c.calls.Add(1)
	return goAuthForm.RegistrationResult{Succeeded: true, Username: username}, nil
}

func (c *simClient) AuthenticateWithPasskey(ctx context.Context, username string, options goAuthForm.OptionBag) (goAuthForm.AuthenticationResult, error) {
	c.calls.Add(1)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return c.outcome(r, username), nil
}

func (c *simClient) RegisterWithPasskey(ctx context.Context, username string, options goAuthForm.OptionBag) (goAuthForm.RegistrationResult, error) {
	c.calls.Add(1)
	return goAuthForm.RegistrationResult{Succeeded: true, Username: username, UserID: uuid.NewString()}, nil
}

func main() {
	var (
		forms       = flag.Int("forms", 200, "number of forms to drive")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		declineRate = flag.Float64("decline-rate", 0.1, "fraction of attempts declined")
		timeoutRate = flag.Float64("timeout-rate", 0.1, "fraction of attempts timing out")
		latency     = flag.Duration("latency", 5*time.Millisecond, "simulated approval latency")
		redisAddr   = flag.String("redis-addr", "", "redis address for the out-of-band relay; if empty, miniredis is used")
	)
	flag.Parse()

	if *forms <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "forms and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	store := oob.NewStore(rdb).WithPollInterval(10 * time.Millisecond)

	client := &simClient{
		declineRate: *declineRate,
		timeoutRate: *timeoutRate,
		latency:     *latency,
		store:       store,
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		succeeded atomic.Int64
		failed    atomic.Int64
	)

	start := time.Now()
	sampleForm := driveForm(client, store, 0, &succeeded, &failed)

	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1))
				if i >= *forms {
					return
				}
				form := driveForm(client, store, i, &succeeded, &failed)
				form.Close()
			}
		}()
	}
	wg.Wait()

	fmt.Println("---- results ----")
	fmt.Printf("forms:     %d\n", *forms)
	fmt.Printf("succeeded: %d\n", succeeded.Load())
	fmt.Printf("failed:    %d\n", failed.Load())
	fmt.Printf("api calls: %d\n", client.calls.Load())
	fmt.Printf("elapsed:   %s\n", time.Since(start).Round(time.Millisecond))

	fmt.Println("---- sample form metrics ----")
	fmt.Print(prometheus.NewPrometheusExporter(sampleForm).Render())
	sampleForm.Close()
}

// driveForm runs one complete authenticator log-in through a fresh form,
// retrying latched errors until the flow succeeds or retries run out.
func driveForm(client *simClient, store *oob.Store, i int, succeeded, failed *atomic.Int64) *goAuthForm.Form {
	done := make(chan struct{}, 1)

	form, err := goAuthForm.New().
		WithClient(client).
		WithOutOfBandRelay(oob.NewFormRelay(store)).
		WithCallbacks(goAuthForm.Callbacks{
			OnLogIn: func(goAuthForm.AuthenticationResult) {
				succeeded.Add(1)
				select {
				case done <- struct{}{}:
				default:
				}
			},
		}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build form: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	username := fmt.Sprintf("user-%d@example.com", i)

	if err := form.SubmitUsername(ctx, username); err != nil {
		fmt.Fprintf(os.Stderr, "submit username: %v\n", err)
		os.Exit(1)
	}
	_ = form.SelectMethod(ctx, goAuthForm.MethodAuthenticator)

	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-done:
			return form
		case <-deadline:
			failed.Add(1)
			return form
		case <-time.After(20 * time.Millisecond):
			snap := form.Snapshot()
			if snap.IsSucceeded {
				return form
			}
			if snap.AuthenticatorError != goAuthForm.FlowErrorNone {
				if err := form.Retry(ctx); err != nil {
					failed.Add(1)
					return form
				}
			}
		}
	}
}
