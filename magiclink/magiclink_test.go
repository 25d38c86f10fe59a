package magiclink

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TokenTTL:      time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("magic-link-secret-magic-link-secret"),
		Issuer:        "goauthform",
		Audience:      "redirect",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestValidationTokenRoundTrip(t *testing.T) {
	m := newHSManager(t)

	token, err := m.CreateValidationToken("alice@example.com", "req-1", false)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	claims, err := m.ParseValidationToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Username != "alice@example.com" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
	if claims.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", claims.RequestID)
	}
	if claims.Register {
		t.Fatal("log-in token flagged as register")
	}
}

func TestValidationTokenRegisterFlag(t *testing.T) {
	m := newHSManager(t)

	token, err := m.CreateValidationToken("bob@example.com", "", true)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	claims, err := m.ParseValidationToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !claims.Register {
		t.Fatal("register token not flagged as register")
	}
}

func TestParseValidationTokenRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TokenTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := ValidationClaims{Username: "alice@example.com", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseValidationToken(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseValidationTokenRejectsExpired(t *testing.T) {
	m := newHSManager(t)

	claims := ValidationClaims{Username: "alice@example.com", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "goauthform",
		Audience:  gjwt.ClaimStrings{"redirect"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("magic-link-secret-magic-link-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseValidationToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseValidationTokenRejectsMissingUsername(t *testing.T) {
	m := newHSManager(t)

	claims := ValidationClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "goauthform",
		Audience:  gjwt.ClaimStrings{"redirect"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("magic-link-secret-magic-link-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseValidationToken(token); err == nil {
		t.Fatal("expected token without username to be rejected")
	}
}

func TestVerifyKeysRequireKnownKid(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TokenTTL:      time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		KeyID:         "2026-08",
		VerifyKeys:    map[string][]byte{"2026-08": pub},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.CreateValidationToken("alice@example.com", "req-1", false)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := m.ParseValidationToken(token); err != nil {
		t.Fatalf("expected kid-bearing token to parse: %v", err)
	}

	claims := ValidationClaims{Username: "alice@example.com", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	noKid := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	bare, err := noKid.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseValidationToken(bare); err == nil {
		t.Fatal("expected token without kid to be rejected")
	}
}

func TestLogInLinkRoundTrip(t *testing.T) {
	link, err := AppendLogInParams("https://app.example.com/verify?theme=dark", "tok-abc", "req-9")
	if err != nil {
		t.Fatalf("append params: %v", err)
	}
	if !strings.Contains(link, "theme=dark") {
		t.Fatal("existing query parameters dropped")
	}

	parsed, err := ParseLogInLink(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if parsed.ValidationToken != "tok-abc" || parsed.RequestID != "req-9" {
		t.Fatalf("unexpected parse result %+v", parsed)
	}
}

func TestRegisterLinkRoundTrip(t *testing.T) {
	link, err := AppendRegisterParams("https://app.example.com/welcome", "tok-reg")
	if err != nil {
		t.Fatalf("append params: %v", err)
	}
	parsed, err := ParseRegisterLink(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if parsed.ValidationToken != "tok-reg" {
		t.Fatalf("unexpected token %q", parsed.ValidationToken)
	}
}

func TestParseLinkMissingToken(t *testing.T) {
	if _, err := ParseLogInLink("https://app.example.com/verify"); err == nil {
		t.Fatal("expected missing token error")
	}
	if _, err := ParseRegisterLink("https://app.example.com/welcome?other=1"); err == nil {
		t.Fatal("expected missing token error")
	}
}
