package magiclink

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Query parameter names carried on magic-link redirect URLs. Log-in links
// carry the validation token plus the originating request id; register links
// carry only the registration validation token.
const (
	ParamLogInValidationToken    = "auth_validation_token"
	ParamLogInRequestID          = "auth_request_id"
	ParamRegisterValidationToken = "registration_validation_token"
)

// SigningMethod defines a public type used by goAuthForm APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the form engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the form engine.
	MethodHS256 SigningMethod = "hs256"
)

// Config defines a public type used by goAuthForm APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	TokenTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager defines a public type used by goAuthForm APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// ValidationClaims defines a public type used by goAuthForm APIs.
//
// ValidationClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidationClaims struct {
	Username  string `json:"usr"`
	RequestID string `json:"rid,omitempty"`
	Register  bool   `json:"reg,omitempty"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// CreateValidationToken describes the createvalidationtoken operation and its observable behavior.
//
// CreateValidationToken may return an error when input validation, dependency calls, or security checks fail.
// CreateValidationToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CreateValidationToken(username, requestID string, register bool) (string, error) {
	if username == "" {
		return "", errors.New("username required")
	}

	claims := ValidationClaims{
		Username:  username,
		RequestID: requestID,
		Register:  register,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.getMethod(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// ParseValidationToken describes the parsevalidationtoken operation and its observable behavior.
//
// ParseValidationToken may return an error when input validation, dependency calls, or security checks fail.
// ParseValidationToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) ParseValidationToken(tokenStr string) (*ValidationClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &ValidationClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(m.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := m.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return m.keyBytesToVerifyKey(key)
		}

		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return m.getVerifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ValidationClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Username == "" {
		return nil, errors.New("token missing username")
	}

	return claims, nil
}

// LogInLink defines a public type used by goAuthForm APIs.
//
// LogInLink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LogInLink struct {
	ValidationToken string
	RequestID       string
}

// RegisterLink defines a public type used by goAuthForm APIs.
//
// RegisterLink instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterLink struct {
	ValidationToken string
}

// AppendLogInParams describes the appendloginparams operation and its observable behavior.
//
// AppendLogInParams may return an error when input validation, dependency calls, or security checks fail.
// AppendLogInParams does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AppendLogInParams(redirectURL, validationToken, requestID string) (string, error) {
	if validationToken == "" {
		return "", errors.New("validation token required")
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	q.Set(ParamLogInValidationToken, validationToken)
	if requestID != "" {
		q.Set(ParamLogInRequestID, requestID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AppendRegisterParams describes the appendregisterparams operation and its observable behavior.
//
// AppendRegisterParams may return an error when input validation, dependency calls, or security checks fail.
// AppendRegisterParams does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AppendRegisterParams(redirectURL, validationToken string) (string, error) {
	if validationToken == "" {
		return "", errors.New("validation token required")
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	q.Set(ParamRegisterValidationToken, validationToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseLogInLink describes the parseloginlink operation and its observable behavior.
//
// ParseLogInLink may return an error when input validation, dependency calls, or security checks fail.
// ParseLogInLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseLogInLink(rawURL string) (LogInLink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return LogInLink{}, fmt.Errorf("invalid magic link: %w", err)
	}
	q := u.Query()
	token := q.Get(ParamLogInValidationToken)
	if token == "" {
		return LogInLink{}, errors.New("magic link missing validation token")
	}
	return LogInLink{
		ValidationToken: token,
		RequestID:       q.Get(ParamLogInRequestID),
	}, nil
}

// ParseRegisterLink describes the parseregisterlink operation and its observable behavior.
//
// ParseRegisterLink may return an error when input validation, dependency calls, or security checks fail.
// ParseRegisterLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ParseRegisterLink(rawURL string) (RegisterLink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RegisterLink{}, fmt.Errorf("invalid magic link: %w", err)
	}
	token := u.Query().Get(ParamRegisterValidationToken)
	if token == "" {
		return RegisterLink{}, errors.New("magic link missing validation token")
	}
	return RegisterLink{ValidationToken: token}, nil
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func (m *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
