package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	secret    []byte
	validator TokenValidator
	ttl       time.Duration
	now       func() time.Time
}

// TokensConfig configures NewTokens.
type TokensConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	TTL       time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewTokens constructs a token signer/verifier.
func NewTokens(cfg TokensConfig) (*Tokens, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
		},
		ttl: cfg.TTL,
		now: cfg.Now,
	}, nil
}

// Issue mints an access token for subject.
func (t *Tokens) Issue(subject string) (string, error) {
	now := t.now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(t.ttl))
	if t.validator.Issuer != "" {
		builder = builder.Issuer(t.validator.Issuer)
	}
	if t.validator.Audience != "" {
		builder = builder.Audience([]string{t.validator.Audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

// Verify returns the subject of a valid token or an Unauthorized error.
func (t *Tokens) Verify(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", common.Unauthorized("missing token")
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return "", invalidToken(err)
	}
	if algorithm != t.validator.Algorithm {
		return "", invalidToken(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.secret), jwt.WithValidate(false))
	if err != nil {
		return "", invalidToken(err)
	}
	if err := t.validator.Validate(parsed, algorithm, t.now()); err != nil {
		return "", invalidToken(err)
	}
	return parsed.Subject(), nil
}

func invalidToken(err error) error {
	appErr := common.Unauthorized("invalid token")
	appErr.Err = err
	return appErr
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil || headers.Algorithm() == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	return headers.Algorithm(), nil
}
