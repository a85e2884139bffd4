package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	errNilToken    = errors.New("auth: token is nil")
	errNoAlgorithm = errors.New("auth: token missing algorithm")
	errNoSubject   = errors.New("auth: token has no subject")
	errNoExpiry    = errors.New("auth: token has no expiry")
)

// TokenValidator checks the claims of an access token. Tokens must name a
// subject, because it becomes the caller id that scopes addresses and
// payments, and must expire.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks algorithm, subject, expiry, issuer, audience and the time
// window at now.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errNilToken
	case algorithm == "":
		return errNoAlgorithm
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	case tok.Subject() == "":
		return errNoSubject
	case tok.Expiration().IsZero():
		return errNoExpiry
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}
