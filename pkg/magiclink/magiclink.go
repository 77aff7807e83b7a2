// Package magiclink issues and verifies signed, time-bounded email login
// tokens. Tokens are stateless HS256 JWTs; nothing is stored server side.
//
// A verified token proves only that its bearer received the email. Binding
// the address to an account or a session is the caller's responsibility.
package magiclink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

var (
	// ErrExpired is returned for a well-signed token whose window has passed.
	ErrExpired = apperrors.New(apperrors.KindTokenExpired, "Token has expired")
	// ErrInvalid is returned for a bad signature, a malformed token, an
	// unexpected algorithm, or a missing email claim.
	ErrInvalid = apperrors.New(apperrors.KindTokenInvalid, "Invalid token")
)

const (
	DefaultWindow  = 15 * time.Minute
	DefaultBaseURL = "http://localhost:5173/verify"
)

// Claims is the payload of a magic-link token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Link is an issued token and the URL that carries it.
type Link struct {
	Email     string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// Issuer signs and verifies magic-link tokens with a shared secret.
type Issuer struct {
	secret  []byte
	window  time.Duration
	baseURL *url.URL
	now     func() time.Time
	parser  *jwt.Parser
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithWindow sets how long a token stays valid.
func WithWindow(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.window = d
		}
	}
}

// WithBaseURL sets the page the link points at. The token is appended as the
// "token" query parameter.
func WithBaseURL(u *url.URL) Option {
	return func(i *Issuer) {
		if u != nil {
			i.baseURL = u
		}
	}
}

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer returns an Issuer signing with secret, which must not be empty.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("magiclink: secret is required")
	}
	base, err := url.Parse(DefaultBaseURL)
	if err != nil {
		return nil, err
	}

	i := &Issuer{
		secret:  []byte(secret),
		window:  DefaultWindow,
		baseURL: base,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	return i, nil
}

// Window returns the validity period of issued tokens.
func (i *Issuer) Window() time.Duration {
	return i.window
}

// Issue signs a token for email and embeds it in a link.
func (i *Issuer) Issue(email string) (Link, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Link{}, apperrors.Validation("email", "Email is required")
	}

	// JWT times have one-second resolution.
	now := i.now().Truncate(time.Second)
	expiresAt := now.Add(i.window)

	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Link{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Link{
		Email:     email,
		Token:     token,
		URL:       i.linkFor(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature and expiry of token and returns its email.
func (i *Issuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalid
	}

	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	default:
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if strings.TrimSpace(claims.Email) == "" {
		return "", fmt.Errorf("%w: missing email claim", ErrInvalid)
	}
	return claims.Email, nil
}

func (i *Issuer) linkFor(token string) string {
	u := *i.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
