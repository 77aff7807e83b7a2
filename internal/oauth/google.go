// Package oauth wires Google sign-in. The handshake is delegated to
// golang.org/x/oauth2; this package only adds state handling and the
// userinfo lookup.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

const (
	// UserInfoURL is Google's OpenID Connect userinfo endpoint.
	UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateBytes = 24
)

// ErrStateMismatch is returned when the callback state does not match the one
// issued with the redirect.
var ErrStateMismatch = apperrors.New(apperrors.KindUnauthorized, "OAuth state mismatch")

// Profile is the subset of userinfo forwarded to the frontend.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Config configures Provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint.
	Endpoint *oauth2.Endpoint
	// UserInfoURL overrides UserInfoURL.
	UserInfoURL string
	Timeout     time.Duration
}

// Provider runs the Google authorization code flow.
type Provider struct {
	oauth       *oauth2.Config
	http        *resty.Client
	userInfoURL string
}

// NewProvider constructs a Provider.
func NewProvider(cfg Config) *Provider {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = UserInfoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		http:        resty.New().SetTimeout(timeout),
		userInfoURL: userInfoURL,
	}
}

// NewState returns a random value to bind the redirect to its callback.
func NewState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthCodeURL returns the consent page URL for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a token and fetches the profile.
func (p *Provider) Exchange(ctx context.Context, code string) (Profile, error) {
	if code == "" {
		return Profile{}, apperrors.Validation("code", "Authorization code is required")
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return Profile{}, apperrors.Wrap(apperrors.KindUnauthorized, "OAuth code exchange rejected", err)
		}
		return Profile{}, apperrors.Wrap(apperrors.KindUpstream, "OAuth code exchange failed", err)
	}

	var profile Profile
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetResult(&profile).
		Get(p.userInfoURL)
	if err != nil {
		return Profile{}, apperrors.Wrap(apperrors.KindUpstream, "fetch userinfo", err)
	}
	if resp.IsError() {
		return Profile{}, apperrors.New(apperrors.KindUpstream, fmt.Sprintf("fetch userinfo: unexpected status %s", resp.Status()))
	}
	return profile, nil
}
