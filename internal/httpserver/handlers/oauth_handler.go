package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/httpserver/responses"
	"github.com/unsungfields/gateway/internal/oauth"
)

const (
	stateCookie       = "oauth_state"
	stateCookieMaxAge = 600
)

// OAuthProvider runs the authorization code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Profile, error)
}

// OAuthHandler serves the Google login redirect and its callback.
type OAuthHandler struct {
	provider     OAuthProvider
	frontendURL  string
	secureCookie bool
	logger       zerolog.Logger
}

// NewOAuthHandler constructs an OAuthHandler. After login the browser is sent
// to {frontendURL}/success with the profile in the query string.
func NewOAuthHandler(p OAuthProvider, frontendURL string, secureCookie bool, logger zerolog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider:     p,
		frontendURL:  frontendURL,
		secureCookie: secureCookie,
		logger:       logger.With().Str("component", "oauth-handler").Logger(),
	}
}

// Login redirects to the provider's consent page.
func (h *OAuthHandler) Login(c *gin.Context) {
	state, err := oauth.NewState()
	if err != nil {
		responses.HandleError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieMaxAge, "/", "", h.secureCookie, true)
	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

// Callback completes the flow and forwards the profile to the frontend.
func (h *OAuthHandler) Callback(c *gin.Context) {
	expected, err := c.Cookie(stateCookie)
	got := c.Query("state")
	if err != nil || got == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		responses.HandleError(c, oauth.ErrStateMismatch)
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.secureCookie, true)

	profile, err := h.provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("oauth exchange failed")
		responses.HandleError(c, err)
		return
	}

	q := url.Values{}
	q.Set("name", profile.Name)
	q.Set("email", profile.Email)
	q.Set("picture", profile.Picture)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/success?"+q.Encode())
}
