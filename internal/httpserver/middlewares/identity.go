package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/httpserver/responses"
	"github.com/unsungfields/gateway/pkg/apikey"
	"github.com/unsungfields/gateway/pkg/apperrors"
)

const (
	userIDKey    = "user_id"
	authViaKey   = "auth_via"
	apiKeyHeader = "X-API-Key"
	userIDHeader = "X-User-ID"
)

// KeyAuthenticator resolves an API key to its owner.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, value string) (string, error)
}

// IdentityMiddleware decides which user a request acts for: the owner of a
// presented X-API-Key, else the X-User-ID header when trustUserIDHeader is set,
// else defaultUserID. Without trust the header is ignored, since any client can
// send it.
func IdentityMiddleware(keys KeyAuthenticator, defaultUserID string, trustUserIDHeader bool, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader(apiKeyHeader)); key != "" {
			owner, err := keys.Authenticate(c.Request.Context(), key)
			if err != nil {
				if errors.Is(err, apikey.ErrNotFound) {
					responses.HandleError(c, apperrors.New(apperrors.KindUnauthorized, "Invalid API key"))
					return
				}
				logger.Error().Err(err).Msg("failed to authenticate api key")
				responses.HandleError(c, err)
				return
			}
			setUser(c, owner, "api_key")
			c.Next()
			return
		}

		if trustUserIDHeader {
			if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
				setUser(c, userID, "header")
				c.Next()
				return
			}
		}

		setUser(c, defaultUserID, "default")
		c.Next()
	}
}

func setUser(c *gin.Context, userID, via string) {
	c.Set(userIDKey, userID)
	c.Set(authViaKey, via)
}

// UserIDFromContext returns the user resolved by IdentityMiddleware.
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}
