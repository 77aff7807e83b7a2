package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/httpserver/responses"
	"github.com/unsungfields/gateway/internal/mailer"
	"github.com/unsungfields/gateway/internal/metrics"
	"github.com/unsungfields/gateway/pkg/apperrors"
	"github.com/unsungfields/gateway/pkg/magiclink"
)

// MagicLinkHandler issues and verifies email login links.
type MagicLinkHandler struct {
	issuer *magiclink.Issuer
	mailer mailer.Mailer
	logger zerolog.Logger
}

// NewMagicLinkHandler constructs a MagicLinkHandler.
func NewMagicLinkHandler(issuer *magiclink.Issuer, m mailer.Mailer, logger zerolog.Logger) *MagicLinkHandler {
	return &MagicLinkHandler{
		issuer: issuer,
		mailer: m,
		logger: logger.With().Str("component", "magic-link-handler").Logger(),
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// Request issues a link for the posted email and hands it to the mailer.
func (h *MagicLinkHandler) Request(c *gin.Context) {
	var req magicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleBindError(c, err)
		return
	}

	link, err := h.issuer.Issue(req.Email)
	if err != nil {
		metrics.RecordMagicLink("issue", "invalid")
		responses.HandleError(c, err)
		return
	}

	if err := h.mailer.Send(c.Request.Context(), link); err != nil {
		metrics.RecordMagicLink("issue", "delivery_failed")
		h.logger.Error().Err(err).Msg("failed to deliver magic link")
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.Wrap(apperrors.KindDelivery, "Failed to send magic link", err)
		}
		responses.HandleError(c, err)
		return
	}
	metrics.RecordMagicLink("issue", "ok")

	responses.OK(c, gin.H{"message": "Magic link has been sent. Check your email."})
}

// Verify checks the token query parameter. Expired and invalid tokens are
// reported in the body so the client can offer a new link.
func (h *MagicLinkHandler) Verify(c *gin.Context) {
	token, ok := c.GetQuery("token")
	if !ok {
		responses.HandleError(c, apperrors.Validation("token", "token is required"))
		return
	}

	email, err := h.issuer.Verify(token)
	switch {
	case err == nil:
		metrics.RecordMagicLink("verify", "ok")
		responses.OK(c, gin.H{"email": email})
	case errors.Is(err, magiclink.ErrExpired):
		metrics.RecordMagicLink("verify", "expired")
		responses.OK(c, gin.H{"error": magiclink.ErrExpired.Message})
	default:
		metrics.RecordMagicLink("verify", "invalid")
		h.logger.Debug().Err(err).Msg("rejected magic link token")
		responses.OK(c, gin.H{"error": magiclink.ErrInvalid.Message})
	}
}
