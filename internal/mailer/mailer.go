// Package mailer delivers magic links to users.
package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/pkg/magiclink"
)

// Mailer sends a magic link to its recipient.
type Mailer interface {
	Send(ctx context.Context, link magiclink.Link) error
}

// LogMailer writes the link to the log instead of sending it. It is meant for
// local development.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer returns a LogMailer writing to logger.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "log-mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, link magiclink.Link) error {
	m.logger.Info().
		Str("email", link.Email).
		Str("link", link.URL).
		Time("expires_at", link.ExpiresAt).
		Msg("magic login link")
	return nil
}
