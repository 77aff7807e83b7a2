package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unsungfields/gateway/pkg/apperrors"
	"github.com/unsungfields/gateway/pkg/magiclink"
)

// DefaultSMTPTimeout bounds one delivery, from dial to QUIT.
const DefaultSMTPTimeout = 30 * time.Second

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout defaults to DefaultSMTPTimeout.
	Timeout time.Duration
}

// SMTPMailer sends magic links as plain text mail. STARTTLS is used when the
// server offers it.
type SMTPMailer struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	now  func() time.Time
}

// NewSMTPMailer returns an SMTPMailer. Authentication is only used when a
// username is configured.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	var d net.Dialer
	return &SMTPMailer{cfg: cfg, dial: d.DialContext, now: time.Now}
}

// Send delivers link. The whole SMTP conversation is bounded by ctx and the
// configured timeout.
func (m *SMTPMailer) Send(ctx context.Context, link magiclink.Link) error {
	if strings.ContainsAny(link.Email, "\r\n") {
		return apperrors.Validation("email", "Email contains invalid characters")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if err := m.deliver(ctx, link); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return apperrors.Wrap(apperrors.KindDelivery, "send magic link", err)
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, link magiclink.Link) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	// Closing the connection unblocks any pending read or write once ctx is
	// done, so a silent server cannot outlive the timeout.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return err
		}
	}
	if m.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(link.Email); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(m.message(link)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) message(link magiclink.Link) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", link.Email)
	fmt.Fprintf(&b, "Subject: Your Unsungfields AI login link\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), m.cfg.Host)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Click the link below to sign in:\r\n\r\n")
	b.WriteString(link.URL + "\r\n\r\n")
	fmt.Fprintf(&b, "The link expires at %s.\r\n", link.ExpiresAt.UTC().Format(time.RFC1123))
	return b.Bytes()
}
