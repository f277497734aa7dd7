// Package mailer delivers outbound mail.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// SMTPConfig locates the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPSender builds a client for cfg.  STARTTLS is used when the relay
// offers it; credentials are sent only when a username is configured.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{cfg: cfg, client: client}, nil
}

// Send delivers msg as a plain-text email.
func (s *SMTPSender) Send(ctx context.Context, msg model.MailMessage) error {
	m, err := buildMessage(s.cfg.From, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from string, msg model.MailMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender records messages in the log instead of sending them.  It is
// used when no SMTP relay is configured.  Bodies are not logged because
// they carry reset links.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg model.MailMessage) error {
	s.Logger.InfoContext(ctx, "mail suppressed: no SMTP relay configured",
		"kind", msg.Kind, "subject", msg.Subject, "body_bytes", len(msg.Body))
	return nil
}
