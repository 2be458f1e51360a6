package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Message is a single e-mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message through one e-mail provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// SenderConfig carries the credentials of every supported provider; only the
// fields of the selected provider are read.
type SenderConfig struct {
	Provider      string
	From          string
	FromName      string
	SendGridKey   string
	MailgunDomain string
	MailgunKey    string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
}

// NewSender selects a Sender by provider name: sendgrid, mailgun, smtp or log.
func NewSender(cfg SenderConfig, logger *slog.Logger) (Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "log":
		return NewLogSender(logger), nil
	case "sendgrid":
		if cfg.SendGridKey == "" || cfg.From == "" {
			return nil, errors.New("notify: sendgrid requires SENDGRID_API_KEY and EMAIL_FROM")
		}
		return NewSendGridSender(cfg.SendGridKey, cfg.From, cfg.FromName), nil
	case "mailgun":
		if cfg.MailgunKey == "" || cfg.MailgunDomain == "" || cfg.From == "" {
			return nil, errors.New("notify: mailgun requires MAILGUN_API_KEY, MAILGUN_DOMAIN and EMAIL_FROM")
		}
		return NewMailgunSender(cfg.MailgunDomain, cfg.MailgunKey, formatAddress(cfg.FromName, cfg.From)), nil
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPPort == "" || cfg.From == "" {
			return nil, errors.New("notify: smtp requires SMTP_HOST, SMTP_PORT and EMAIL_FROM")
		}
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			FromName: cfg.FromName,
		}), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", cfg.Provider)
	}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, log provider", "to", msg.To, "subject", msg.Subject)
	return nil
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
