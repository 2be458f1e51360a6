package notify

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSender delivers through the Mailgun messages API.
type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

// NewMailgunSender constructs a MailgunSender.
func NewMailgunSender(domain, key, from string) *MailgunSender {
	return &MailgunSender{mg: mailgun.NewMailgun(domain, key), from: from}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	message := s.mg.NewMessage(s.from, msg.Subject, msg.Text)
	message.SetHtml(msg.HTML)
	if err := message.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("%w: mailgun recipient: %v", ErrPermanent, err)
	}
	if _, _, err := s.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun: %w", err)
	}
	return nil
}
