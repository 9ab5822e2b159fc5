package mail

import (
	"context"
	"fmt"
	netmail "net/mail"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSettings configure the SendGrid v3 mail API mailer.
type SendGridSettings struct {
	APIKey string
	From   string
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type sendGridMailer struct {
	cfg    SendGridSettings
	client sendGridClient
}

// NewSendGridMailer returns a Mailer backed by the SendGrid API.
func NewSendGridMailer(cfg SendGridSettings) (Mailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid: %w", errNoCredentials)
	}
	return &sendGridMailer{
		cfg:    cfg,
		client: sendgrid.NewSendClient(cfg.APIKey),
	}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	env, err := prepare("sendgrid", msg, m.cfg.From)
	if err != nil {
		return err
	}

	resp, err := m.client.SendWithContext(ctx, buildSendGridMessage(env))
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	default:
		return Permanent(fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body))
	}
}

func buildSendGridMessage(env envelope) *sgmail.SGMailV3 {
	message := sgmail.NewV3Mail()
	message.SetFrom(sendGridAddress(env.from))
	message.Subject = env.subject

	personalization := sgmail.NewPersonalization()
	for _, rcpt := range env.recipients {
		personalization.AddTos(sendGridAddress(rcpt))
	}
	message.AddPersonalizations(personalization)
	message.AddContent(sgmail.NewContent("text/plain", env.body))

	return message
}

func sendGridAddress(raw string) *sgmail.Email {
	addr, err := netmail.ParseAddress(raw)
	if err != nil {
		return sgmail.NewEmail("", raw)
	}
	return sgmail.NewEmail(addr.Name, addr.Address)
}
