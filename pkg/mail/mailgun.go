package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSettings configure the Mailgun mailer. APIBase selects a region, e.g. mailgun.APIBaseEU.
type MailgunSettings struct {
	Domain  string
	APIKey  string
	APIBase string
	From    string
}

type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type mailgunMailer struct {
	cfg    MailgunSettings
	client mailgunClient
}

// NewMailgunMailer returns a Mailer backed by the Mailgun API.
func NewMailgunMailer(cfg MailgunSettings) (Mailer, error) {
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, errors.New("mailgun: domain is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("mailgun: %w", errNoCredentials)
	}

	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		mg.SetAPIBase(base)
	}

	return &mailgunMailer{cfg: cfg, client: mg}, nil
}

func (m *mailgunMailer) Send(ctx context.Context, msg Message) error {
	env, err := prepare("mailgun", msg, m.cfg.From)
	if err != nil {
		return err
	}

	message := m.client.NewMessage(env.from, env.subject, env.body, env.recipients...)
	if _, _, err := m.client.Send(ctx, message); err != nil {
		if status := mailgun.GetStatusFromErr(err); status >= 400 && status < 500 && status != 429 {
			return Permanent(fmt.Errorf("mailgun: send: %w", err))
		}
		return fmt.Errorf("mailgun: send: %w", err)
	}
	return nil
}
