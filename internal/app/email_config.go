package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/accountd/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// MailSettings converts EmailConfig into provider selection for mail.New.
func (c EmailConfig) MailSettings() mail.Settings {
	return mail.Settings{
		Provider: strings.ToLower(strings.TrimSpace(c.Provider)),
		From:     c.From,
		SMTP:     c.SMTPSettings(),
		SendGrid: mail.SendGridSettings{
			APIKey: c.SendGrid.APIKey,
			From:   c.From,
		},
		Mailgun: mail.MailgunSettings{
			Domain:  c.Mailgun.Domain,
			APIKey:  c.Mailgun.APIKey,
			APIBase: c.Mailgun.APIBase,
			From:    c.From,
		},
		Retry: mail.RetryPolicy{
			Attempts:  c.Retry.Attempts,
			BaseDelay: c.Retry.BaseDelay,
		},
	}
}

// NewMailer builds the configured mailer. The log provider only prints messages and is
// refused in production.
func (c Config) NewMailer() (mail.Mailer, error) {
	settings := c.Email.MailSettings()
	if settings.Provider == mail.ProviderLog && c.Server.IsProduction() {
		return nil, fmt.Errorf("email: provider %q is not allowed in production", mail.ProviderLog)
	}
	return mail.New(settings)
}
