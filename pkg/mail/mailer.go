package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Providers understood by New.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderMailgun  = "mailgun"
	ProviderLog      = "log"
)

// Settings selects and configures a delivery provider.
type Settings struct {
	Provider string
	From     string
	SMTP     SMTPSettings
	SendGrid SendGridSettings
	Mailgun  MailgunSettings
	Retry    RetryPolicy
}

// New builds the mailer named by Settings.Provider, wrapped with the retry policy.
func New(cfg Settings) (Mailer, error) {
	var (
		mailer Mailer
		err    error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderSMTP:
		smtpCfg := cfg.SMTP
		if smtpCfg.From == "" {
			smtpCfg.From = cfg.From
		}
		mailer, err = NewSMTPMailer(smtpCfg)
	case ProviderSendGrid:
		sgCfg := cfg.SendGrid
		if sgCfg.From == "" {
			sgCfg.From = cfg.From
		}
		mailer, err = NewSendGridMailer(sgCfg)
	case ProviderMailgun:
		mgCfg := cfg.Mailgun
		if mgCfg.From == "" {
			mgCfg.From = cfg.From
		}
		mailer, err = NewMailgunMailer(mgCfg)
	case ProviderLog:
		mailer = NewLogMailer(nil)
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(mailer, cfg.Retry), nil
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent or is ErrSMTPDisabled.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm) || errors.Is(err, ErrSMTPDisabled)
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
