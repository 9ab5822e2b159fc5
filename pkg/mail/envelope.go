package mail

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// envelope is a validated message ready for a provider.
type envelope struct {
	from       string
	recipients []string
	subject    string
	body       string
}

// prepare validates msg for the named provider, falling back to defaultFrom.
func prepare(provider string, msg Message, defaultFrom string) (envelope, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return envelope{}, Permanent(fmt.Errorf("%s: at least one recipient is required", provider))
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = strings.TrimSpace(defaultFrom)
	}
	if from == "" {
		return envelope{}, Permanent(fmt.Errorf("%s: sender address is required", provider))
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return envelope{}, Permanent(fmt.Errorf("%s: invalid from address: %w", provider, err))
	}

	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return envelope{}, Permanent(fmt.Errorf("%s: invalid recipient address %q: %w", provider, rcpt, err))
		}
	}

	return envelope{
		from:       from,
		recipients: recipients,
		subject:    escapeHeader(msg.Subject),
		body:       msg.Body,
	}, nil
}

var errNoCredentials = errors.New("api key is required")

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
