package mail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/accountd/pkg/logger"
)

type logMailer struct {
	log *zap.Logger
}

// NewLogMailer returns a Mailer that writes messages to the log instead of delivering them.
// Intended for local development only.
func NewLogMailer(log *zap.Logger) Mailer {
	if log == nil {
		log = logger.WithModule("mail")
	}
	return &logMailer{log: log}
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	env, err := prepare("log", msg, "no-reply@localhost")
	if err != nil {
		return err
	}
	m.log.Info("outbound email",
		zap.String("from", env.from),
		zap.String("to", strings.Join(env.recipients, ", ")),
		zap.String("subject", env.subject),
		zap.String("body", env.body),
	)
	return nil
}
