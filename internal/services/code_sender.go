package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/pkg/mail"
)

const codeSubject = "BVN verification code"

// CodeSender delivers a verification code to the user out of band.
type CodeSender interface {
	SendCode(ctx context.Context, user *models.User, holder identity.Identity, code string) error
}

// MailCodeSender emails verification codes to the account address.
type MailCodeSender struct {
	mailer mail.Mailer
	from   string
	ttl    time.Duration
}

// NewMailCodeSender constructs a CodeSender backed by mailer.
func NewMailCodeSender(mailer mail.Mailer, from string, ttl time.Duration) (*MailCodeSender, error) {
	if mailer == nil {
		return nil, errors.New("code sender: mailer is required")
	}
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &MailCodeSender{mailer: mailer, from: from, ttl: ttl}, nil
}

func (s *MailCodeSender) SendCode(ctx context.Context, user *models.User, holder identity.Identity, code string) error {
	return s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      []string{user.Email},
		Subject: codeSubject,
		Body:    codeMessage(holder, code, s.ttl),
	})
}

func codeMessage(holder identity.Identity, code string, ttl time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your BVN verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
	if mobile := maskMobile(holder.Mobile); mobile != "" {
		fmt.Fprintf(&b, "\n\nThe BVN you submitted is registered to the mobile number %s.", mobile)
	}
	b.WriteString("\n\nIf you did not request this code, please ignore this email.")
	return b.String()
}

// maskMobile keeps the last four digits only.
func maskMobile(mobile string) string {
	mobile = strings.TrimSpace(mobile)
	if len(mobile) <= 4 {
		return mobile
	}
	return strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-4:]
}
