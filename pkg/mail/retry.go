package mail

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds delivery attempts made by WithRetry.
type RetryPolicy struct {
	Attempts   uint64
	BaseDelay  time.Duration
	PerAttempt time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts == 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	p.PerAttempt = defaultTimeout(p.PerAttempt)
	return p
}

type retryingMailer struct {
	next   Mailer
	policy RetryPolicy
}

// WithRetry retries transient delivery failures with exponential backoff.
// Errors marked Permanent are returned immediately.
func WithRetry(next Mailer, policy RetryPolicy) Mailer {
	return &retryingMailer{next: next, policy: policy.normalized()}
}

func (m *retryingMailer) Send(ctx context.Context, msg Message) error {
	backoff := retry.WithMaxRetries(m.policy.Attempts-1, retry.NewExponential(m.policy.BaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, m.policy.PerAttempt)
		defer cancel()

		err := m.next.Send(attemptCtx, msg)
		if err == nil || IsPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}
