package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/logger"
)

const (
	defaultResetTokenSpec = "@hourly"
	defaultJobTimeout     = time.Minute
)

// Job is a named cleanup routine run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Cleaner coordinates background maintenance tasks such as purging expired reset tokens.
type Cleaner struct {
	store   store.Store
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	timeout time.Duration
	jobs    []Job

	resetTokenSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithResetTokenSchedule overrides the cron expression for reset token cleanup.
func WithResetTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.resetTokenSchedule = spec
		}
	}
}

// WithJob registers an additional cleanup routine.
func WithJob(job Job) Option {
	return func(cleaner *Cleaner) {
		if job.Run != nil {
			cleaner.jobs = append(cleaner.jobs, job)
		}
	}
}

// WithLogger overrides the logger used to report failed runs.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner. A nil store skips reset token cleanup.
func NewCleaner(st store.Store, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:              st,
		now:                time.Now,
		timeout:            defaultJobTimeout,
		resetTokenSchedule: defaultResetTokenSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	if cleaner.store != nil {
		cleaner.jobs = append([]Job{{
			Name:     "reset_tokens",
			Schedule: cleaner.resetTokenSchedule,
			Run:      cleaner.purgeResetTokens,
		}}, cleaner.jobs...)
	}

	return cleaner
}

// Jobs returns the registered routines.
func (c *Cleaner) Jobs() []Job {
	return append([]Job(nil), c.jobs...)
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job exists.
func (c *Cleaner) Start() error {
	if len(c.jobs) == 0 {
		return nil
	}

	for _, job := range c.jobs {
		job := job
		if _, err := c.cron.AddFunc(job.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
			if err := job.Run(ctx); err != nil {
				c.log.Warn("cleanup failed", zap.String("job", job.Name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", job.Name, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every job sequentially and reports all failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, job := range c.jobs {
		if err := job.Run(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errs
}

func (c *Cleaner) purgeResetTokens(ctx context.Context) error {
	cleared, err := CleanupResetTokens(ctx, c.store, c.now())
	if err != nil {
		return err
	}
	if cleared > 0 {
		c.log.Info("expired reset tokens cleared", zap.Int64("count", cleared))
	}
	return nil
}

// CleanupResetTokens removes reset tokens that expired at or before now.
func CleanupResetTokens(ctx context.Context, st store.Store, now time.Time) (int64, error) {
	if st == nil {
		return 0, errors.New("cleanup reset tokens: store is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cleared, err := st.ClearExpiredResetTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup reset tokens: %w", err)
	}
	return cleared, nil
}
