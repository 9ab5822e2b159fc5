package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/database/testutil"
	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

type stubResolver struct {
	identity identity.Identity
	err      error
	calls    int
}

func (r *stubResolver) Resolve(_ context.Context, _ string) (identity.Identity, error) {
	r.calls++
	return r.identity, r.err
}

type recordingSender struct {
	codes []string
	err   error
}

func (s *recordingSender) SendCode(_ context.Context, _ *models.User, _ identity.Identity, code string) error {
	s.codes = append(s.codes, code)
	return s.err
}

// failingUpdateStore fails every Update after the first allowed ones.
type failingUpdateStore struct {
	store.Store
	allowed int
}

func (s *failingUpdateStore) Update(ctx context.Context, id string, fields store.Fields) (*models.User, error) {
	if s.allowed <= 0 {
		return nil, &store.Error{Op: "update", Err: errors.New("database is locked")}
	}
	s.allowed--
	return s.Store.Update(ctx, id, fields)
}

type clock struct {
	current time.Time
}

func newClock() *clock {
	return &clock{current: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.current }

func (c *clock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	st, err := store.NewGormStore(db)
	require.NoError(t, err)
	return st
}

func newTestTokens(t *testing.T, c *clock) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   "test-secret",
		Issuer:   "accountd",
		TTL:      time.Hour,
		ResetTTL: 10 * time.Minute,
		Clock:    c.now,
	})
	require.NoError(t, err)
	return tokens
}
