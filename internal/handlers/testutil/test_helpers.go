package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/accountd/internal/api"
	"github.com/charlesng35/accountd/internal/app"
	iauth "github.com/charlesng35/accountd/internal/auth"
	sharedtestutil "github.com/charlesng35/accountd/internal/database/testutil"
	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/mail"
	"github.com/charlesng35/accountd/pkg/response"
)

// VerificationCode is the code every BVN request issues inside an Env.
const VerificationCode = "424242"

// Clock is a manually advanced time source shared by the services of an Env.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Mailer records outbound messages and optionally fails delivery.
type Mailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the delivered messages.
func (m *Mailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// Resolver answers BVN lookups with a fixed identity or error.
type Resolver struct {
	Identity identity.Identity
	Err      error
	Calls    int
}

func (r *Resolver) Resolve(_ context.Context, _ string) (identity.Identity, error) {
	r.Calls++
	return r.Identity, r.Err
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	Store    *store.GormStore
	Router   *gin.Engine
	Tokens   *iauth.TokenService
	Clock    *Clock
	Mailer   *Mailer
	Resolver *Resolver
	Config   *app.Config
}

// EnvOption customises the configuration before the router is built.
type EnvOption func(*app.Config)

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t)
	st, err := store.NewGormStore(db)
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{Env: "test"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				Expire: time.Hour,
			},
			Cookie: app.CookieSettings{ExpireDays: 1},
			Reset:  app.ResetSettings{TTL: 10 * time.Minute},
			BVN:    app.BVNSettings{CodeTTL: 10 * time.Minute, CodeLength: len(VerificationCode)},
		},
		Email: app.EmailConfig{From: "Accounts <no-reply@example.com>"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clock := &Clock{current: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	tokenCfg := cfg.Auth.TokenServiceConfig()
	tokenCfg.Clock = clock.Now
	tokens, err := iauth.NewTokenService(tokenCfg)
	require.NoError(t, err)

	mailer := &Mailer{}
	resolver := &Resolver{Identity: identity.Identity{FirstName: "Ada", LastName: "Obi", Mobile: "08031234567"}}

	accounts, err := services.NewAccountService(st, tokens, mailer, cfg.AccountServiceConfig())
	require.NoError(t, err)

	verificationCfg := cfg.Auth.VerificationServiceConfig()
	sender, err := services.NewMailCodeSender(mailer, cfg.Email.From, verificationCfg.CodeTTL)
	require.NoError(t, err)

	verification, err := services.NewVerificationService(st, resolver, sender, verificationCfg,
		services.WithVerificationClock(clock.Now),
		services.WithCodeGenerator(func() (string, error) { return VerificationCode, nil }),
	)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:       cfg,
		Tokens:       tokens,
		Accounts:     accounts,
		Verification: verification,
		Health:       st,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		Store:    st,
		Router:   router,
		Tokens:   tokens,
		Clock:    clock,
		Mailer:   mailer,
		Resolver: resolver,
		Config:   cfg,
	}
}

// Envelope mirrors response.Response with the data left undecoded.
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Error   *response.ErrorInfo `json:"error"`
}

// SessionPayload is the data returned by endpoints that start a session.
type SessionPayload struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserPayload `json:"user"`
}

// UserPayload captures the user fields exposed by the API.
type UserPayload struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Phone      string `json:"phone"`
	IsVerified bool   `json:"is_verified"`
}

// Request issues an HTTP request against the router. A non-empty token is sent as a bearer token.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Decode parses the envelope of w, decoding data into dest when dest is non-nil.
func (e *Env) Decode(w *httptest.ResponseRecorder, dest any) Envelope {
	e.T.Helper()

	var env Envelope
	require.NoError(e.T, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if dest != nil {
		require.NotEmpty(e.T, env.Data, w.Body.String())
		require.NoError(e.T, json.Unmarshal(env.Data, dest))
	}
	return env
}

// Register creates an account through the API and returns its session.
func (e *Env) Register(email, password string) SessionPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"first_name": "Ada",
		"last_name":  "Obi",
		"email":      email,
		"password":   password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var session SessionPayload
	e.Decode(w, &session)
	require.NotEmpty(e.T, session.Token)
	return session
}

// LastResetToken extracts the cleartext reset token from the most recent email.
func (e *Env) LastResetToken() string {
	e.T.Helper()

	messages := e.Mailer.Messages()
	require.NotEmpty(e.T, messages)
	body := messages[len(messages)-1].Body

	idx := strings.Index(body, services.ResetPathPrefix)
	require.GreaterOrEqual(e.T, idx, 0, body)
	token := body[idx+len(services.ResetPathPrefix):]
	if end := strings.IndexAny(token, " \r\n"); end >= 0 {
		token = token[:end]
	}
	return token
}
