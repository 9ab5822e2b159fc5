package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/accountd/internal/app"
	"github.com/charlesng35/accountd/internal/handlers/testutil"
	"github.com/charlesng35/accountd/internal/middleware"
	"github.com/charlesng35/accountd/pkg/mail"
)

func TestRegisterLoginAndProfile(t *testing.T) {
	env := testutil.NewEnv(t)

	session := env.Register("Ada@Example.com", "s3cret-pass")
	require.Equal(t, "ada@example.com", session.User.Email)
	require.Equal(t, "user", session.User.Role)
	require.False(t, session.User.IsVerified)

	w := env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "s3cret-pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login testutil.SessionPayload
	env.Decode(w, &login)
	require.Equal(t, session.User.ID, login.User.ID)

	cookie := findCookie(w.Result().Cookies(), middleware.SessionCookie)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.False(t, cookie.Secure)
	require.Equal(t, 24*60*60, cookie.MaxAge)

	w = env.Request(http.MethodGet, "/api/v1/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me testutil.UserPayload
	env.Decode(w, &me)
	require.Equal(t, session.User.ID, me.ID)
	require.NotContains(t, w.Body.String(), "password")
}

func TestRegisterRejectsDuplicateEmailAndBadRole(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("dup@example.com", "pw-123456")

	w := env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "DUP@example.com",
		"password": "another",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", env.Decode(w, nil).Error.Code)

	w = env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "admin@example.com",
		"password": "pw",
		"role":     "admin",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterMerchant(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "shop@example.com",
		"password": "pw-123456",
		"role":     "merchant",
		"phone":    "08030000000",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session testutil.SessionPayload
	env.Decode(w, &session)
	require.Equal(t, "merchant", session.User.Role)
	require.Equal(t, "08030000000", session.User.Phone)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("known@example.com", "right-password")

	unknown := env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "right-password",
	}, "")
	wrong := env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "known@example.com",
		"password": "wrong-password",
	}, "")

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, unknown.Code, wrong.Code)
	require.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	require.Equal(t, "Invalid credentials", env.Decode(wrong, nil).Message)
}

func TestLoginRequiresEmailAndPassword(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@example.com"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, env.Decode(w, nil).Success)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("bye@example.com", "pw-123456")

	w := env.Request(http.MethodGet, "/api/v1/auth/logout", nil, session.Token)
	require.Equal(t, http.StatusOK, w.Code)

	cookie := findCookie(w.Result().Cookies(), middleware.SessionCookie)
	require.NotNil(t, cookie)
	require.Equal(t, "none", cookie.Value)
	require.Equal(t, 10, cookie.MaxAge)

	w = env.Request(http.MethodGet, "/api/v1/auth/logout", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateDetailsOnlyChangesWhitelistedFields(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("old@example.com", "pw-123456")

	w := env.Request(http.MethodPut, "/api/v1/auth/updatedetails", map[string]any{
		"first_name":  "Grace",
		"email":       "new@example.com",
		"role":        "merchant",
		"is_verified": true,
	}, session.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var user testutil.UserPayload
	env.Decode(w, &user)
	require.Equal(t, "Grace", user.FirstName)
	require.Equal(t, "Obi", user.LastName)
	require.Equal(t, "new@example.com", user.Email)
	require.Equal(t, "user", user.Role)
	require.False(t, user.IsVerified)
}

func TestUpdatePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("pw@example.com", "first-pass")

	w := env.Request(http.MethodPut, "/api/v1/auth/updatepassword", map[string]string{
		"current_password": "not-it",
		"new_password":     "second-pass",
	}, session.Token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Password is incorrect", env.Decode(w, nil).Message)

	w = env.Request(http.MethodPut, "/api/v1/auth/updatepassword", map[string]string{
		"current_password": "first-pass",
		"new_password":     "second-pass",
	}, session.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "pw@example.com",
		"password": "second-pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/v1/auth/forgotpassword", map[string]string{
		"email": "ghost@example.com",
	}, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "There is no user with that email", env.Decode(w, nil).Message)
	require.Empty(t, env.Mailer.Messages())
}

func TestForgotAndResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("reset@example.com", "old-pass")

	w := env.Request(http.MethodPost, "/api/v1/auth/forgotpassword", map[string]string{
		"email": "reset@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data string
	env.Decode(w, &data)
	require.Equal(t, "Email sent", data)

	messages := env.Mailer.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "Password reset token", messages[0].Subject)
	require.Equal(t, []string{"reset@example.com"}, messages[0].To)
	require.Contains(t, messages[0].Body, "http://example.com/api/v1/auth/resetpassword/")

	token := env.LastResetToken()

	w = env.Request(http.MethodPut, "/api/v1/auth/resetpassword/"+token, map[string]string{
		"password": "new-pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Tokens are single use.
	w = env.Request(http.MethodPut, "/api/v1/auth/resetpassword/"+token, map[string]string{
		"password": "third-pass",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "TOKEN_ERROR", env.Decode(w, nil).Error.Code)

	w = env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "new-pass",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestResetTokenExpires(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("late@example.com", "old-pass")

	w := env.Request(http.MethodPost, "/api/v1/auth/forgotpassword", map[string]string{
		"email": "late@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := env.LastResetToken()

	env.Clock.Advance(11 * time.Minute)

	w = env.Request(http.MethodPut, "/api/v1/auth/resetpassword/"+token, map[string]string{
		"password": "new-pass",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid token", env.Decode(w, nil).Message)
}

func TestForgotPasswordDeliveryFailureWithdrawsToken(t *testing.T) {
	env := testutil.NewEnv(t)
	session := env.Register("undeliverable@example.com", "old-pass")
	env.Mailer.Err = mail.Permanent(errors.New("mailbox unavailable"))

	w := env.Request(http.MethodPost, "/api/v1/auth/forgotpassword", map[string]string{
		"email": "undeliverable@example.com",
	}, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Email could not be sent", env.Decode(w, nil).Message)
	require.NotContains(t, w.Body.String(), "mailbox unavailable")

	user, err := env.Store.FindByID(t.Context(), session.User.ID)
	require.NoError(t, err)
	require.False(t, user.HasResetToken())
}

func TestForgotPasswordUsesPublicURL(t *testing.T) {
	env := testutil.NewEnv(t, func(cfg *app.Config) {
		cfg.Server.PublicURL = "https://accounts.example.com/"
	})
	env.Register("public@example.com", "old-pass")

	w := env.Request(http.MethodPost, "/api/v1/auth/forgotpassword", map[string]string{
		"email": "public@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := env.Mailer.Messages()[0].Body
	require.True(t, strings.Contains(body, "https://accounts.example.com/api/v1/auth/resetpassword/"), body)
}

func forgotPasswordFrom(env *testutil.Env, host, proto, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgotpassword",
		strings.NewReader(`{"email":"`+email+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Host = host
	if proto != "" {
		req.Header.Set("X-Forwarded-Proto", proto)
	}
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func TestForgotPasswordIgnoresForgedHostWithPublicURL(t *testing.T) {
	env := testutil.NewEnv(t, func(cfg *app.Config) {
		cfg.Server.PublicURL = "https://accounts.example.com"
	})
	env.Register("victim@example.com", "old-pass")

	w := forgotPasswordFrom(env, "attacker.example", "javascript", "victim@example.com")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := env.Mailer.Messages()[0].Body
	require.Contains(t, body, "https://accounts.example.com/api/v1/auth/resetpassword/")
	require.NotContains(t, body, "attacker.example")
	require.NotContains(t, body, "javascript:")
}

func TestForgotPasswordRejectsForgedScheme(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("dev@example.com", "old-pass")

	w := forgotPasswordFrom(env, "localhost:5000", "javascript", "dev@example.com")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := env.Mailer.Messages()[0].Body
	require.Contains(t, body, "http://localhost:5000/api/v1/auth/resetpassword/")
	require.NotContains(t, body, "javascript:")
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
