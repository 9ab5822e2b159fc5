package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/store"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
)

type accountFixture struct {
	svc    *AccountService
	store  store.Store
	tokens *auth.TokenService
	mailer *recordingMailer
	clock  *clock
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	c := newClock()
	st := newTestStore(t)
	tokens := newTestTokens(t, c)
	mailer := &recordingMailer{}

	svc, err := NewAccountService(st, tokens, mailer, AccountConfig{From: "no-reply@example.com"})
	require.NoError(t, err)

	return &accountFixture{svc: svc, store: st, tokens: tokens, mailer: mailer, clock: c}
}

func (f *accountFixture) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	result, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return result
}

func resetTokenFrom(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, ResetPathPrefix)
	require.NotEqual(t, -1, idx, "expected reset link in %q", body)
	return strings.TrimSpace(body[idx+len(ResetPathPrefix):])
}

func TestNewAccountServiceRequiresDependencies(t *testing.T) {
	_, err := NewAccountService(nil, nil, nil, AccountConfig{})
	require.Error(t, err)
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	f := newAccountFixture(t)

	result := f.register(t, " A@X.com ", "pw1")
	require.Equal(t, "a@x.com", result.User.Email)
	require.NotEqual(t, "pw1", result.User.Password)
	require.NotEmpty(t, result.Token.Value)
	require.Equal(t, "user", result.User.Role)

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotEqual(t, "pw1", stored.Password)
	require.True(t, strings.HasPrefix(stored.Password, "$2"))

	claims, err := f.tokens.ValidateSessionToken(result.Token.Value)
	require.NoError(t, err)
	require.Equal(t, stored.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw", Role: "admin"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: strings.Repeat("p", 73)})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	f.register(t, "a@x.com", "pw1")
	_, err = f.svc.Register(ctx, RegisterInput{Email: "A@x.com", Password: "pw2"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, "Email is already registered", apperrors.FromError(err).Message)
}

func TestRegisterMerchantRole(t *testing.T) {
	f := newAccountFixture(t)

	result, err := f.svc.Register(context.Background(), RegisterInput{Email: "m@x.com", Password: "pw", Role: "Merchant", Phone: "0801"})
	require.NoError(t, err)
	require.Equal(t, "merchant", result.User.Role)
	require.Equal(t, "0801", result.User.Phone)

	claims, err := f.tokens.ValidateSessionToken(result.Token.Value)
	require.NoError(t, err)
	require.Equal(t, "merchant", claims.Role)
}

func TestLoginScenario(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "pw1")

	_, err := f.svc.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	result, err := f.svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token.Value)
	require.True(t, result.Token.ExpiresAt.Equal(f.clock.now().Add(time.Hour)))
}

func TestLoginDoesNotRevealWhichHalfFailed(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "pw1")

	_, unknownErr := f.svc.Login(ctx, "nobody@x.com", "pw1")
	_, wrongErr := f.svc.Login(ctx, "a@x.com", "wrong")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	require.Equal(t, apperrors.KindOf(unknownErr), apperrors.KindOf(wrongErr))
	require.Equal(t, unknownErr.Error(), wrongErr.Error())
	require.Equal(t, apperrors.FromError(unknownErr).StatusCode, apperrors.FromError(wrongErr).StatusCode)
}

func TestDummyHashFailurePanics(t *testing.T) {
	failing := func(string) (string, error) { return "", errors.New("entropy exhausted") }
	require.PanicsWithValue(t, "accounts: hash dummy password: entropy exhausted", func() {
		mustHash(failing, "accountd-dummy-password")
	})

	require.Equal(t, "hashed", mustHash(func(string) (string, error) { return "hashed", nil }, "pw"))
	require.True(t, strings.HasPrefix(dummyPasswordHash(), "$2"))
}

func TestLoginRequiresFields(t *testing.T) {
	f := newAccountFixture(t)

	_, err := f.svc.Login(context.Background(), "", "pw")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, "Please provide an email and password", apperrors.FromError(err).Message)
}

func TestProfileAndUpdateDetails(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "pw1").User
	f.register(t, "taken@x.com", "pw1")

	profile, err := f.svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.FirstName)

	first := "Augusta"
	blank := "   "
	updated, err := f.svc.UpdateDetails(ctx, user.ID, DetailsInput{FirstName: &first, LastName: &blank})
	require.NoError(t, err)
	require.Equal(t, "Augusta", updated.FirstName)
	require.Equal(t, "Lovelace", updated.LastName, "blank values keep the stored value")
	require.Equal(t, "a@x.com", updated.Email)

	taken := "TAKEN@x.com"
	_, err = f.svc.UpdateDetails(ctx, user.ID, DetailsInput{Email: &taken})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Profile(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "pw1").User

	_, err := f.svc.ChangePassword(ctx, user.ID, "wrong", "pw2")
	require.ErrorIs(t, err, apperrors.ErrPasswordIncorrect)
	require.Equal(t, "Password is incorrect", apperrors.FromError(err).Message)

	result, err := f.svc.ChangePassword(ctx, user.ID, "pw1", "pw2")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token.Value)

	_, err = f.svc.Login(ctx, "a@x.com", "pw1")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@x.com", "pw2")
	require.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAccountFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "nobody@x.com", "http://localhost:5000")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.Equal(t, "There is no user with that email", apperrors.FromError(err).Message)
	require.Empty(t, f.mailer.sent())
}

func TestForgotPasswordKnownEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "pw1").User

	require.NoError(t, f.svc.ForgotPassword(ctx, "A@x.com", "http://localhost:5000/"))

	sent := f.mailer.sent()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"a@x.com"}, sent[0].To)
	require.Equal(t, "Password reset token", sent[0].Subject)
	require.Contains(t, sent[0].Body, "http://localhost:5000/api/v1/auth/resetpassword/")
	require.True(t, strings.HasPrefix(sent[0].Body, "You are receiving this email because you (or someone else) has requested the reset of a password."))

	cleartext := resetTokenFrom(t, sent[0].Body)
	stored, err := f.store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, auth.HashResetToken(cleartext), stored.ResetPasswordToken)
	require.NotEqual(t, cleartext, stored.ResetPasswordToken)
	require.NotNil(t, stored.ResetPasswordExpire)
	require.True(t, stored.ResetPasswordExpire.Equal(f.clock.now().Add(10*time.Minute)))
}

func TestForgotPasswordUsesPublicURL(t *testing.T) {
	f := newAccountFixture(t)
	f.svc.cfg.PublicURL = "https://accounts.example.com"
	f.register(t, "a@x.com", "pw1")

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@x.com", "http://internal:5000"))
	require.Contains(t, f.mailer.sent()[0].Body, "https://accounts.example.com/api/v1/auth/resetpassword/")
}

func TestForgotPasswordDeliveryFailureClearsToken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "pw1").User
	f.mailer.err = errors.New("smtp: connection refused")

	err := f.svc.ForgotPassword(ctx, "a@x.com", "http://localhost:5000")
	require.ErrorIs(t, err, apperrors.ErrDelivery)
	require.Equal(t, "Email could not be sent", apperrors.FromError(err).Message)

	stored, err := f.store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.ResetPasswordToken)
	require.Nil(t, stored.ResetPasswordExpire)
}

func TestForgotPasswordReportsFailedRollback(t *testing.T) {
	f := newAccountFixture(t)
	f.register(t, "a@x.com", "pw1")
	f.mailer.err = errors.New("smtp: connection refused")

	svc, err := NewAccountService(&failingUpdateStore{Store: f.store, allowed: 1}, f.tokens, f.mailer, AccountConfig{})
	require.NoError(t, err)

	err = svc.ForgotPassword(context.Background(), "a@x.com", "http://localhost")
	require.ErrorIs(t, err, apperrors.ErrDelivery)
	require.Contains(t, err.Error(), "connection refused")
	require.Contains(t, err.Error(), "database is locked")
}

func TestResetPasswordConsumesTokenOnce(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "pw1").User

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", "http://localhost"))
	cleartext := resetTokenFrom(t, f.mailer.sent()[0].Body)

	result, err := f.svc.ResetPassword(ctx, cleartext, "newpw")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token.Value)

	stored, err := f.store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.ResetPasswordToken)
	require.Nil(t, stored.ResetPasswordExpire)

	_, err = f.svc.ResetPassword(ctx, cleartext, "another")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = f.svc.Login(ctx, "a@x.com", "newpw")
	require.NoError(t, err)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", "pw1")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com", "http://localhost"))
	cleartext := resetTokenFrom(t, f.mailer.sent()[0].Body)

	f.clock.advance(11 * time.Minute)

	_, err := f.svc.ResetPassword(ctx, cleartext, "newpw")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	require.Equal(t, "Invalid token", apperrors.FromError(err).Message)

	_, err = f.svc.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err, "old password must still work")
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newAccountFixture(t)

	_, err := f.svc.ResetPassword(context.Background(), "not-a-token", "newpw")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = f.svc.ResetPassword(context.Background(), "whatever", "")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStoreFailuresSurfaceAsStoreError(t *testing.T) {
	f := newAccountFixture(t)
	user := f.register(t, "a@x.com", "pw1").User

	svc, err := NewAccountService(&failingUpdateStore{Store: f.store}, f.tokens, f.mailer, AccountConfig{})
	require.NoError(t, err)

	_, err = svc.ChangePassword(context.Background(), user.ID, "pw1", "pw2")
	require.ErrorIs(t, err, apperrors.ErrStore)
	require.Equal(t, apperrors.CodeStore, apperrors.KindOf(err))
}
