package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/crypto"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/mail"
	"github.com/charlesng35/accountd/pkg/metrics"
)

const (
	// ResetPathPrefix is the route that consumes reset tokens.
	ResetPathPrefix = "/api/v1/auth/resetpassword/"

	resetSubject = "Password reset token"

	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
)

// AccountConfig carries the settings of the password lifecycle.
type AccountConfig struct {
	// From is the sender address of reset emails. Empty uses the mailer default.
	From string
	// PublicURL overrides the base URL embedded in reset links.
	PublicURL string
}

// RegisterInput describes the fields accepted at registration.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
	Phone     string
}

// DetailsInput lists the profile fields a user may change. Nil keeps the stored value.
type DetailsInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// AuthResult is returned by operations that start a session.
type AuthResult struct {
	User  *models.User
	Token auth.SessionToken
}

// AccountService manages registration, login and the password reset handshake.
type AccountService struct {
	store  store.Store
	tokens *auth.TokenService
	mailer mail.Mailer
	cfg    AccountConfig
	log    *zap.Logger
}

// NewAccountService constructs an AccountService with the provided dependencies.
func NewAccountService(st store.Store, tokens *auth.TokenService, mailer mail.Mailer, cfg AccountConfig) (*AccountService, error) {
	if st == nil {
		return nil, errors.New("account service: store is required")
	}
	if tokens == nil {
		return nil, errors.New("account service: token service is required")
	}
	if mailer == nil {
		return nil, errors.New("account service: mailer is required")
	}
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")

	return &AccountService{
		store:  st,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		log:    logger.WithModule("accounts"),
	}, nil
}

// Register creates a user and starts a session.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewValidation("Please provide an email and password")
	}
	if err := checkPasswordLength(input.Password); err != nil {
		return nil, err
	}

	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewValidation(fmt.Sprintf("Role %q is not allowed", input.Role))
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user := &models.User{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     email,
		Password:  hashed,
		Role:      role,
		Phone:     strings.TrimSpace(input.Phone),
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperrors.NewValidation("Email is already registered").WithInternal(err)
		}
		return nil, storeFailure(err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return s.startSession(user)
}

// Login verifies credentials. Unknown email and wrong password fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	ctx = ensureContext(ctx)
	defer func() { metrics.AuthAttempts.WithLabelValues(metrics.Result(err)).Inc() }()

	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidation("Please provide an email and password")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			crypto.VerifyPassword(dummyPasswordHash(), password)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, storeFailure(err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.startSession(user)
}

// Profile returns the user behind a session.
func (s *AccountService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.FindByID(ensureContext(ctx), userID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return user, nil
}

// UpdateDetails changes whitelisted profile fields.
func (s *AccountService) UpdateDetails(ctx context.Context, userID string, input DetailsInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	fields := store.Fields{
		FirstName: trimmedNonEmpty(input.FirstName),
		LastName:  trimmedNonEmpty(input.LastName),
		Phone:     trimmedNonEmpty(input.Phone),
	}
	if input.Email != nil {
		email := models.NormalizeEmail(*input.Email)
		if email != "" {
			fields.Email = &email
		}
	}

	user, err := s.store.Update(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperrors.NewValidation("Email is already registered").WithInternal(err)
		}
		return nil, lookupFailure(err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	if current == "" || next == "" {
		return nil, apperrors.NewValidation("Please provide the current and new password")
	}
	if err := checkPasswordLength(next); err != nil {
		return nil, err
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	if !crypto.VerifyPassword(user.Password, current) {
		return nil, apperrors.ErrPasswordIncorrect
	}

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user, err = s.store.Update(ctx, user.ID, store.Fields{Password: &hashed})
	if err != nil {
		return nil, lookupFailure(err)
	}

	return s.startSession(user)
}

// ForgotPassword issues a reset token and mails its link. If the mail cannot be
// delivered the token is withdrawn again.
func (s *AccountService) ForgotPassword(ctx context.Context, email, baseURL string) (err error) {
	ctx = ensureContext(ctx)
	defer func() { metrics.PasswordResets.WithLabelValues("request", metrics.Result(err)).Inc() }()

	email = models.NormalizeEmail(email)
	if email == "" {
		return apperrors.NewValidation("Please provide an email")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		return storeFailure(err)
	}

	reset, err := s.tokens.IssueResetToken()
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}

	if _, err := s.store.Update(ctx, user.ID, store.Fields{ResetToken: store.SetToken(reset.Hash, reset.ExpiresAt)}); err != nil {
		return lookupFailure(err)
	}

	msg := mail.Message{
		From:    s.cfg.From,
		To:      []string{user.Email},
		Subject: resetSubject,
		Body:    resetMessage(s.resetURL(baseURL, reset.Cleartext)),
	}
	sendErr := s.mailer.Send(ctx, msg)
	if sendErr == nil {
		s.log.Info("password reset requested", zap.String("user_id", user.ID))
		return nil
	}

	// The request context may already be done; the rollback must still run.
	rollbackCtx := context.WithoutCancel(ctx)
	if _, rollbackErr := s.store.Update(rollbackCtx, user.ID, store.Fields{ResetToken: store.ClearToken()}); rollbackErr != nil {
		s.log.Error("failed to withdraw undeliverable reset token",
			zap.String("user_id", user.ID),
			zap.Error(rollbackErr),
		)
		sendErr = multierr.Append(sendErr, rollbackErr)
	}

	s.log.Warn("reset email could not be sent",
		zap.String("user_id", user.ID),
		logger.MaskedEmail("to", user.Email),
		zap.Error(sendErr),
	)
	return apperrors.ErrDelivery.WithInternal(sendErr)
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AccountService) ResetPassword(ctx context.Context, cleartext, password string) (result *AuthResult, err error) {
	ctx = ensureContext(ctx)
	defer func() { metrics.PasswordResets.WithLabelValues("consume", metrics.Result(err)).Inc() }()

	if password == "" {
		return nil, apperrors.NewValidation("Please provide a password")
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	cleartext = strings.TrimSpace(cleartext)
	if cleartext == "" {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.store.FindByResetToken(ctx, auth.HashResetToken(cleartext))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, storeFailure(err)
	}
	if user.ResetPasswordExpire == nil ||
		!auth.ValidateResetToken(cleartext, user.ResetPasswordToken, *user.ResetPasswordExpire, s.tokens.Now()) {
		return nil, apperrors.ErrInvalidToken
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user, err = s.store.Update(ctx, user.ID, store.Fields{
		Password:   &hashed,
		ResetToken: store.ClearToken(),
	})
	if err != nil {
		return nil, lookupFailure(err)
	}

	s.log.Info("password reset completed", zap.String("user_id", user.ID))
	return s.startSession(user)
}

func (s *AccountService) startSession(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.IssueSessionToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) resetURL(baseURL, cleartext string) string {
	base := s.cfg.PublicURL
	if base == "" {
		base = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
	return base + ResetPathPrefix + cleartext
}

func resetMessage(link string) string {
	return "You are receiving this email because you (or someone else) has requested the reset of a password. " +
		"Please make a PUT request to: \n\n " + link
}

func checkPasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return apperrors.NewValidation(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func trimmedNonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		dummyHash = mustHash(crypto.HashPassword, "accountd-dummy-password")
	})
	return dummyHash
}

// mustHash panics when hash fails. Without a valid dummy hash, logins for unknown emails
// would skip the bcrypt work and answer measurably faster than wrong passwords.
func mustHash(hash func(string) (string, error), password string) string {
	hashed, err := hash(password)
	if err != nil {
		panic(fmt.Sprintf("accounts: hash dummy password: %v", err))
	}
	return hashed
}
