package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/store"
	"github.com/charlesng35/accountd/pkg/crypto"
	apperrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/metrics"
)

const (
	defaultCodeTTL    = 10 * time.Minute
	defaultCodeLength = 6
	codeAlphabet      = "0123456789"
)

// VerificationState is the BVN verification state derived from a user record.
type VerificationState string

const (
	StateUnverified VerificationState = "UNVERIFIED"
	StateCodeIssued VerificationState = "CODE_ISSUED"
	StateVerified   VerificationState = "VERIFIED"
)

// StateOf derives the verification state of user.
func StateOf(user *models.User) VerificationState {
	switch {
	case user == nil:
		return StateUnverified
	case user.IsVerified:
		return StateVerified
	case user.HasBVNCode():
		return StateCodeIssued
	default:
		return StateUnverified
	}
}

// VerificationConfig carries the settings of the BVN workflow.
type VerificationConfig struct {
	CodeTTL    time.Duration
	CodeLength int
}

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeGenerator overrides how verification codes are produced.
func WithCodeGenerator(generate func() (string, error)) VerificationOption {
	return func(s *VerificationService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// VerificationService runs the BVN lookup and one-time code workflow.
type VerificationService struct {
	store    store.Store
	resolver identity.Resolver
	sender   CodeSender
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	log      *zap.Logger
}

// NewVerificationService constructs a VerificationService with the provided dependencies.
func NewVerificationService(st store.Store, resolver identity.Resolver, sender CodeSender, cfg VerificationConfig, opts ...VerificationOption) (*VerificationService, error) {
	if st == nil {
		return nil, errors.New("verification service: store is required")
	}
	if resolver == nil {
		return nil, errors.New("verification service: resolver is required")
	}
	if sender == nil {
		return nil, errors.New("verification service: code sender is required")
	}

	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	length := cfg.CodeLength
	if length <= 0 {
		length = defaultCodeLength
	}

	service := &VerificationService{
		store:    st,
		resolver: resolver,
		sender:   sender,
		ttl:      ttl,
		now:      time.Now,
		generate: func() (string, error) { return gonanoid.Generate(codeAlphabet, length) },
		log:      logger.WithModule("verification"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RequestVerification resolves bvn, issues a fresh code and delivers it. The code is never returned.
func (s *VerificationService) RequestVerification(ctx context.Context, userID, bvn string) (holder identity.Identity, err error) {
	ctx = ensureContext(ctx)
	defer func() { metrics.BVNVerifications.WithLabelValues("request", metrics.Result(err)).Inc() }()

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return identity.Identity{}, lookupFailure(err)
	}

	holder, err = s.resolver.Resolve(ctx, strings.TrimSpace(bvn))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIdentifier) {
			return identity.Identity{}, apperrors.ErrInvalidBVN.WithInternal(err)
		}
		s.log.Error("bvn lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		return identity.Identity{}, apperrors.ErrLookupUnavailable.WithInternal(err)
	}

	code, err := s.generate()
	if err != nil {
		return identity.Identity{}, fmt.Errorf("verification service: generate code: %w", err)
	}

	previous := store.Fields{BVNCode: store.ClearToken(), Verified: store.Bool(user.IsVerified)}
	if user.HasBVNCode() {
		previous.BVNCode = store.SetToken(user.BVNCode, *user.BVNCodeExpire)
	}

	// A fresh code moves the user back to CODE_ISSUED.
	issued, err := s.store.Update(ctx, user.ID, store.Fields{
		BVNCode:  store.SetToken(crypto.SHA256Hex(code), s.now().Add(s.ttl)),
		Verified: store.Bool(false),
	})
	if err != nil {
		return identity.Identity{}, lookupFailure(err)
	}

	sendErr := s.sender.SendCode(ctx, issued, holder, code)
	if sendErr == nil {
		s.log.Info("bvn code issued", zap.String("user_id", user.ID))
		return holder, nil
	}

	if _, rollbackErr := s.store.Update(context.WithoutCancel(ctx), user.ID, previous); rollbackErr != nil {
		s.log.Error("failed to withdraw undeliverable bvn code",
			zap.String("user_id", user.ID),
			zap.Error(rollbackErr),
		)
		sendErr = multierr.Append(sendErr, rollbackErr)
	}

	s.log.Warn("bvn code could not be sent", zap.String("user_id", user.ID), zap.Error(sendErr))
	return identity.Identity{}, apperrors.ErrDelivery.WithInternal(sendErr)
}

// SubmitVerification checks code against the issued one. Expiry is checked before equality.
// Submitting the right unexpired code again after verification succeeds without change.
func (s *VerificationService) SubmitVerification(ctx context.Context, userID, code string) (user *models.User, err error) {
	ctx = ensureContext(ctx)
	defer func() { metrics.BVNVerifications.WithLabelValues("submit", metrics.Result(err)).Inc() }()

	user, err = s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupFailure(err)
	}

	if !user.HasBVNCode() {
		return nil, apperrors.ErrCodeMismatch
	}
	if s.now().After(*user.BVNCodeExpire) {
		return nil, apperrors.ErrCodeExpired
	}

	if !crypto.MatchesDigest(strings.TrimSpace(code), user.BVNCode) {
		return nil, apperrors.ErrCodeMismatch
	}

	if user.IsVerified {
		return user, nil
	}

	user, err = s.store.Update(ctx, user.ID, store.Fields{Verified: store.Bool(true)})
	if err != nil {
		return nil, lookupFailure(err)
	}

	s.log.Info("user verified", zap.String("user_id", user.ID))
	return user, nil
}

// Status returns the verification state of the user.
func (s *VerificationService) Status(ctx context.Context, userID string) (VerificationState, error) {
	user, err := s.store.FindByID(ensureContext(ctx), userID)
	if err != nil {
		return "", lookupFailure(err)
	}
	return StateOf(user), nil
}
