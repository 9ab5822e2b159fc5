package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/accountd/pkg/crypto"
)

const (
	// DefaultSessionTTL is the fallback validity period for session tokens.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultResetTTL is the fallback validity period for password reset tokens.
	DefaultResetTTL = 10 * time.Minute

	resetTokenBytes = 20
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret   string
	Issuer   string
	TTL      time.Duration
	ResetTTL time.Duration
	Clock    func() time.Time
}

// Claims represents the custom claims embedded in session tokens.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionToken is a signed bearer credential and its expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// ResetToken pairs the cleartext sent to the user with the hash that is persisted.
type ResetToken struct {
	Cleartext string
	Hash      string
	ExpiresAt time.Time
}

// TokenService issues and validates session and password reset tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// NewTokenService constructs a TokenService instance when provided with the required configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      ttl,
		resetTTL: resetTTL,
		now:      now,
	}, nil
}

// Now returns the current time according to the service clock.
func (s *TokenService) Now() time.Time {
	return s.now()
}

// SessionTTL reports how long issued session tokens stay valid.
func (s *TokenService) SessionTTL() time.Duration {
	return s.ttl
}

// IssueSessionToken returns a signed HS256 token for userID.
func (s *TokenService) IssueSessionToken(userID, role string) (SessionToken, error) {
	if userID == "" {
		return SessionToken{}, errors.New("jwt: user id is required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// ValidateSessionToken parses and validates a signed token, returning its claims.
func (s *TokenService) ValidateSessionToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}

// IssueResetToken generates a random reset token, its hash and expiry.
func (s *TokenService) IssueResetToken() (ResetToken, error) {
	cleartext, err := crypto.GenerateToken(resetTokenBytes)
	if err != nil {
		return ResetToken{}, fmt.Errorf("reset token: %w", err)
	}
	return ResetToken{
		Cleartext: cleartext,
		Hash:      HashResetToken(cleartext),
		ExpiresAt: s.now().Add(s.resetTTL).UTC(),
	}, nil
}

// HashResetToken returns the deterministic one-way hash persisted for a reset token.
func HashResetToken(cleartext string) string {
	return crypto.SHA256Hex(cleartext)
}

// ValidateResetToken reports whether submitted matches storedHash and expiry lies after now.
// Both conditions are always evaluated.
func ValidateResetToken(submitted, storedHash string, expiry, now time.Time) bool {
	fresh := now.Before(expiry)
	match := crypto.MatchesDigest(submitted, storedHash)
	return fresh && match
}
