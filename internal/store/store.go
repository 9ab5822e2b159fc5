package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/accountd/internal/models"
)

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MongoStore)(nil)
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("store: user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("store: email already registered")
)

// Error wraps an unexpected backend failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store persists user records.
type Store interface {
	// FindByEmail looks up a user by normalised email.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByID looks up a user by identifier.
	FindByID(ctx context.Context, id string) (*models.User, error)
	// FindByResetToken looks up the user holding the given reset token hash.
	FindByResetToken(ctx context.Context, hash string) (*models.User, error)
	// Create inserts a new user, assigning an ID when absent.
	Create(ctx context.Context, user *models.User) error
	// Update applies fields to the user in a single write and returns the stored record.
	Update(ctx context.Context, id string, fields Fields) (*models.User, error)
	// ClearExpiredResetTokens removes reset tokens that expired at or before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// TokenState describes a hashed secret and its expiry. A zero TokenState clears both.
type TokenState struct {
	Hash      string
	ExpiresAt *time.Time
}

// SetToken stores hash with the given expiry.
func SetToken(hash string, expiresAt time.Time) *TokenState {
	expiresAt = expiresAt.UTC()
	return &TokenState{Hash: hash, ExpiresAt: &expiresAt}
}

// ClearToken removes a stored secret and its expiry.
func ClearToken() *TokenState {
	return &TokenState{}
}

// Cleared reports whether the state removes the secret.
func (t *TokenState) Cleared() bool {
	return t.Hash == "" || t.ExpiresAt == nil
}

// Fields lists the user attributes to change. Nil members are left untouched.
type Fields struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Password  *string

	ResetToken *TokenState
	BVNCode    *TokenState
	Verified   *bool
}

// Empty reports whether no attribute would change.
func (f Fields) Empty() bool {
	return f.FirstName == nil && f.LastName == nil && f.Email == nil && f.Phone == nil &&
		f.Password == nil && f.ResetToken == nil && f.BVNCode == nil && f.Verified == nil
}

// Bool returns a pointer to value for use in Fields.
func Bool(value bool) *bool {
	return &value
}
