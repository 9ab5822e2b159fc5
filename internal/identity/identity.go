package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidIdentifier means the lookup rejected the identifier.
	ErrInvalidIdentifier = errors.New("identity: invalid identifier")
	// ErrUnavailable means the lookup could not be completed.
	ErrUnavailable = errors.New("identity: lookup unavailable")
)

// Identity is the holder record returned for a BVN.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
}

// Resolver looks up the identity registered against a BVN.
type Resolver interface {
	Resolve(ctx context.Context, bvn string) (Identity, error)
}
