// Package testutil opens throwaway account databases for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/models"
)

// Option adjusts the database MustOpenTestDB hands out.
type Option func(*options)

type options struct {
	skipMigrate bool
	users       []*models.User
}

// WithoutMigrations leaves the database empty, for tests of the migration itself.
func WithoutMigrations() Option {
	return func(o *options) { o.skipMigrate = true }
}

// WithUsers inserts users once the schema exists. Passwords are stored as given.
func WithUsers(users ...*models.User) Option {
	return func(o *options) { o.users = append(o.users, users...) }
}

// MustOpenTestDB opens an in-memory SQLite database private to t, migrated unless
// WithoutMigrations is passed. It is closed when the test ends.
func MustOpenTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// A unique name keeps shared-cache databases of parallel tests apart.
	dsn := fmt.Sprintf("file:accounts-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.skipMigrate {
		require.Empty(t, o.users, "cannot seed users without migrations")
		return db
	}
	require.NoError(t, database.AutoMigrate(db))
	for _, u := range o.users {
		require.NoError(t, db.Create(u).Error, "seed %s", u.Email)
	}
	return db
}
