package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/accountd/internal/models"
)

func TestAutoMigrateCreatesUserTable(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	require.True(t, migrator.HasTable(&models.User{}))
	for _, column := range []string{"email", "reset_password_token", "reset_password_expire", "bvn_code", "bvn_code_expire", "is_verified"} {
		require.True(t, migrator.HasColumn(&models.User{}, column), "expected column %s", column)
	}
	require.True(t, migrator.HasIndex(&models.User{}, "Email"), "expected unique email index")
}

func TestAutoMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
}

func TestAutoMigrateRejectsNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}
