package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{
		Driver:          DriverSQLite,
		DSN:             "file:" + t.Name() + "?mode=memory&cache=shared",
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenTranslatesDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, db.Create(&models.User{Email: "ada@example.com", Password: "hash"}).Error)
	err := db.Create(&models.User{Email: "ada@example.com", Password: "hash"}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, `unsupported database driver "oracle"`)

	_, err = Open(Config{Driver: "postgres"})
	require.Error(t, err)
}

func TestNilHandle(t *testing.T) {
	require.Error(t, Close(nil))
	require.Error(t, Ping(nil))
}

func TestPingAfterClose(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, Close(db))
	require.Error(t, Ping(db))
}
