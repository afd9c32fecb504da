package database

import (
	"path/filepath"
	"testing"

	"github.com/include-portal/users-api/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	db, err := OpenSQL(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "users.db")})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, sqlDB.Ping())
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
