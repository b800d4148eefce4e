package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"todo_auth/internal/config"
	"todo_auth/internal/db"

	"github.com/stretchr/testify/require"
)

// OpenTestSQLite returns a migrated SQLite database in a temp directory that
// is closed when the test ends.
func OpenTestSQLite(t testing.TB) *sql.DB {
	t.Helper()

	database, err := db.Open(&config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.Migrate(context.Background(), database))
	return database
}
