package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTable(version int64, table string) Migration {
	return Migration{
		Version:     version,
		Description: "Create " + table,
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, "CREATE TABLE "+table+" (id TEXT PRIMARY KEY)")
			return err
		},
	}
}

func tableExists(t *testing.T, db *sqlx.DB, table string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table))
	return n == 1
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
	assert.NoError(t, VerifyConfiguration(db))
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestDefaultDBPath(t *testing.T) {
	t.Run("base path from environment", func(t *testing.T) {
		t.Setenv("SKILLDESK_BASE_PATH", "/custom/path")
		path, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, "/custom/path/history.db", path)
	})

	t.Run("home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("SKILLDESK_BASE_PATH", "")
		t.Setenv("HOME", home)
		path, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".skilldesk", "history.db"), path)
	})
}

func TestResolvePath(t *testing.T) {
	t.Setenv("SKILLDESK_BASE_PATH", "/base")

	path, err := ResolvePath("/explicit/runs.db")
	require.NoError(t, err)
	assert.Equal(t, "/explicit/runs.db", path)

	path, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/base/history.db", path)
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	applied, err := Applied(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)

	// out of order on purpose
	migrations := []Migration{createTable(20260301000002, "b"), createTable(20260301000001, "a")}
	ran, err := Migrate(ctx, db, migrations)
	require.NoError(t, err)
	assert.Equal(t, []int64{20260301000001, 20260301000002}, ran)
	assert.True(t, tableExists(t, db, "a"))
	assert.True(t, tableExists(t, db, "b"))

	ran, err = Migrate(ctx, db, migrations)
	require.NoError(t, err)
	assert.Empty(t, ran)

	applied, err = Applied(ctx, db)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, int64(20260301000001), applied[0].Version)
	assert.Equal(t, "Create a", applied[0].Description)
	assert.False(t, applied[0].AppliedAt.IsZero())
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	broken := Migration{
		Version:     20260301000002,
		Description: "Broken",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, "CREATE TABLE half (id TEXT)"); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "CREATE TABLE a (id TEXT)")
			return err
		},
	}
	ran, err := Migrate(ctx, db, []Migration{createTable(20260301000001, "a"), broken})
	assert.ErrorContains(t, err, "failed to apply migration 20260301000002: Broken")
	assert.Equal(t, []int64{20260301000001}, ran)
	assert.False(t, tableExists(t, db, "half"))

	applied, err := Applied(ctx, db)
	require.NoError(t, err)
	assert.Len(t, applied, 1)
}

func TestMigrate_SchemaTooNew(t *testing.T) {
	tests := []struct {
		name    string
		applied []Migration
		known   []Migration
		wantErr string
	}{
		{
			name:    "newer migration applied",
			applied: []Migration{createTable(20260301000001, "a"), createTable(20260301000002, "b")},
			known:   []Migration{createTable(20260301000001, "a")},
			wantErr: "unknown version 20260301000002",
		},
		{
			name:    "unknown migration older than the newest known",
			applied: []Migration{createTable(20260301000001, "a"), createTable(20260301000002, "b")},
			known:   []Migration{createTable(20260301000001, "a"), createTable(20260301000003, "c")},
			wantErr: "unknown version 20260301000002",
		},
		{
			name:    "no known migrations",
			applied: []Migration{createTable(20260301000001, "a")},
			wantErr: "unknown version 20260301000001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := openTemp(t)

			_, err := Migrate(ctx, db, tt.applied)
			require.NoError(t, err)

			ran, err := Migrate(ctx, db, tt.known)
			assert.ErrorIs(t, err, ErrSchemaTooNew)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, ran)
			if len(tt.known) > 1 {
				assert.False(t, tableExists(t, db, "c"))
			}
		})
	}
}

func TestOpenMigrated(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := OpenMigrated(ctx, dbPath, []Migration{createTable(20260301000000, "runs")})
	require.NoError(t, err)
	assert.True(t, tableExists(t, db, "runs"))
	require.NoError(t, db.Close())

	_, err = OpenMigrated(ctx, dbPath, []Migration{
		createTable(20260301000000, "runs"),
		createTable(20260301000001, "runs"),
	})
	assert.ErrorContains(t, err, "failed to apply migration 20260301000001: Create runs")
}
