// Package db opens the SQLite history database and runs its migrations.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jingkaihe/skilldesk/pkg/logger"
)

// DefaultDBPath returns the default path of the history database,
// $SKILLDESK_BASE_PATH/history.db or ~/.skilldesk/history.db.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("SKILLDESK_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "history.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skilldesk", "history.db"), nil
}

// ResolvePath returns path, or the default path when it is empty
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultDBPath()
}

// Open opens or creates the SQLite database at dbPath, creating its
// directory, and switches it to WAL mode
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", dbPath)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dbPath)
	}
	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to configure database %s", dbPath)
	}
	return db, nil
}

// pragmas applied by Configure
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Configure applies the pragmas and limits the pool to one connection
func Configure(ctx context.Context, db *sqlx.DB) error {
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}
	return VerifyConfiguration(db)
}

// OpenMigrated opens the database at dbPath and applies migrations
func OpenMigrated(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	sqlDB, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	ran, err := Migrate(ctx, sqlDB, migrations)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if len(ran) > 0 {
		logger.G(ctx).WithField("path", dbPath).WithField("versions", ran).Debug("applied database migrations")
	}
	return sqlDB, nil
}

// VerifyConfiguration checks the pragmas Configure sets
func VerifyConfiguration(db *sqlx.DB) error {
	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"foreign_keys", "1"},
	}
	for _, c := range checks {
		var got string
		if err := db.Get(&got, "PRAGMA "+c.pragma); err != nil {
			return errors.Wrapf(err, "failed to query %s", c.pragma)
		}
		if strings.ToLower(got) != c.want {
			return errors.Errorf("expected %s %s, got %s", c.pragma, c.want, got)
		}
	}
	return nil
}
