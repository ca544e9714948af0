package db

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration is one schema change. Version is a timestamp (YYYYMMDDHHmmss);
// pending migrations run in ascending order, each in its own transaction.
type Migration struct {
	Version     int64
	Description string
	Up          func(ctx context.Context, tx *sqlx.Tx) error
}

// AppliedMigration is a row of schema_migrations
type AppliedMigration struct {
	Version     int64     `db:"version"`
	Description string    `db:"description"`
	AppliedAt   time.Time `db:"applied_at"`
}

// ErrSchemaTooNew means the database carries an applied migration this build
// does not know, usually because a newer build migrated it
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		applied_at DATETIME NOT NULL
	)`

// Migrate applies the pending migrations and returns their versions
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration) ([]int64, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create schema_migrations table")
	}

	applied, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })

	known := make(map[int64]bool, len(pending))
	for _, m := range pending {
		known[m.Version] = true
	}
	done := make(map[int64]bool, len(applied))
	for _, a := range applied {
		if !known[a.Version] {
			return nil, errors.Wrapf(ErrSchemaTooNew, "unknown version %d", a.Version)
		}
		done[a.Version] = true
	}

	var ran []int64
	for _, m := range pending {
		if done[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return ran, errors.Wrapf(err, "failed to apply migration %d: %s", m.Version, m.Description)
		}
		ran = append(ran, m.Version)
	}
	return ran, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := m.Up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}

// Applied lists the applied migrations, oldest first. A database that was
// never migrated has none.
func Applied(ctx context.Context, db *sqlx.DB) ([]AppliedMigration, error) {
	var exists int
	if err := db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'"); err != nil {
		return nil, errors.Wrap(err, "failed to inspect schema")
	}
	if exists == 0 {
		return nil, nil
	}

	var applied []AppliedMigration
	if err := db.SelectContext(ctx, &applied,
		"SELECT version, description, applied_at FROM schema_migrations ORDER BY version"); err != nil {
		return nil, errors.Wrap(err, "failed to list applied migrations")
	}
	return applied, nil
}
