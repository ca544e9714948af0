package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/db"
)

// Migration20260301090000CreateReportRuns creates the report_runs table
func Migration20260301090000CreateReportRuns() db.Migration {
	return db.Migration{
		Version:     20260301090000,
		Description: "Create report_runs table",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS report_runs (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					group_name TEXT,
					created_at DATETIME NOT NULL,
					payload TEXT NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create report_runs table")
			}
			return nil
		},
	}
}
