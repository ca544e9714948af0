package migrations

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/db"
)

// Migration20260301090001AddReportRunIndexes indexes runs by kind and time
func Migration20260301090001AddReportRunIndexes() db.Migration {
	return db.Migration{
		Version:     20260301090001,
		Description: "Add report_runs indexes",
		Up: func(ctx context.Context, tx *sqlx.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_report_runs_created_at ON report_runs(created_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_report_runs_kind_created_at ON report_runs(kind, created_at DESC)",
			}
			for _, idx := range indexes {
				if _, err := tx.ExecContext(ctx, idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
	}
}
