// Package migrations lists the schema changes of the history database.
package migrations

import (
	"github.com/jingkaihe/skilldesk/pkg/db"
)

// All returns every migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20260301090000CreateReportRuns(),
		Migration20260301090001AddReportRunIndexes(),
	}
}
