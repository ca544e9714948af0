// Package history records generated reports so earlier runs can be listed
// and shown again.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/db"
	"github.com/jingkaihe/skilldesk/pkg/db/migrations"
)

// Run kinds
const (
	KindMarket  = "market"
	KindGroup   = "group"
	KindAnalyze = "analyze"
	KindScan    = "scan"
	KindQuick   = "quick"
)

// Kinds lists every run kind in display order
var Kinds = []string{KindMarket, KindGroup, KindAnalyze, KindScan, KindQuick}

// ErrNotFound is returned by Get for unknown run ids
var ErrNotFound = errors.New("report run not found")

// Run is one stored report
type Run struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	GroupName string          `json:"group_name,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type dbRun struct {
	ID        string         `db:"id"`
	Kind      string         `db:"kind"`
	GroupName sql.NullString `db:"group_name"`
	CreatedAt time.Time      `db:"created_at"`
	Payload   string         `db:"payload"`
}

func (r dbRun) toRun() Run {
	run := Run{ID: r.ID, Kind: r.Kind, GroupName: r.GroupName.String, CreatedAt: r.CreatedAt}
	if r.Payload != "" {
		run.Payload = json.RawMessage(r.Payload)
	}
	return run
}

// Store persists report runs in SQLite
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens the store at dbPath, or the default path when empty, and
// applies pending migrations
func Open(ctx context.Context, dbPath string) (*Store, error) {
	path, err := db.ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.OpenMigrated(ctx, path, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	return &Store{db: sqlDB, now: time.Now}, nil
}

// Save stores payload, marshalled as JSON, as a new run
func (s *Store) Save(ctx context.Context, kind, groupName string, payload any) (*Run, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal report payload")
	}

	row := dbRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		GroupName: sql.NullString{String: groupName, Valid: groupName != ""},
		CreatedAt: s.now().UTC(),
		Payload:   string(data),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO report_runs (id, kind, group_name, created_at, payload)
		VALUES (:id, :kind, :group_name, :created_at, :payload)
	`, row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to save report run")
	}

	run := row.toRun()
	return &run, nil
}

// List returns the newest runs first, without payloads. An empty kind
// lists every kind; a non-positive limit lists everything.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]Run, error) {
	query := "SELECT id, kind, group_name, created_at FROM report_runs"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []dbRun
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list report runs")
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = r.toRun()
	}
	return runs, nil
}

// Get returns the run with id, payload included
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var row dbRun
	err := s.db.GetContext(ctx, &row,
		"SELECT id, kind, group_name, created_at, payload FROM report_runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load report run")
	}
	run := row.toRun()
	return &run, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
