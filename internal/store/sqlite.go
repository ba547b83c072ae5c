package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/quote-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS source_runs (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	site          TEXT NOT NULL,
	status        TEXT NOT NULL,
	instruments   INTEGER NOT NULL DEFAULT 0,
	quotes        INTEGER NOT NULL DEFAULT 0,
	failures      TEXT NOT NULL DEFAULT '{}',
	snapshot_path TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	duration_ms   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_source_runs_run_id ON source_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_source_runs_site ON source_runs(site);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) RecordSource(ctx context.Context, runID string, sr model.SourceRun) error {
	failures := sr.Failures
	if failures == nil {
		failures = map[string]int{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failures")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO source_runs (id, run_id, site, status, instruments, quotes, failures, snapshot_path, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, sr.Site, string(sr.Status), sr.Instruments, sr.Quotes,
		string(failuresJSON), sr.SnapshotPath, sr.Error, sr.StartedAt.UTC(), sr.Duration.Milliseconds(),
	)
	return eris.Wrapf(err, "sqlite: insert source run %s/%s", runID, sr.Site)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, error, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT site, status, instruments, quotes, failures, snapshot_path, error, started_at, duration_ms
		 FROM source_runs WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source runs")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		sr, err := scanSourceRun(rows)
		if err != nil {
			return nil, err
		}
		r.Sources = append(r.Sources, *sr)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: list source runs iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, error, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Site != "" {
		query += ` AND id IN (SELECT run_id FROM source_runs WHERE site = ?)`
		args = append(args, filter.Site)
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListSourceRuns(ctx context.Context, since time.Time) ([]model.SourceRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, status, instruments, quotes, failures, snapshot_path, error, started_at, duration_ms
		 FROM source_runs WHERE started_at >= ? ORDER BY started_at`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SourceRun
	for rows.Next() {
		sr, err := scanSourceRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list source runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func scanSourceRun(row scannable) (*model.SourceRun, error) {
	var sr model.SourceRun
	var failuresJSON string
	var durationMs int64

	err := row.Scan(&sr.Site, &sr.Status, &sr.Instruments, &sr.Quotes, &failuresJSON,
		&sr.SnapshotPath, &sr.Error, &sr.StartedAt, &durationMs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source run")
	}
	if err := json.Unmarshal([]byte(failuresJSON), &sr.Failures); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal failures")
	}
	if len(sr.Failures) == 0 {
		sr.Failures = nil
	}
	sr.Duration = time.Duration(durationMs) * time.Millisecond
	return &sr, nil
}
