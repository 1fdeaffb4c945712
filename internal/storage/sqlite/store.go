package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"replaywatch/internal/models"
	"replaywatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database file.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	dsn := dataSourceName + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	index_path  TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	entries     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at_id ON runs (started_at, id);

CREATE TABLE IF NOT EXISTS pair_reports (
	run_id               TEXT NOT NULL,
	position             INTEGER NOT NULL,
	live_url             TEXT NOT NULL,
	archived_url         TEXT NOT NULL,
	live_ref             TEXT NOT NULL,
	archived_ref         TEXT NOT NULL,
	correspondence_score REAL,
	error                TEXT,
	report               TEXT,
	load_notices         TEXT NOT NULL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateRun saves a new run, assigning an ID when it has none.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = storage.NewRunID()
	}
	query := `INSERT INTO runs (id, index_path, started_at, entries, failed) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, run.ID, run.IndexPath, run.StartedAt.UTC().Format(storage.TimeFormat), run.Entries, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the end time and counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.Run) error {
	var finished *string
	if run.FinishedAt != nil {
		f := run.FinishedAt.UTC().Format(storage.TimeFormat)
		finished = &f
	}
	query := `UPDATE runs SET finished_at = ?, entries = ?, failed = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, finished, run.Entries, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (models.Run, error) {
	var r models.Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&r.ID, &r.IndexPath, &startedAt, &finishedAt, &r.Entries, &r.Failed); err != nil {
		return models.Run{}, err
	}
	r.StartedAt, _ = time.Parse(storage.TimeFormat, startedAt)
	if finishedAt.Valid {
		t, _ := time.Parse(storage.TimeFormat, finishedAt.String)
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRunByID retrieves a single run by its ID.
func (s *SQLiteStore) GetRunByID(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT id, index_path, started_at, finished_at, entries, failed FROM runs WHERE id = ?`
	r, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run by id: %w", err)
	}
	return &r, nil
}

// ListRuns retrieves a page of runs ordered by start time.
func (s *SQLiteStore) ListRuns(ctx context.Context, params storage.ListRunsParams) ([]models.Run, error) {
	var args []any
	qb := strings.Builder{}
	qb.WriteString("SELECT id, index_path, started_at, finished_at, entries, failed FROM runs WHERE 1=1")
	if !params.AfterTime.IsZero() && params.AfterID != "" {
		args = append(args, params.AfterTime.UTC().Format(storage.TimeFormat), params.AfterID)
		qb.WriteString(" AND (started_at, id) > (?, ?)")
	}
	qb.WriteString(" ORDER BY started_at, id LIMIT ?")
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveOutcome stores the outcome of one entry, replacing an earlier one for
// the same position.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, runID string, outcome models.EntryOutcome) error {
	row, err := storage.EncodeOutcome(outcome)
	if err != nil {
		return err
	}
	var report *string
	if row.Report != nil {
		r := string(row.Report)
		report = &r
	}
	query := `
INSERT INTO pair_reports (run_id, position, live_url, archived_url, live_ref, archived_ref, correspondence_score, error, report, load_notices)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, position) DO UPDATE SET
	correspondence_score = excluded.correspondence_score,
	error = excluded.error,
	report = excluded.report,
	load_notices = excluded.load_notices`
	_, err = s.db.ExecContext(ctx, query, runID, row.Position, row.LiveURL, row.ArchivedURL, row.LiveRef, row.ArchivedRef,
		row.CorrespondenceScore, row.Error, report, string(row.LoadNotices))
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// ListOutcomesByRunID retrieves stored outcomes of a run in index order.
func (s *SQLiteStore) ListOutcomesByRunID(ctx context.Context, params storage.ListOutcomesParams) ([]models.EntryOutcome, error) {
	args := []any{params.RunID, params.AfterPosition}
	qb := strings.Builder{}
	qb.WriteString(`SELECT position, live_url, archived_url, live_ref, archived_ref, correspondence_score, error, report, load_notices
FROM pair_reports WHERE run_id = ? AND position > ?`)
	if params.FailedOnly {
		qb.WriteString(" AND error IS NOT NULL")
	}
	qb.WriteString(" ORDER BY position LIMIT ?")
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()
	var outcomes []models.EntryOutcome
	for rows.Next() {
		var row storage.OutcomeRow
		var report sql.NullString
		var notices string
		if err := rows.Scan(&row.Position, &row.LiveURL, &row.ArchivedURL, &row.LiveRef, &row.ArchivedRef,
			&row.CorrespondenceScore, &row.Error, &report, &notices); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		if report.Valid {
			row.Report = []byte(report.String)
		}
		row.LoadNotices = []byte(notices)
		o, err := storage.DecodeOutcome(row)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
