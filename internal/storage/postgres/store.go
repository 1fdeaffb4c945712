package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"replaywatch/internal/models"
	"replaywatch/internal/storage"
)

// PostgresStore implements the storage.Storer interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New creates a new PostgresStore and establishes a connection to the database.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// migrate ensures the database schema is created.
func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		index_path  TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		entries     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at_id ON runs (started_at, id);

	CREATE TABLE IF NOT EXISTS pair_reports (
		run_id               TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position             INTEGER NOT NULL,
		live_url             TEXT NOT NULL,
		archived_url         TEXT NOT NULL,
		live_ref             TEXT NOT NULL,
		archived_ref         TEXT NOT NULL,
		correspondence_score DOUBLE PRECISION,
		error                TEXT,
		report               JSONB,
		load_notices         JSONB NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

// CreateRun implements the Storer interface.
func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = storage.NewRunID()
	}
	query := `INSERT INTO runs (id, index_path, started_at, entries, failed) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.Exec(ctx, query, run.ID, run.IndexPath, run.StartedAt.UTC(), run.Entries, run.Failed); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun implements the Storer interface.
func (s *PostgresStore) FinishRun(ctx context.Context, run *models.Run) error {
	query := `UPDATE runs SET finished_at = $1, entries = $2, failed = $3 WHERE id = $4`
	tag, err := s.db.Exec(ctx, query, run.FinishedAt, run.Entries, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (models.Run, error) {
	var r models.Run
	if err := row.Scan(&r.ID, &r.IndexPath, &r.StartedAt, &r.FinishedAt, &r.Entries, &r.Failed); err != nil {
		return models.Run{}, err
	}
	return r, nil
}

// GetRunByID implements the Storer interface.
func (s *PostgresStore) GetRunByID(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT id, index_path, started_at, finished_at, entries, failed FROM runs WHERE id = $1`
	r, err := scanRun(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run by id: %w", err)
	}
	return &r, nil
}

// ListRuns implements the Storer interface.
func (s *PostgresStore) ListRuns(ctx context.Context, params storage.ListRunsParams) ([]models.Run, error) {
	var args []any
	qb := strings.Builder{}
	qb.WriteString("SELECT id, index_path, started_at, finished_at, entries, failed FROM runs")
	if !params.AfterTime.IsZero() && params.AfterID != "" {
		args = append(args, params.AfterTime, params.AfterID)
		qb.WriteString(" WHERE (started_at, id) > ($1, $2)")
	}
	args = append(args, params.Limit)
	fmt.Fprintf(&qb, " ORDER BY started_at, id LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveOutcome implements the Storer interface.
func (s *PostgresStore) SaveOutcome(ctx context.Context, runID string, outcome models.EntryOutcome) error {
	row, err := storage.EncodeOutcome(outcome)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO pair_reports (run_id, position, live_url, archived_url, live_ref, archived_ref, correspondence_score, error, report, load_notices)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id, position) DO UPDATE SET
		correspondence_score = EXCLUDED.correspondence_score,
		error = EXCLUDED.error,
		report = EXCLUDED.report,
		load_notices = EXCLUDED.load_notices`
	_, err = s.db.Exec(ctx, query, runID, row.Position, row.LiveURL, row.ArchivedURL, row.LiveRef, row.ArchivedRef,
		row.CorrespondenceScore, row.Error, row.Report, row.LoadNotices)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// ListOutcomesByRunID implements the Storer interface.
func (s *PostgresStore) ListOutcomesByRunID(ctx context.Context, params storage.ListOutcomesParams) ([]models.EntryOutcome, error) {
	query := `
	SELECT position, live_url, archived_url, live_ref, archived_ref, correspondence_score, error, report, load_notices
	FROM pair_reports
	WHERE run_id = $1 AND position > $2 AND ($3 = FALSE OR error IS NOT NULL)
	ORDER BY position LIMIT $4`
	rows, err := s.db.Query(ctx, query, params.RunID, params.AfterPosition, params.FailedOnly, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.EntryOutcome
	for rows.Next() {
		var row storage.OutcomeRow
		if err := rows.Scan(&row.Position, &row.LiveURL, &row.ArchivedURL, &row.LiveRef, &row.ArchivedRef,
			&row.CorrespondenceScore, &row.Error, &row.Report, &row.LoadNotices); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o, err := storage.DecodeOutcome(row)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
