package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/mouthswap/internal/types"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection backing the job ledger.
type Store struct {
	conn *pgx.Conn
}

// Job is one recorded swap run.
type Job struct {
	ID            string
	DestPath      string
	SourcePath    string
	OutputPath    string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Frames        int
	Swapped       int
	PassedThrough int
	Dropped       int
	Failures      int
}

// Totals are the per-run counters written when a job finishes.
type Totals struct {
	Frames        int
	Swapped       int
	PassedThrough int
	Dropped       int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the ledger tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS swap_jobs (
			id TEXT PRIMARY KEY,
			dest_path TEXT NOT NULL,
			source_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			frames INT NOT NULL DEFAULT 0,
			swapped INT NOT NULL DEFAULT 0,
			passed_through INT NOT NULL DEFAULT 0,
			dropped INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS frame_failures (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT REFERENCES swap_jobs(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS frame_failures_job_id_idx ON frame_failures (job_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// StartJob registers a run. Re-running the same inputs resets the earlier
// record so failures are never duplicated.
func (s *Store) StartJob(ctx context.Context, id, destPath, sourcePath, outputPath string) error {
	if _, err := s.conn.Exec(ctx, "DELETE FROM frame_failures WHERE job_id = $1", id); err != nil {
		return err
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO swap_jobs (id, dest_path, source_path, output_path, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			dest_path = EXCLUDED.dest_path,
			source_path = EXCLUDED.source_path,
			output_path = EXCLUDED.output_path,
			started_at = NOW(),
			finished_at = NULL,
			frames = 0, swapped = 0, passed_through = 0, dropped = 0
	`, id, destPath, sourcePath, outputPath)
	return err
}

// FinishJob stamps the run's totals.
func (s *Store) FinishJob(ctx context.Context, id string, t Totals) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE swap_jobs
		SET finished_at = NOW(), frames = $2, swapped = $3, passed_through = $4, dropped = $5
		WHERE id = $1
	`, id, t.Frames, t.Swapped, t.PassedThrough, t.Dropped)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// RecordFailures saves the frames of a run that were not swapped.
func (s *Store) RecordFailures(ctx context.Context, id string, failures []types.FrameStatus) error {
	if len(failures) == 0 {
		return nil
	}

	rows := make([][]any, len(failures))
	for i, f := range failures {
		rows[i] = []any{id, f.Index, f.Kind, f.Detail}
	}
	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{"frame_failures"},
		[]string{"job_id", "frame_index", "kind", "detail"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Failures returns the recorded failures of a job in frame order.
func (s *Store) Failures(ctx context.Context, id string) ([]types.FrameStatus, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT frame_index, kind, detail FROM frame_failures
		WHERE job_id = $1 ORDER BY frame_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.FrameStatus
	for rows.Next() {
		var f types.FrameStatus
		if err := rows.Scan(&f.Index, &f.Kind, &f.Detail); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListJobs returns every recorded run, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT j.id, j.dest_path, j.source_path, j.output_path, j.started_at, j.finished_at,
			j.frames, j.swapped, j.passed_through, j.dropped, COUNT(f.id)
		FROM swap_jobs j
		LEFT JOIN frame_failures f ON f.job_id = j.id
		GROUP BY j.id
		ORDER BY j.started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.DestPath, &j.SourcePath, &j.OutputPath, &j.StartedAt, &j.FinishedAt,
			&j.Frames, &j.Swapped, &j.PassedThrough, &j.Dropped, &j.Failures); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS frame_failures CASCADE;
		DROP TABLE IF EXISTS swap_jobs CASCADE;
	`)
	return err
}
