package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

// PutRecord upserts a record by (caller_id, job_id).
func (s *Store) PutRecord(ctx context.Context, rec *job.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runway_jobs (
			caller_id, job_id, job_type, status, time_started, time_ended, error_msg
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (caller_id, job_id) DO UPDATE SET
			job_type = EXCLUDED.job_type,
			status = EXCLUDED.status,
			time_started = EXCLUDED.time_started,
			time_ended = EXCLUDED.time_ended,
			error_msg = EXCLUDED.error_msg`,
		rec.CallerID, rec.JobID, string(rec.Type), string(rec.Status),
		rec.TimeStarted, rec.TimeEnded, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("runway/postgres: put record: %w", err)
	}
	return nil
}

// GetRecord retrieves one record by key.
func (s *Store) GetRecord(ctx context.Context, callerID, jobID string) (*job.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT caller_id, job_id, job_type, status, time_started, time_ended, error_msg
		FROM runway_jobs
		WHERE caller_id = $1 AND job_id = $2`,
		callerID, jobID,
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, runway.ErrJobNotFound
		}
		return nil, fmt.Errorf("runway/postgres: get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns every record scoped to the caller.
func (s *Store) ListRecords(ctx context.Context, callerID string) ([]*job.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT caller_id, job_id, job_type, status, time_started, time_ended, error_msg
		FROM runway_jobs
		WHERE caller_id = $1
		ORDER BY time_started ASC`,
		callerID,
	)
	if err != nil {
		return nil, fmt.Errorf("runway/postgres: list records: %w", err)
	}
	defer rows.Close()

	var recs []*job.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("runway/postgres: list records: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runway/postgres: list records: %w", err)
	}
	return recs, nil
}

// scanRecord reads one record from a pgx row.
func scanRecord(row pgx.Row) (*job.Record, error) {
	var (
		rec       job.Record
		jobType   string
		status    string
		timeEnded *time.Time
	)
	if err := row.Scan(
		&rec.CallerID, &rec.JobID, &jobType, &status,
		&rec.TimeStarted, &timeEnded, &rec.ErrorMessage,
	); err != nil {
		return nil, err
	}
	rec.Type = job.Type(jobType)
	rec.Status = job.Status(status)
	rec.TimeEnded = timeEnded
	return &rec, nil
}
