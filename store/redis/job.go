package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

// PutRecord stores the record as a Hash and indexes it in the caller's Set.
// Both writes go through a transactional pipeline so a concurrent reader
// never observes the record without its index entry.
func (s *Store) PutRecord(ctx context.Context, rec *job.Record) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKey(rec.CallerID, rec.JobID), recordToMap(rec))
	pipe.SAdd(ctx, callerJobsKey(rec.CallerID), rec.JobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("runway/redis: put record: %w", err)
	}
	return nil
}

// GetRecord retrieves one record by key.
func (s *Store) GetRecord(ctx context.Context, callerID, jobID string) (*job.Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(callerID, jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("runway/redis: get record: %w", err)
	}
	if len(fields) == 0 {
		return nil, runway.ErrJobNotFound
	}
	return recordFromMap(fields)
}

// ListRecords returns every record scoped to the caller.
func (s *Store) ListRecords(ctx context.Context, callerID string) ([]*job.Record, error) {
	jobIDs, err := s.client.SMembers(ctx, callerJobsKey(callerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("runway/redis: list records: %w", err)
	}

	recs := make([]*job.Record, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		rec, err := s.GetRecord(ctx, callerID, jobID)
		if err != nil {
			if err == runway.ErrJobNotFound {
				// Index entry without a record; skip rather than fail
				// the whole listing.
				continue
			}
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// recordToMap flattens a record into Redis Hash fields.
func recordToMap(rec *job.Record) map[string]any {
	fields := map[string]any{
		"caller_id":    rec.CallerID,
		"job_id":       rec.JobID,
		"type":         string(rec.Type),
		"status":       string(rec.Status),
		"time_started": rec.TimeStarted.Format(time.RFC3339Nano),
		"time_ended":   "",
		"error_msg":    rec.ErrorMessage,
	}
	if rec.TimeEnded != nil {
		fields["time_ended"] = rec.TimeEnded.Format(time.RFC3339Nano)
	}
	return fields
}

// recordFromMap rebuilds a record from Redis Hash fields.
func recordFromMap(fields map[string]string) (*job.Record, error) {
	started, err := time.Parse(time.RFC3339Nano, fields["time_started"])
	if err != nil {
		return nil, fmt.Errorf("runway/redis: parse time_started: %w", err)
	}

	rec := &job.Record{
		CallerID:     fields["caller_id"],
		JobID:        fields["job_id"],
		Type:         job.Type(fields["type"]),
		Status:       job.Status(fields["status"]),
		TimeStarted:  started,
		ErrorMessage: fields["error_msg"],
	}

	if v := fields["time_ended"]; v != "" {
		ended, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("runway/redis: parse time_ended: %w", err)
		}
		rec.TimeEnded = &ended
	}
	return rec, nil
}
