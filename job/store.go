package job

import "context"

// Store defines the persistence contract for job records.
//
// Records are keyed by (CallerID, JobID). Implementations must provide
// read-your-writes consistency: a PutRecord followed by a GetRecord or
// ListRecords for the same caller observes the just-written value. Writes
// to a single key must be atomic; concurrent writes to different keys must
// not interfere.
type Store interface {
	// PutRecord upserts a record by (CallerID, JobID).
	PutRecord(ctx context.Context, rec *Record) error

	// GetRecord retrieves one record by key. Returns runway.ErrJobNotFound
	// when no record exists under that caller, including when the job id
	// exists only under a different caller.
	GetRecord(ctx context.Context, callerID, jobID string) (*Record, error)

	// ListRecords returns every record scoped to the caller. Order is not
	// semantically significant.
	ListRecords(ctx context.Context, callerID string) ([]*Record, error)
}
