package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

// Engine validates and applies lifecycle transitions. All status mutations
// go through it; the store and the dispatcher never write status directly.
type Engine struct {
	store  job.Store
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine backed by the given store.
func New(store job.Store, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit creates a record in STARTING and persists it. The caller's
// authorization must already have been checked.
//
// Resubmitting a (caller, job id) pair is rejected with ErrJobActive while
// the existing record is RUNNING; a terminal record is overwritten by a
// fresh submission. A record still in STARTING may also be overwritten:
// dispatch can fail after the STARTING write, and a STARTING record has no
// outgoing transition other than RUNNING, so refusing resubmission there
// would wedge the pair forever.
func (e *Engine) Submit(ctx context.Context, callerID, jobID string, jobType job.Type) (*job.Record, error) {
	if callerID == "" {
		return nil, fmt.Errorf("%w: caller id required", runway.ErrInvalidInput)
	}
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id required", runway.ErrInvalidInput)
	}

	prev, err := e.store.GetRecord(ctx, callerID, jobID)
	if err != nil && !errors.Is(err, runway.ErrJobNotFound) {
		return nil, err
	}
	if prev != nil && prev.Status == job.StatusRunning {
		return nil, fmt.Errorf("%w: %s/%s is %s", runway.ErrJobActive, callerID, jobID, prev.Status)
	}

	rec := &job.Record{
		CallerID:     callerID,
		JobID:        jobID,
		Type:         jobType,
		Status:       job.StatusStarting,
		TimeStarted:  e.now(),
		ErrorMessage: job.NoError,
	}
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, err
	}

	e.logger.Info("job submitted",
		slog.String("caller_id", callerID),
		slog.String("job_id", jobID),
		slog.String("type", string(jobType)),
	)
	return rec, nil
}

// MarkRunning transitions STARTING→RUNNING and persists. Calling it on a
// record in any other state is an error, not a no-op.
func (e *Engine) MarkRunning(ctx context.Context, callerID, jobID string) (*job.Record, error) {
	rec, err := e.store.GetRecord(ctx, callerID, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status != job.StatusStarting {
		return nil, e.transitionError(rec, job.StatusRunning)
	}

	rec.Status = job.StatusRunning
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkTerminal folds an execution outcome into the persisted record:
// RUNNING→COMPLETED on success, RUNNING→ERROR on failure, stamping TimeEnded
// exactly once. It re-reads the record before writing so a drifted in-memory
// handle can never blind-overwrite persisted state.
func (e *Engine) MarkTerminal(ctx context.Context, callerID, jobID string, outcome job.Outcome) (*job.Record, error) {
	rec, err := e.store.GetRecord(ctx, callerID, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status != job.StatusRunning {
		target := job.StatusCompleted
		if !outcome.OK {
			target = job.StatusError
		}
		return nil, e.transitionError(rec, target)
	}

	now := e.now()
	rec.TimeEnded = &now
	if outcome.OK {
		rec.Status = job.StatusCompleted
	} else {
		rec.Status = job.StatusError
		rec.ErrorMessage = outcome.Message
	}

	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, err
	}

	e.logger.Info("job finished",
		slog.String("caller_id", callerID),
		slog.String("job_id", jobID),
		slog.String("status", string(rec.Status)),
	)
	return rec, nil
}

// Abort transitions RUNNING→ABORTED and stamps TimeEnded. It marks the
// record only; it does not interrupt an in-flight workload, whose eventual
// terminal report will then fail with ErrInvalidTransition and leave the
// aborted record untouched.
func (e *Engine) Abort(ctx context.Context, callerID, jobID string) (*job.Record, error) {
	rec, err := e.store.GetRecord(ctx, callerID, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status != job.StatusRunning {
		return nil, e.transitionError(rec, job.StatusAborted)
	}

	now := e.now()
	rec.Status = job.StatusAborted
	rec.TimeEnded = &now
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, err
	}

	e.logger.Warn("job aborted",
		slog.String("caller_id", rec.CallerID),
		slog.String("job_id", rec.JobID),
	)
	return rec, nil
}

// transitionError logs the violation loudly and returns ErrInvalidTransition
// without touching the stored record.
func (e *Engine) transitionError(rec *job.Record, target job.Status) error {
	e.logger.Error("invalid lifecycle transition",
		slog.String("caller_id", rec.CallerID),
		slog.String("job_id", rec.JobID),
		slog.String("from", string(rec.Status)),
		slog.String("to", string(target)),
	)
	return fmt.Errorf("%w: %s to %s", runway.ErrInvalidTransition, rec.Status, target)
}
