// Package service exposes the caller-facing operations: submit a job, poll
// its status, list a caller's jobs. Every operation checks the authorization
// gate before touching the store, and all visibility is scoped to the
// caller that owns the records.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inferent/runway"
	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/job"
	"github.com/inferent/runway/worker"
)

// Lifecycle is the slice of the engine the service needs.
type Lifecycle interface {
	Submit(ctx context.Context, callerID, jobID string, jobType job.Type) (*job.Record, error)
}

// Dispatch schedules asynchronous execution of a submitted record.
type Dispatch interface {
	Dispatch(ctx context.Context, rec *job.Record, capability worker.Capability) error
}

// Service composes the gate, the lifecycle engine, the dispatcher, and the
// read-side store into the public operation set.
type Service struct {
	gate      auth.Gate
	lifecycle Lifecycle
	dispatch  Dispatch
	store     job.Store
	logger    *slog.Logger
}

// New creates a Service. All dependencies are injected; the service holds
// no ambient global state.
func New(gate auth.Gate, lifecycle Lifecycle, dispatch Dispatch, store job.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gate:      gate,
		lifecycle: lifecycle,
		dispatch:  dispatch,
		store:     store,
		logger:    logger,
	}
}

// Submit authorizes the credential, creates the job record in STARTING, and
// hands it to the dispatcher for asynchronous execution. The returned record
// reflects the state at submission; execution proceeds independently.
func (s *Service) Submit(ctx context.Context, credential, callerID, jobID string, jobType job.Type, capability worker.Capability) (*job.Record, error) {
	if err := s.authorize(ctx, credential); err != nil {
		return nil, err
	}

	rec, err := s.lifecycle.Submit(ctx, callerID, jobID, jobType)
	if err != nil {
		return nil, err
	}

	if err := s.dispatch.Dispatch(ctx, rec, capability); err != nil {
		// The record stays STARTING. Submit overwrites STARTING records,
		// so the pair can be resubmitted once dispatch works again.
		return nil, fmt.Errorf("runway/service: dispatch %s/%s: %w", callerID, jobID, err)
	}
	return rec, nil
}

// GetStatus returns the caller's record for the given job id. A job id that
// exists only under a different caller yields ErrJobNotFound, never the
// record and never a distinguishable error.
func (s *Service) GetStatus(ctx context.Context, credential, callerID, jobID string) (*job.Record, error) {
	if err := s.authorize(ctx, credential); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, callerID, jobID)
}

// ListJobs returns every record owned by the caller.
func (s *Service) ListJobs(ctx context.Context, credential, callerID string) ([]*job.Record, error) {
	if err := s.authorize(ctx, credential); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, callerID)
}

func (s *Service) authorize(ctx context.Context, credential string) error {
	ok, err := s.gate.Authorize(ctx, credential)
	if err != nil {
		return fmt.Errorf("runway/service: authorize: %w", err)
	}
	if !ok {
		return runway.ErrUnauthorized
	}
	return nil
}
