// Package worker bridges the lifecycle engine to the externally supplied
// execution capability. The Dispatcher runs each job in its own goroutine,
// bounded by a concurrency semaphore, and folds the outcome back into the
// engine. The submit path never blocks on job completion.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	runway "github.com/inferent/runway"
	"github.com/inferent/runway/backoff"
	"github.com/inferent/runway/job"
	"github.com/inferent/runway/middleware"
)

// ErrStopped is returned by Dispatch after Stop has been called.
var ErrStopped = errors.New("runway/worker: dispatcher stopped")

// ErrNilCapability is returned by Dispatch when no capability is supplied.
var ErrNilCapability = errors.New("runway/worker: nil capability")

// Capability is the external operation that performs the actual workload.
// An error return is the failure outcome; the dispatcher treats it as data
// and never propagates it to any caller.
type Capability interface {
	Execute(ctx context.Context, rec *job.Record) error
}

// CapabilityFunc adapts a plain function to a Capability.
type CapabilityFunc func(ctx context.Context, rec *job.Record) error

func (f CapabilityFunc) Execute(ctx context.Context, rec *job.Record) error {
	return f(ctx, rec)
}

// Lifecycle is the slice of the engine the dispatcher needs.
type Lifecycle interface {
	MarkRunning(ctx context.Context, callerID, jobID string) (*job.Record, error)
	MarkTerminal(ctx context.Context, callerID, jobID string, outcome job.Outcome) (*job.Record, error)
}

// Dispatcher hands jobs off to asynchronous execution. The goroutine spawned
// per job is the single writer for that job's record after submission: it
// performs the RUNNING write, runs the capability through the middleware
// chain, and performs exactly one terminal write.
type Dispatcher struct {
	lifecycle       Lifecycle
	mw              middleware.Middleware
	logger          *slog.Logger
	sem             chan struct{}
	shutdownTimeout time.Duration
	retry           backoff.Strategy
	retryAttempts   int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of jobs executing at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		}
	}
}

// WithMiddleware sets the middleware chain wrapped around every execution.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.mw = middleware.Chain(mws...) }
}

// WithShutdownTimeout sets the maximum time Stop waits for in-flight jobs.
func WithShutdownTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.shutdownTimeout = t }
}

// WithTerminalRetry retries a failed terminal-status write up to attempts
// times, delayed by the given strategy. Only store failures are retried;
// lifecycle violations are not.
func WithTerminalRetry(strategy backoff.Strategy, attempts int) Option {
	return func(d *Dispatcher) {
		d.retry = strategy
		d.retryAttempts = attempts
	}
}

// NewDispatcher creates a Dispatcher feeding outcomes into the given
// lifecycle engine.
func NewDispatcher(lifecycle Lifecycle, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		lifecycle:       lifecycle,
		mw:              middleware.Chain(),
		logger:          logger,
		sem:             make(chan struct{}, 4),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch schedules the record's workload for asynchronous execution and
// returns immediately. The execution outlives the caller's request context;
// only Stop ends it early.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *job.Record, capability Capability) error {
	// Rejected up front: the record is still STARTING here, so the caller
	// can resubmit, whereas a panic in run() would strand it in RUNNING.
	if capability == nil {
		return ErrNilCapability
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// Detach from the request context: cancellation of the submitting
	// request must not cancel the job.
	runCtx := context.WithoutCancel(ctx)

	go d.run(runCtx, rec, capability)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, rec *job.Record, capability Capability) {
	defer d.wg.Done()

	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	if _, err := d.lifecycle.MarkRunning(ctx, rec.CallerID, rec.JobID); err != nil {
		d.logger.Error("dispatch could not mark job running",
			slog.String("caller_id", rec.CallerID),
			slog.String("job_id", rec.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	execErr := d.mw(ctx, rec, func(ctx context.Context) error {
		return capability.Execute(ctx, rec)
	})

	outcome := job.Succeeded()
	if execErr != nil {
		outcome = job.Failed(execErr.Error())
	}

	// The single point where the execution result becomes persisted state.
	// A failed terminal write is logged, never rethrown.
	if err := d.markTerminal(ctx, rec, outcome); err != nil {
		d.logger.Error("dispatch could not record job outcome",
			slog.String("caller_id", rec.CallerID),
			slog.String("job_id", rec.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// markTerminal writes the outcome, retrying transient store failures per the
// configured strategy. Lifecycle violations mean the record already moved on,
// so retrying those would only repeat the violation.
func (d *Dispatcher) markTerminal(ctx context.Context, rec *job.Record, outcome job.Outcome) error {
	_, err := d.lifecycle.MarkTerminal(ctx, rec.CallerID, rec.JobID, outcome)
	if err == nil || d.retry == nil {
		return err
	}

	for attempt := 1; attempt <= d.retryAttempts; attempt++ {
		if errors.Is(err, runway.ErrInvalidTransition) || errors.Is(err, runway.ErrJobNotFound) {
			return err
		}

		select {
		case <-time.After(d.retry.Delay(attempt)):
		case <-ctx.Done():
			return err
		}

		d.logger.Warn("retrying terminal status write",
			slog.String("job_id", rec.JobID),
			slog.Int("attempt", attempt),
		)
		if _, err = d.lifecycle.MarkTerminal(ctx, rec.CallerID, rec.JobID, outcome); err == nil {
			return nil
		}
	}
	return err
}

// Stop rejects new dispatches and waits for in-flight jobs up to the
// shutdown timeout or the context deadline, whichever ends first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(d.shutdownTimeout):
		return errors.New("runway/worker: shutdown timeout exceeded")
	case <-ctx.Done():
		return ctx.Err()
	}
}
