package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/inferent/runway/job"
)

// Logging returns middleware that logs workload start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, rec *job.Record, next Handler) error {
		logger.Info("job execution started",
			slog.String("caller_id", rec.CallerID),
			slog.String("job_id", rec.JobID),
			slog.String("type", string(rec.Type)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job execution failed",
				slog.String("caller_id", rec.CallerID),
				slog.String("job_id", rec.JobID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job execution completed",
				slog.String("caller_id", rec.CallerID),
				slog.String("job_id", rec.JobID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
