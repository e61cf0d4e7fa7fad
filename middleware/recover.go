package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/inferent/runway/job"
)

// Recover returns middleware that recovers from panics in the workload.
// Panics are converted to errors so the dispatcher records them as a
// failure outcome instead of crashing the process.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, rec *job.Record, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("workload panicked",
					slog.String("caller_id", rec.CallerID),
					slog.String("job_id", rec.JobID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in job %s: %v", rec.JobID, r)
			}
		}()
		return next(ctx)
	}
}
