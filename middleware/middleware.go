// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps the execution capability invoked by the dispatcher.
// Middleware are composed with [Chain] and applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → capability
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware

import (
	"context"

	"github.com/inferent/runway/job"
)

// Handler is the terminal function that executes the workload.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the record being executed, and the next handler to call.
type Middleware func(ctx context.Context, rec *job.Record, next Handler) error

// Chain composes multiple middleware into a single Middleware.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, rec *job.Record, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, rec, prev)
			}
		}
		return h(ctx)
	}
}
