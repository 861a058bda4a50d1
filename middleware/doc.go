// Package middleware wraps timer job execution.
//
// Middleware are composed with [Chain]; the first in the list is the
// outermost wrapper:
//
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// The engine installs Recover, Tracing, Metrics, Logging and Timeout in
// that order, followed by any middleware passed to engine.WithMiddleware.
// Each built-in reports an outcome of "ok", "error", "permanent" or
// "snoozed". Permanent failures are not retried; a snoozed job fired
// before its deadline and is put back without counting an attempt.
package middleware
