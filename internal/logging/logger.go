// Package logging defines the structured-logging interface every KStor
// component logs through: controllers, the dispatcher, and the socket
// server all take a Logger rather than reaching for the slog package
// directly, so the backing implementation can change without touching
// call sites.
package logging

import "context"

// Logger is a context-aware, structured logger. With derives named child
// loggers per component — socketserver.New tags its logger "module",
// "socketserver" so every accept/spawn/panic line is attributable at a
// glance in a process running several subsystems at once.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
