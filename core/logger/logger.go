// Package logger declares the logging interface the planning core writes
// to. Concrete backends (zerolog in infra/logger) are injected by the
// caller so core packages never depend on a logging library directly.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields, used for per-cycle
	// plan summaries.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StructuredLogger can log structured debug information. It is implemented
// by the zerolog adapter and other structured backends.
type StructuredLogger interface {
	Debugw(msg string, fields map[string]any)
}
