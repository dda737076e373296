// Package log is the structured logging layer of numclass.
//
// Code logs through the Logger interface with alternating key/value fields
// using the keys declared in attributes.go. The default provider writes JSON
// through zerolog; SetupLogger installs it with file rotation and routes
// slog and estimator warnings through the same sink.
//
//	logger := log.GetLoggerWithName("classifier").With(log.ModelKindKey, "svc")
//	logger.Info("Fold evaluated", log.FoldKey, 3, log.AccuracyKey, 1.0)
package log

import "context"

// Logger is the slog-shaped interface every component logs through.
// An error passed as a field value is rendered with its message.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger that adds fields to every record.
	With(fields ...any) Logger

	Enabled(ctx context.Context, level Level) bool
}

// Level uses the numeric values of slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// LoggerProvider creates loggers. SetProvider swaps the global one.
type LoggerProvider interface {
	GetLogger() Logger
	// GetLoggerWithName tags the logger with ComponentKey=name.
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
