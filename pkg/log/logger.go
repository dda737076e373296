package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	numerrors "github.com/YuminosukeSato/numclass/pkg/errors"
)

// Options configures SetupLogger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "json" (default) or "console".
	Format string
	// File enables a rotating log file instead of stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger installs the process-wide zerolog provider and slog default,
// and routes estimator warnings to the log. The returned Closer flushes the
// rotating file when one is configured.
func SetupLogger(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out = rotating
		closer = rotating
	}

	zw := out
	if opts.Format == "console" {
		zw = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.File != ""}
	}
	SetProvider(NewZerologProvider(zw, level))

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(out, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	warnLogger := GetLoggerWithName("warnings")
	numerrors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})

	return closer, nil
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, numerrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

// ToLogLevel converts a Level to the slog equivalent.
func ToLogLevel(level Level) slog.Level {
	return slog.Level(level)
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
