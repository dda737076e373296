package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// TestLogger writes one JSON object per record into a shared buffer so tests
// can assert on what the classifier and server logged.
type TestLogger struct {
	sink  *captureSink
	level Level
	attrs map[string]any
}

// captureSink is shared between a TestLogger and every logger derived from it
// with With.
type captureSink struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

// NewTestLogger returns a TestLogger dropping records below level, plus the
// buffer it writes to.
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	logger.Info("Ensemble built", log.ModelKindKey, "knn")
//	strings.Contains(buf.String(), "Ensemble built") // true
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &TestLogger{sink: &captureSink{buf: buf}, level: level, attrs: map[string]any{}}, buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, "DEBUG", msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.record(LevelInfo, "INFO", msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.record(LevelWarn, "WARN", msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.record(LevelError, "ERROR", msg, fields) }

// With returns a logger that adds fields to every record and writes to the
// same buffer.
func (t *TestLogger) With(fields ...any) Logger {
	attrs := make(map[string]any, len(t.attrs)+len(fields)/2)
	for k, v := range t.attrs {
		attrs[k] = v
	}
	mergeFields(attrs, fields)
	return &TestLogger{sink: t.sink, level: t.level, attrs: attrs}
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) record(level Level, name, msg string, fields []any) {
	if level < t.level {
		return
	}
	entry := make(map[string]any, len(t.attrs)+len(fields)/2+2)
	for k, v := range t.attrs {
		entry[k] = v
	}
	mergeFields(entry, fields)
	entry["level"] = name
	entry["message"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"marshal_error":%q}`, name, msg, err.Error()))
	}
	t.sink.mu.Lock()
	t.sink.buf.Write(line)
	t.sink.buf.WriteByte('\n')
	t.sink.mu.Unlock()
}

// mergeFields copies key/value pairs into dst. Errors are stored as their
// message so they survive JSON encoding; a trailing odd key is ignored.
func mergeFields(dst map[string]any, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = fields[i+1]
	}
}

func (t *TestLogger) contents() string {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.buf.String()
}

// GetLogEntries decodes every captured record.
func (t *TestLogger) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(t.contents(), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether message appears anywhere in the output.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.contents(), message)
}

// ContainsField reports whether any record has key set to value. Numbers
// compare as float64 after the JSON round trip.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	t.sink.buf.Reset()
	t.sink.mu.Unlock()
}

// TestLoggerProvider hands out TestLoggers sharing one buffer, for tests
// that swap the global provider.
type TestLoggerProvider struct {
	root *TestLogger
}

// NewTestLoggerProvider returns a provider and the buffer its loggers write to.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	root, buf := NewTestLogger(level)
	return &TestLoggerProvider{root: root}, buf
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.root }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) { p.root.level = level }
