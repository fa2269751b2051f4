package logger

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value context for a log entry.
type Fields map[string]interface{}

// Logger wraps zerolog.Logger and provides structured logging capabilities.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger for the given environment writing to stdout.
// Development gets colored console output at debug level; every other
// environment gets JSON at info level.
func New(env string) *Logger {
	var output io.Writer = os.Stdout
	if env == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return NewWithWriter(output, env)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer, env string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if env == "development" {
		level = zerolog.DebugLevel
	}

	zlog := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields Fields) {
	withFields(l.zlog.Debug(), fields).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields Fields) {
	withFields(l.zlog.Info(), fields).Msg(msg)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields Fields) {
	withFields(l.zlog.Warn(), fields).Msg(msg)
}

// Error logs an error message with an error and optional fields.
func (l *Logger) Error(msg string, err error, fields Fields) {
	withFields(l.zlog.Error().Err(err), fields).Msg(msg)
}

// Fatal logs a fatal message and exits the application.
func (l *Logger) Fatal(msg string, err error, fields Fields) {
	withFields(l.zlog.Fatal().Err(err), fields).Msg(msg)
}

// With creates a child logger with additional context fields.
func (l *Logger) With(fields Fields) *Logger {
	ctx := l.zlog.With()
	for _, key := range sortedKeys(fields) {
		ctx = ctx.Interface(key, fields[key])
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithRequestID creates a child logger with a request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("request_id", requestID).Logger()}
}

// WithStage creates a child logger tagged with a pipeline stage name.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("stage", stage).Logger()}
}

// GetZerolog returns the underlying zerolog.Logger for advanced usage.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// withFields attaches fields in key order so output is stable.
func withFields(event *zerolog.Event, fields Fields) *zerolog.Event {
	for _, key := range sortedKeys(fields) {
		event = event.Interface(key, fields[key])
	}
	return event
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
