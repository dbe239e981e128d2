// Package logging writes structured run logs as text or JSON lines.
package logging

import (
	"context"
	"strings"
)

// Level is the severity of an entry
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name used in log lines
func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps debug, info, warn (or warning) and error, in any case,
// to a Level. Anything else is InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Fields are key/value pairs attached to an entry
type Fields map[string]interface{}

// Logger is implemented by FileLogger and NullLogger. Loggers derived with
// WithFields share the parent's output.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a logger adding fields to every entry
	WithFields(fields Fields) Logger

	// Close flushes and releases the output
	Close() error
}
