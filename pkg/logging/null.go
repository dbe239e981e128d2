package logging

import "context"

// NullLogger discards every entry. The CLI uses it when no log file is
// configured.
type NullLogger struct{}

// NewNullLogger returns a logger that writes nothing
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (*NullLogger) Debug(context.Context, string, Fields)        {}
func (*NullLogger) Info(context.Context, string, Fields)         {}
func (*NullLogger) Warn(context.Context, string, Fields)         {}
func (*NullLogger) Error(context.Context, string, error, Fields) {}

// WithFields returns the receiver; there is nothing to annotate.
func (l *NullLogger) WithFields(Fields) Logger { return l }

func (*NullLogger) Close() error { return nil }
