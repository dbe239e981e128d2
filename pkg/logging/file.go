package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Format selects how entries are rendered
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FileLoggerConfig configures NewFileLogger
type FileLoggerConfig struct {
	Path   string // empty writes to stderr
	Format Format
	Level  Level // entries below Level are dropped

	// MaxSize rotates the file once it reaches this many bytes; 0 disables rotation.
	// Rotated files are Path.1 (newest) to Path.MaxBackups.
	MaxSize    int64
	MaxBackups int
}

// sink is the output shared by a logger and everything derived from it
type sink struct {
	mu     sync.Mutex
	config FileLoggerConfig
	file   *os.File // nil for plain writers and after Close
	writer io.Writer
	size   int64
}

// FileLogger writes one line per entry to a file or stream
type FileLogger struct {
	sink   *sink
	fields Fields
}

// NewFileLogger appends to config.Path, creating parent directories as needed
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return NewWriterLogger(os.Stderr, config.Format, config.Level), nil
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, size, err := openAppend(config.Path)
	if err != nil {
		return nil, err
	}

	return &FileLogger{sink: &sink{config: config, file: file, writer: file, size: size}}, nil
}

// NewWriterLogger writes to w and never rotates
func NewWriterLogger(w io.Writer, format Format, level Level) *FileLogger {
	return &FileLogger{sink: &sink{
		config: FileLoggerConfig{Format: format, Level: level},
		writer: w,
	}}
}

func openAppend(path string) (*os.File, int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return file, info.Size(), nil
}

func (l *FileLogger) Debug(_ context.Context, msg string, fields Fields) {
	l.emit(DebugLevel, msg, nil, fields)
}

func (l *FileLogger) Info(_ context.Context, msg string, fields Fields) {
	l.emit(InfoLevel, msg, nil, fields)
}

func (l *FileLogger) Warn(_ context.Context, msg string, fields Fields) {
	l.emit(WarnLevel, msg, nil, fields)
}

func (l *FileLogger) Error(_ context.Context, msg string, err error, fields Fields) {
	l.emit(ErrorLevel, msg, err, fields)
}

// WithFields returns a child logger writing to the same sink
func (l *FileLogger) WithFields(fields Fields) Logger {
	return &FileLogger{sink: l.sink, fields: merge(l.fields, fields)}
}

// Close closes the log file. Later entries are discarded. Loggers built on
// a caller-supplied writer leave it open.
func (l *FileLogger) Close() error {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.writer = nil, io.Discard
	return err
}

func (l *FileLogger) emit(level Level, msg string, err error, fields Fields) {
	s := l.sink
	if level < s.config.Level {
		return
	}

	all := merge(l.fields, fields)
	var line []byte
	if s.config.Format == FormatJSON {
		var encErr error
		if line, encErr = encodeJSON(level, msg, err, all); encErr != nil {
			return
		}
	} else {
		line = encodeText(level, msg, err, all)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil && s.config.MaxSize > 0 && s.size >= s.config.MaxSize {
		s.rotate()
	}
	n, _ := s.writer.Write(line)
	s.size += int64(n)
}

func merge(a, b Fields) Fields {
	out := make(Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// encodeJSON renders one JSON object. Fields cannot override the
// timestamp, level, message or error keys.
func encodeJSON(level Level, msg string, err error, fields Fields) ([]byte, error) {
	obj := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		obj[k] = v
	}
	obj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	obj["level"] = level.String()
	obj["message"] = msg
	if err != nil {
		obj["error"] = err.Error()
	}

	data, jerr := json.Marshal(obj)
	if jerr != nil {
		return nil, jerr
	}
	return append(data, '\n'), nil
}

// encodeText renders `2006-01-02T15:04:05.000Z [LEVEL] msg error="..." k=v`
// with field keys in sorted order
func encodeText(level Level, msg string, err error, fields Fields) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), level, msg)
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// rotate renames Path.i to Path.i+1, drops the oldest backup and starts a
// fresh Path. The caller holds s.mu.
func (s *sink) rotate() {
	s.file.Close()
	path := s.config.Path
	backup := func(i int) string { return fmt.Sprintf("%s.%d", path, i) }

	if s.config.MaxBackups > 0 {
		os.Remove(backup(s.config.MaxBackups))
		for i := s.config.MaxBackups - 1; i >= 1; i-- {
			os.Rename(backup(i), backup(i+1))
		}
		os.Rename(path, backup(1))
	} else {
		os.Remove(path)
	}

	file, size, err := openAppend(path)
	if err != nil {
		s.file, s.writer = nil, io.Discard
		return
	}
	s.file, s.writer, s.size = file, file, size
}
