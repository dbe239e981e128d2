package models

import (
	"time"
)

// ReadErrorPolicy defines what happens when a target file cannot be read
type ReadErrorPolicy string

const (
	// ReadErrorRecord records the file as a read error and keeps going
	ReadErrorRecord ReadErrorPolicy = "record"
	// ReadErrorAbort fails the whole run on the first unreadable target file
	ReadErrorAbort ReadErrorPolicy = "abort"
)

// ReportFormat defines the on-disk report format
type ReportFormat string

const (
	// ReportText is the human-readable text report
	ReportText ReportFormat = "text"
	// ReportJSON is the machine-readable JSON report
	ReportJSON ReportFormat = "json"
)

// Operation represents one verification run configuration
type Operation struct {
	ID              string
	BasePath        string
	TargetPath      string
	ExcludePatterns []string
	ReadErrorPolicy ReadErrorPolicy
	MaxWorkers      int   // Maximum number of files hashed concurrently
	BandwidthLimit  int64 // bytes per second, 0 = unlimited
	BufferSize      int
	CreatedAt       time.Time
}

// Validate checks if the operation configuration is valid
func (op *Operation) Validate() error {
	if op.BasePath == "" {
		return &ValidationError{Field: "BasePath", Message: "base path is required"}
	}

	if op.TargetPath == "" {
		return &ValidationError{Field: "TargetPath", Message: "target path is required"}
	}

	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}

	if op.BufferSize < 4096 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 4096 bytes"}
	}

	if op.BandwidthLimit < 0 {
		return &ValidationError{Field: "BandwidthLimit", Message: "bandwidth limit cannot be negative"}
	}

	switch op.ReadErrorPolicy {
	case ReadErrorRecord, ReadErrorAbort:
	default:
		return &ValidationError{Field: "ReadErrorPolicy", Message: "must be 'record' or 'abort'"}
	}

	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
