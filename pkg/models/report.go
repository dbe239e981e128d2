package models

import (
	"sort"
	"time"
)

// Report represents the results of a verification run
type Report struct {
	// Operation details
	RunID      string
	BasePath   string
	TargetPath string

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Path lists
	Mismatches  []string
	NotFound    []string
	NotCompared []string
	ReadErrors  []ReadError

	// Overall status
	Status RunStatus
}

// Statistics holds verification counters
type Statistics struct {
	BaseFiles     int   // Files indexed from the base tree
	TargetFiles   int   // Target files that produced an outcome
	Matched       int   // Target files identical to their base file
	BytesHashed   int64 // Bytes read from both trees
	SkippedBase   int   // Non-regular entries skipped in the base tree
	SkippedTarget int   // Non-regular entries skipped in the target tree
}

// ReadError records a target file that could not be read
type ReadError struct {
	RelativePath string `json:"path"`
	Error        string `json:"error"`
}

// RunStatus represents the overall result
type RunStatus string

const (
	// StatusSuccess indicates every target file was classified from its content
	StatusSuccess RunStatus = "success"
	// StatusPartial indicates some target files could not be read
	StatusPartial RunStatus = "partial"
)

// ExitCode returns the process exit code for a completed run.
// Mismatches and unreadable target files are results, not process failures.
func (s RunStatus) ExitCode() int {
	return 0
}

// NewReport creates an empty report for an operation
func NewReport(op *Operation, start time.Time) *Report {
	return &Report{
		RunID:       op.ID,
		BasePath:    op.BasePath,
		TargetPath:  op.TargetPath,
		StartTime:   start,
		Mismatches:  make([]string, 0),
		NotFound:    make([]string, 0),
		NotCompared: make([]string, 0),
		ReadErrors:  make([]ReadError, 0),
		Status:      StatusSuccess,
	}
}

// Record accumulates one outcome. Not safe for concurrent use.
func (r *Report) Record(o Outcome) {
	r.Stats.TargetFiles++
	r.Stats.BytesHashed += o.Size

	if o.IsEqual() {
		r.Stats.Matched++
		return
	}

	switch o.Kind {
	case OutcomeContentMismatch:
		r.Mismatches = append(r.Mismatches, o.RelativePath)
	case OutcomeNotFoundInBase:
		r.NotFound = append(r.NotFound, o.RelativePath)
	case OutcomeReadError:
		msg := "unknown error"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		r.ReadErrors = append(r.ReadErrors, ReadError{RelativePath: o.RelativePath, Error: msg})
	}
}

// Finalize sets the not-compared list and closes the timing window.
// It must only be called once the target walk and all comparisons are done.
func (r *Report) Finalize(notCompared []string, end time.Time) {
	r.NotCompared = append(r.NotCompared[:0], notCompared...)

	sort.Strings(r.Mismatches)
	sort.Strings(r.NotFound)
	sort.Strings(r.NotCompared)
	sort.Slice(r.ReadErrors, func(i, j int) bool {
		return r.ReadErrors[i].RelativePath < r.ReadErrors[j].RelativePath
	})

	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)

	if len(r.ReadErrors) > 0 {
		r.Status = StatusPartial
	} else {
		r.Status = StatusSuccess
	}
}

// Unequal returns the number of target files not confirmed identical to a base file
func (r *Report) Unequal() int {
	return len(r.Mismatches) + len(r.NotFound) + len(r.ReadErrors)
}

// Identical reports whether both trees hold exactly the same file set
func (r *Report) Identical() bool {
	return r.Unequal() == 0 && len(r.NotCompared) == 0
}
