package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sdejongh/treeverify/pkg/models"
)

// ReportDocument is the JSON form of a report, shared by the JSON formatter
// and the JSON report file
type ReportDocument struct {
	RunID       string             `json:"run_id"`
	BasePath    string             `json:"base_path"`
	TargetPath  string             `json:"target_path"`
	StartTime   string             `json:"start_time"`
	EndTime     string             `json:"end_time"`
	Duration    string             `json:"duration"`
	DurationMs  int64              `json:"duration_ms"`
	Status      string             `json:"status"`
	Identical   bool               `json:"identical"`
	Counts      ReportCounts       `json:"counts"`
	Mismatches  []string           `json:"mismatches"`
	NotFound    []string           `json:"not_found_in_base"`
	NotCompared []string           `json:"not_compared"`
	ReadErrors  []models.ReadError `json:"read_errors"`
}

// ReportCounts holds the numeric part of a report
type ReportCounts struct {
	BaseFiles     int   `json:"base_files"`
	TargetFiles   int   `json:"target_files"`
	Matched       int   `json:"matched"`
	Mismatches    int   `json:"mismatches"`
	NotFound      int   `json:"not_found_in_base"`
	NotCompared   int   `json:"not_compared"`
	ReadErrors    int   `json:"read_errors"`
	SkippedBase   int   `json:"skipped_base"`
	SkippedTarget int   `json:"skipped_target"`
	BytesHashed   int64 `json:"bytes_hashed"`
}

// NewReportDocument converts a report to its JSON form
func NewReportDocument(report *models.Report) ReportDocument {
	return ReportDocument{
		RunID:      report.RunID,
		BasePath:   report.BasePath,
		TargetPath: report.TargetPath,
		StartTime:  report.StartTime.Format(time.RFC3339),
		EndTime:    report.EndTime.Format(time.RFC3339),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Status:     string(report.Status),
		Identical:  report.Identical(),
		Counts: ReportCounts{
			BaseFiles:     report.Stats.BaseFiles,
			TargetFiles:   report.Stats.TargetFiles,
			Matched:       report.Stats.Matched,
			Mismatches:    len(report.Mismatches),
			NotFound:      len(report.NotFound),
			NotCompared:   len(report.NotCompared),
			ReadErrors:    len(report.ReadErrors),
			SkippedBase:   report.Stats.SkippedBase,
			SkippedTarget: report.Stats.SkippedTarget,
			BytesHashed:   report.Stats.BytesHashed,
		},
		Mismatches:  nonNil(report.Mismatches),
		NotFound:    nonNil(report.NotFound),
		NotCompared: nonNil(report.NotCompared),
		ReadErrors:  report.ReadErrors,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// JSONFormatter prints nothing while running and the report document at the end,
// for automation and scripting
type JSONFormatter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, op *models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	return nil
}

// PhaseStart does nothing
func (f *JSONFormatter) PhaseStart(phase Phase) error { return nil }

// Progress does nothing, keeping the output a single parseable document
func (f *JSONFormatter) Progress(update ProgressUpdate) error { return nil }

// PhaseEnd does nothing
func (f *JSONFormatter) PhaseEnd(phase Phase, files int, bytes int64) error { return nil }

// Complete writes the report document
func (f *JSONFormatter) Complete(report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.encode(NewReportDocument(report))
}

// Error writes an error document
func (f *JSONFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.encode(map[string]string{
		"status": "error",
		"error":  err.Error(),
	})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func (f *JSONFormatter) encode(v any) error {
	w := f.writer
	if w == nil {
		w = io.Discard
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
