package output

import (
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/treeverify/pkg/models"
)

// Phase names a stage of a verification run
type Phase string

const (
	// PhaseIndex builds the base index
	PhaseIndex Phase = "index"
	// PhaseCompare classifies target files
	PhaseCompare Phase = "compare"
)

// Label returns the console label of the phase
func (p Phase) Label() string {
	switch p {
	case PhaseIndex:
		return "Indexing base tree"
	case PhaseCompare:
		return "Comparing target tree"
	default:
		return string(p)
	}
}

// Update types
const (
	UpdateFileComplete = "file_complete"
	UpdateFileSkipped  = "file_skipped"
)

// ProgressUpdate represents a progress notification during a run
type ProgressUpdate struct {
	Type     string // UpdateFileComplete or UpdateFileSkipped
	Phase    Phase
	FilePath string
	Bytes    int64

	// Outcome is set for compare-phase completions
	Outcome models.OutcomeKind
	Error   error
}

// Formatter defines the interface for console output.
// Calls may come from different goroutines; implementations synchronize.
type Formatter interface {
	// Start initializes the formatter for a new run
	Start(writer io.Writer, op *models.Operation) error

	// PhaseStart announces a phase
	PhaseStart(phase Phase) error

	// Progress reports one processed or skipped file
	Progress(update ProgressUpdate) error

	// PhaseEnd closes a phase with its file and byte totals
	PhaseEnd(phase Phase, files int, bytes int64) error

	// Complete displays the final report
	Complete(report *models.Report) error

	// Error reports a fatal error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// NullFormatter discards all output
type NullFormatter struct{}

// NewNullFormatter creates a formatter for quiet runs
func NewNullFormatter() *NullFormatter {
	return &NullFormatter{}
}

func (f *NullFormatter) Start(io.Writer, *models.Operation) error { return nil }
func (f *NullFormatter) PhaseStart(Phase) error { return nil }
func (f *NullFormatter) Progress(ProgressUpdate) error { return nil }
func (f *NullFormatter) PhaseEnd(Phase, int, int64) error { return nil }
func (f *NullFormatter) Complete(*models.Report) error { return nil }
func (f *NullFormatter) Error(error) error { return nil }
func (f *NullFormatter) Name() string { return "quiet" }
