package output

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/sdejongh/treeverify/pkg/models"
)

// progressTemplate shows files processed, bytes hashed, differences found and elapsed time.
// Totals are unknown while walking, so counters run without a bar.
const progressTemplate = `{{ string . "phase" | cyan }} {{ counters . }} files  {{ string . "bytes" }}  {{ string . "issues" }}  {{ etime . }}`

// ProgressFormatter renders one live counter line per phase
type ProgressFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	bar    *pb.ProgressBar

	bytes  int64
	issues int
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{}
}

// Start initializes the formatter
func (f *ProgressFormatter) Start(writer io.Writer, op *models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	return nil
}

// PhaseStart starts a new counter line
func (f *ProgressFormatter) PhaseStart(phase Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finishBar()
	f.bytes = 0
	f.issues = 0

	f.bar = pb.ProgressBarTemplate(progressTemplate).New(0)
	f.bar.SetWriter(f.writer)
	f.bar.SetRefreshRate(100 * time.Millisecond)
	f.bar.Set("phase", phase.Label())
	f.bar.Set("bytes", formatBytes(0))
	f.bar.Set("issues", "")
	f.bar.Start()
	return nil
}

// Progress advances the counter
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil || update.Type != UpdateFileComplete {
		return nil
	}

	f.bytes += update.Bytes
	f.bar.Increment()
	f.bar.Set("bytes", formatBytes(f.bytes))

	if update.Phase == PhaseCompare && update.Outcome != models.OutcomeMatched {
		f.issues++
		f.bar.Set("issues", warnColor.Sprintf("%d differences", f.issues))
	}
	return nil
}

// PhaseEnd freezes the counter line with the final totals
func (f *ProgressFormatter) PhaseEnd(phase Phase, files int, bytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.SetCurrent(int64(files))
		f.bar.Set("bytes", formatBytes(bytes))
	}
	f.finishBar()
	return nil
}

// Complete prints the summary table
func (f *ProgressFormatter) Complete(report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finishBar()
	return writeSummary(f.writer, report)
}

// Error stops the live line and prints the error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finishBar()
	if f.writer != nil {
		failColor.Fprintf(f.writer, "Error: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

// finishBar must be called with mu held
func (f *ProgressFormatter) finishBar() {
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
}
