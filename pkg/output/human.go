package output

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/sdejongh/treeverify/pkg/models"
)

var (
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	mutedColor   = color.New(color.FgHiBlack)
	headingColor = color.New(color.Bold)
)

// HumanFormatter prints phase lines, per-file differences and a summary table
type HumanFormatter struct {
	mu         sync.Mutex
	writer     io.Writer
	verbose    bool
	phaseStart time.Time
}

// NewHumanFormatter creates a new human-readable formatter.
// verbose also prints matched and skipped files.
func NewHumanFormatter(verbose bool) *HumanFormatter {
	return &HumanFormatter{verbose: verbose}
}

// Start prints the run header
func (f *HumanFormatter) Start(writer io.Writer, op *models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writer = writer
	if f.writer == nil {
		f.writer = io.Discard
	}

	headingColor.Fprintf(f.writer, "Verifying %s against %s\n", op.TargetPath, op.BasePath)
	return nil
}

// PhaseStart prints the phase label
func (f *HumanFormatter) PhaseStart(phase Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.phaseStart = time.Now()
	fmt.Fprintf(f.out(), "%s...\n", phase.Label())
	return nil
}

// Progress prints differences as they are found
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := f.out()

	if update.Type == UpdateFileSkipped {
		if f.verbose {
			mutedColor.Fprintf(w, "  - skipped %s (not a regular file)\n", update.FilePath)
		}
		return nil
	}

	switch update.Outcome {
	case models.OutcomeContentMismatch:
		failColor.Fprintf(w, "  ✗ %s", update.FilePath)
		fmt.Fprintf(w, " (content differs)\n")
	case models.OutcomeNotFoundInBase:
		warnColor.Fprintf(w, "  + %s", update.FilePath)
		fmt.Fprintf(w, " (not in base)\n")
	case models.OutcomeReadError:
		failColor.Fprintf(w, "  ! %s", update.FilePath)
		fmt.Fprintf(w, ": %v\n", update.Error)
	case models.OutcomeMatched:
		if f.verbose {
			okColor.Fprintf(w, "  ✓ %s\n", update.FilePath)
		}
	}

	return nil
}

// PhaseEnd prints the phase totals
func (f *HumanFormatter) PhaseEnd(phase Phase, files int, bytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.out(), "  %d files, %s in %s\n", files, formatBytes(bytes), formatDuration(time.Since(f.phaseStart)))
	return nil
}

// Complete prints the summary table and the verdict
func (f *HumanFormatter) Complete(report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return writeSummary(f.out(), report)
}

// Error reports a fatal error
func (f *HumanFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	failColor.Fprintf(f.out(), "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func (f *HumanFormatter) out() io.Writer {
	if f.writer == nil {
		return io.Discard
	}
	return f.writer
}

// writeSummary renders the counters as a table followed by a colored verdict
func writeSummary(w io.Writer, report *models.Report) error {
	fmt.Fprintf(w, "\n")

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Result", "Files"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft, tw.AlignRight}
	})

	rows := [][]string{
		{"Base files", strconv.Itoa(report.Stats.BaseFiles)},
		{"Target files", strconv.Itoa(report.Stats.TargetFiles)},
		{"Matched", strconv.Itoa(report.Stats.Matched)},
		{"Content mismatch", strconv.Itoa(len(report.Mismatches))},
		{"Not found in base", strconv.Itoa(len(report.NotFound))},
		{"Not compared", strconv.Itoa(len(report.NotCompared))},
		{"Read errors", strconv.Itoa(len(report.ReadErrors))},
		{"Skipped (base/target)", fmt.Sprintf("%d/%d", report.Stats.SkippedBase, report.Stats.SkippedTarget)},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nHashed %s in %s\n", formatBytes(report.Stats.BytesHashed), formatDuration(report.Duration))

	switch {
	case report.Identical():
		okColor.Fprintf(w, "Trees are identical\n")
	case report.Status == models.StatusPartial:
		warnColor.Fprintf(w, "Differences found (%d target files could not be read)\n", len(report.ReadErrors))
	default:
		failColor.Fprintf(w, "Differences found\n")
	}

	return nil
}
