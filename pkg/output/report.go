package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sdejongh/treeverify/pkg/models"
)

// DefaultReportPath is the report file written when no path is given
const DefaultReportPath = "diff_output.txt"

// WriteReport writes the report file in the given format ("text" or "json").
// The file is written even when the trees are identical.
func WriteReport(report *models.Report, path string, format models.ReportFormat) error {
	if path == "" {
		path = DefaultReportPath
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	w := bufio.NewWriter(file)
	switch format {
	case models.ReportJSON:
		err = writeReportJSON(report, w)
	default:
		err = writeReportText(report, w)
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// writeReportText writes the counters followed by each path list, one tab-indented path per line
func writeReportText(report *models.Report, w io.Writer) error {
	fmt.Fprintf(w, "Process duration: %s\n", formatDuration(report.Duration))
	fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(w, "Base path: %s\n", report.BasePath)
	fmt.Fprintf(w, "Target path: %s\n", report.TargetPath)
	fmt.Fprintf(w, "Base files: %d\n", report.Stats.BaseFiles)
	fmt.Fprintf(w, "Compared files: %d\n", report.Stats.TargetFiles)
	fmt.Fprintf(w, "Matched: %d\n", report.Stats.Matched)
	fmt.Fprintf(w, "Content mismatches: %d\n", len(report.Mismatches))
	fmt.Fprintf(w, "Not found in base: %d\n", len(report.NotFound))
	fmt.Fprintf(w, "Not compared: %d\n", len(report.NotCompared))
	fmt.Fprintf(w, "Read errors: %d\n", len(report.ReadErrors))
	fmt.Fprintf(w, "Skipped entries (base/target): %d/%d\n", report.Stats.SkippedBase, report.Stats.SkippedTarget)
	fmt.Fprintf(w, "Status: %s\n", report.Status)

	writeList(w, "Content mismatches", report.Mismatches)
	writeList(w, "Not found in base", report.NotFound)
	writeList(w, "Not compared", report.NotCompared)

	fmt.Fprintf(w, "\nRead errors:\n")
	for _, re := range report.ReadErrors {
		fmt.Fprintf(w, "\t%s: %s\n", re.RelativePath, re.Error)
	}

	return nil
}

func writeList(w io.Writer, title string, paths []string) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, p := range paths {
		fmt.Fprintf(w, "\t%s\n", p)
	}
}

func writeReportJSON(report *models.Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewReportDocument(report))
}
