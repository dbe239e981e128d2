package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/sdejongh/treeverify/pkg/config"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/output"
)

// TestHelper provides temporary base and target trees for command tests
type TestHelper struct {
	t         *testing.T
	tempDir   string
	baseDir   string
	targetDir string
}

// NewTestHelper creates the trees and isolates the default config location
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	color.NoColor = true

	tempDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tempDir, "home"))

	h := &TestHelper{
		t:         t,
		tempDir:   tempDir,
		baseDir:   filepath.Join(tempDir, "base"),
		targetDir: filepath.Join(tempDir, "target"),
	}
	for _, dir := range []string{h.baseDir, h.targetDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return h
}

// CreateFile writes a file below root
func (h *TestHelper) CreateFile(root, rel, content string) {
	h.t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		h.t.Fatalf("failed to create parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to write %s: %v", rel, err)
	}
}

// ReportPath returns a report location inside the temp dir
func (h *TestHelper) ReportPath(name string) string {
	return filepath.Join(h.tempDir, name)
}

// Execute runs the root command with args and returns its output
func (h *TestHelper) Execute(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVerifyIdenticalTrees(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.baseDir, "docs/b.txt", "bbb")
	h.CreateFile(h.targetDir, "a.txt", "hello")
	h.CreateFile(h.targetDir, "docs/b.txt", "bbb")

	report := h.ReportPath("report.txt")
	stdout, _, err := h.Execute("-s", h.baseDir, "-t", h.targetDir, "-o", report, "--output", "human")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(stdout, "Trees are identical") {
		t.Errorf("stdout missing verdict:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Report written to "+report) {
		t.Errorf("stdout missing report location:\n%s", stdout)
	}

	content, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	for _, want := range []string{"Base files: 2\n", "Compared files: 2\n", "Status: success\n"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("report missing %q\n%s", want, content)
		}
	}
}

func TestVerifyDifferencesExitZero(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.baseDir, "only-base.txt", "x")
	h.CreateFile(h.targetDir, "a.txt", "world")
	h.CreateFile(h.targetDir, "new.txt", "new")

	report := h.ReportPath("report.json")
	_, _, err := h.Execute("--source", h.baseDir, "--target", h.targetDir,
		"--out", report, "--format", "json", "--quiet", "--parallel", "2")
	if err != nil {
		t.Fatalf("differences must not fail the command: %v", err)
	}

	content, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	var doc output.ReportDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	if len(doc.Mismatches) != 1 || doc.Mismatches[0] != "a.txt" {
		t.Errorf("mismatches = %v, want [a.txt]", doc.Mismatches)
	}
	if len(doc.NotFound) != 1 || doc.NotFound[0] != "new.txt" {
		t.Errorf("not found = %v, want [new.txt]", doc.NotFound)
	}
	if len(doc.NotCompared) != 1 || doc.NotCompared[0] != "only-base.txt" {
		t.Errorf("not compared = %v, want [only-base.txt]", doc.NotCompared)
	}
}

func TestVerifyJSONConsoleOutput(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.targetDir, "a.txt", "hello")

	stdout, _, err := h.Execute("-s", h.baseDir, "-t", h.targetDir, "-o", h.ReportPath("r.txt"), "--output", "json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var doc output.ReportDocument
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("stdout is not a JSON document: %v\n%s", err, stdout)
	}
	if !doc.Identical || doc.Counts.Matched != 1 {
		t.Errorf("document = %+v", doc)
	}
}

func TestVerifyMissingBaseRoot(t *testing.T) {
	h := NewTestHelper(t)
	report := h.ReportPath("report.txt")

	stdout, _, err := h.Execute("-s", filepath.Join(h.tempDir, "missing"), "-t", h.targetDir, "-o", report, "--output", "human")

	var fe *models.FatalError
	if !errors.As(err, &fe) || fe.Kind != models.FatalRootInvalid {
		t.Fatalf("Execute() error = %v, want root_invalid", err)
	}
	var shown *displayedError
	if !errors.As(err, &shown) {
		t.Error("the formatter already displayed the error")
	}
	if !strings.Contains(stdout, "Error: root_invalid") {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(report); !os.IsNotExist(err) {
		t.Error("no report may be written after a fatal error")
	}
}

func TestVerifyQuietFatalErrorNotDisplayed(t *testing.T) {
	h := NewTestHelper(t)

	_, _, err := h.Execute("-q", "-s", filepath.Join(h.tempDir, "missing"), "-t", h.targetDir, "-o", h.ReportPath("r.txt"))
	if err == nil {
		t.Fatal("Execute() should fail")
	}
	var shown *displayedError
	if errors.As(err, &shown) {
		t.Error("quiet runs leave error display to the caller")
	}
}

func TestExecuteExitCode(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.targetDir, "a.txt", "world")
	h.CreateFile(h.targetDir, "new.txt", "new")

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStatus models.RunStatus
		wantStderr string
	}{
		{
			name:       "DifferencesExitZero",
			args:       []string{"-q", "-s", h.baseDir, "-t", h.targetDir, "-o", h.ReportPath("diff.txt")},
			wantCode:   0,
			wantStatus: models.StatusSuccess,
		},
		{
			name:       "FatalErrorExitOne",
			args:       []string{"-q", "-s", filepath.Join(h.tempDir, "missing"), "-t", h.targetDir, "-o", h.ReportPath("fatal.txt")},
			wantCode:   1,
			wantStatus: models.StatusSuccess,
			wantStderr: "Error: root_invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			cmd := NewRootCommand()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)

			if code := execute(context.Background(), cmd); code != tt.wantCode {
				t.Errorf("execute() = %d, want %d\nstderr: %s", code, tt.wantCode, stderr.String())
			}
			if runStatus != tt.wantStatus {
				t.Errorf("runStatus = %s, want %s", runStatus, tt.wantStatus)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestVerifyInvalidFlags(t *testing.T) {
	h := NewTestHelper(t)

	tests := []struct {
		name string
		args []string
	}{
		{"MissingTarget", []string{"-s", h.baseDir}},
		{"BadPolicy", []string{"-s", h.baseDir, "-t", h.targetDir, "--on-read-error", "retry"}},
		{"BadReportFormat", []string{"-s", h.baseDir, "-t", h.targetDir, "--format", "xml"}},
		{"BadOutput", []string{"-s", h.baseDir, "-t", h.targetDir, "--output", "fancy"}},
		{"BadBandwidth", []string{"-s", h.baseDir, "-t", h.targetDir, "--bandwidth", "fast"}},
		{"NegativeParallel", []string{"-s", h.baseDir, "-t", h.targetDir, "--parallel", "-1"}},
		{"UnexpectedArgument", []string{"-s", h.baseDir, "-t", h.targetDir, "extra"}},
		{"VerboseAndQuiet", []string{"-s", h.baseDir, "-t", h.targetDir, "-v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "-o", h.ReportPath(tt.name+".txt"), "-q")
			if _, _, err := h.Execute(args...); err == nil {
				t.Error("Execute() should fail")
			}
		})
	}
}

func TestVerifyWithConfigFile(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.baseDir, ".cache/x", "1")
	h.CreateFile(h.targetDir, "a.txt", "hello")

	cfg := config.Default()
	cfg.Verify.ReportFormat = models.ReportJSON
	cfg.Verify.ReportPath = h.ReportPath("from-config.json")
	cfg.Exclude = []string{".cache/"}
	cfgPath := h.ReportPath("config.yaml")
	if err := config.SaveToFile(cfg, cfgPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, _, err := h.Execute("--config", cfgPath, "-q", "-s", h.baseDir, "-t", h.targetDir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content, err := os.ReadFile(cfg.Verify.ReportPath)
	if err != nil {
		t.Fatalf("report not written at the configured path: %v", err)
	}
	var doc output.ReportDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("configured report format not used: %v", err)
	}
	if !doc.Identical {
		t.Errorf("excluded base directory should not be reported: %+v", doc)
	}
}

func TestVerifyLogFile(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateFile(h.baseDir, "a.txt", "hello")
	h.CreateFile(h.targetDir, "a.txt", "hello")

	logPath := h.ReportPath("run.log")
	_, _, err := h.Execute("-q", "-s", h.baseDir, "-t", h.targetDir, "-o", h.ReportPath("r.txt"),
		"--log-file", logPath, "--log-format", "json", "--log-level", "debug")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(content), `"message":"Verification completed"`) {
		t.Errorf("log file = %s", content)
	}
}

func TestApplyFlagsToConfig(t *testing.T) {
	NewTestHelper(t)
	cmd := NewRootCommand()
	err := cmd.ParseFlags([]string{
		"-s", "base", "-t", "target",
		"--on-read-error", "abort",
		"--parallel", "3",
		"--bandwidth", "5M",
		"--exclude", "*.tmp",
		"--log-file", "x.log",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.Default()
	cfg.Verify.ReportFormat = models.ReportJSON
	applyFlagsToConfig(cmd, cfg)

	if cfg.Verify.ReadErrorPolicy != models.ReadErrorAbort {
		t.Errorf("ReadErrorPolicy = %s, want abort", cfg.Verify.ReadErrorPolicy)
	}
	if cfg.Verify.ReportFormat != models.ReportJSON {
		t.Error("an unset --format flag must not override the config file")
	}
	if cfg.Performance.MaxWorkers != 3 || cfg.Performance.BandwidthLimit != "5M" {
		t.Errorf("Performance = %+v", cfg.Performance)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "*.tmp" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if !cfg.Logging.Enabled || cfg.Logging.File != "x.log" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestCreateFormatter(t *testing.T) {
	tests := []struct {
		name   string
		format string
		quiet  bool
		want   string
	}{
		{"Quiet", "human", true, "quiet"},
		{"JSON", "json", false, "json"},
		{"Human", "human", false, "human"},
		{"Progress", "progress", false, "progress"},
		{"AutoNotTerminal", "auto", false, "human"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Output.Format = tt.format
			cfg.Output.Quiet = tt.quiet

			if got := createFormatter(cfg, &bytes.Buffer{}).Name(); got != tt.want {
				t.Errorf("createFormatter() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfigInitAndShow(t *testing.T) {
	h := NewTestHelper(t)
	cfgPath := h.ReportPath("conf/config.yaml")

	stdout, _, err := h.Execute("config", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(stdout, cfgPath) {
		t.Errorf("stdout = %q", stdout)
	}

	if _, _, err := h.Execute("config", "init", "--config", cfgPath); err == nil {
		t.Error("config init should refuse to overwrite without --force")
	}
	if _, _, err := h.Execute("config", "init", "--config", cfgPath, "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}

	stdout, _, err = h.Execute("config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	want := map[string]string{
		"verify.read_error_policy":    "record",
		"performance.max_workers":     "8",
		"performance.bandwidth_limit": "unlimited",
	}
	for key, value := range want {
		found := false
		for _, line := range strings.Split(stdout, "\n") {
			if strings.Contains(line, key) && strings.Contains(line, value) {
				found = true
			}
		}
		if !found {
			t.Errorf("config show has no row %s = %s\n%s", key, value, stdout)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	h := NewTestHelper(t)

	stdout, _, err := h.Execute("version", "--short")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(stdout) != resolvedVersion() {
		t.Errorf("version --short = %q, want %q", stdout, resolvedVersion())
	}
}
