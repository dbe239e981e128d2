package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdejongh/treeverify/pkg/config"
	"github.com/sdejongh/treeverify/pkg/logging"
	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/output"
	"github.com/sdejongh/treeverify/pkg/verify"
)

// VerifyFlags holds the verification flags of the root command
type VerifyFlags struct {
	Source      string
	Target      string
	Out         string
	Format      string
	Parallel    int
	BufferSize  int
	Bandwidth   string
	OnReadError string
	Exclude     []string
	Output      string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var verifyFlags VerifyFlags

// runStatus is the status of the last completed verification
var runStatus models.RunStatus

// NewRootCommand creates the treeverify command. Running it without a
// subcommand verifies the target tree against the base tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treeverify",
		Short: "Verify a directory tree against a base tree",
		Long: `treeverify checks that every file of a target tree has identical content
at the same relative path in a base tree. It indexes the base tree by path,
hashes both trees with SHA-256 and reports content mismatches, files missing
from the base and base files never compared.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", resolvedVersion(), Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runVerify,
	}

	AddGlobalFlags(cmd)

	// Required flags
	cmd.Flags().StringVarP(&verifyFlags.Source, "source", "s", "", "base directory path (required)")
	cmd.Flags().StringVarP(&verifyFlags.Target, "target", "t", "", "target directory path (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	// Report flags
	cmd.Flags().StringVarP(&verifyFlags.Out, "out", "o", output.DefaultReportPath, "report file path")
	cmd.Flags().StringVar(&verifyFlags.Format, "format", "text", "report file format: text, json")

	// Optional flags
	cmd.Flags().IntVarP(&verifyFlags.Parallel, "parallel", "p", 0, "maximum number of files hashed concurrently (default from config: 8)")
	cmd.Flags().IntVar(&verifyFlags.BufferSize, "buffer-size", 0, "read buffer size in bytes (default from config: 65536)")
	cmd.Flags().StringVarP(&verifyFlags.Bandwidth, "bandwidth", "b", "", "read bandwidth limit (e.g., \"10M\", \"1G\")")
	cmd.Flags().StringVar(&verifyFlags.OnReadError, "on-read-error", "", "unreadable target files: record, abort (default: record)")
	cmd.Flags().StringSliceVar(&verifyFlags.Exclude, "exclude", []string{}, "glob patterns to exclude from both trees")
	cmd.Flags().StringVar(&verifyFlags.Output, "output", "", "console output: auto, human, progress, json (default: auto)")

	// Logging flags
	cmd.Flags().StringVar(&verifyFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&verifyFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&verifyFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the root command and returns the process exit code.
// Errors the console formatter has not already shown are printed to stderr.
func Execute(ctx context.Context) int {
	return execute(ctx, NewRootCommand())
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	runStatus = models.StatusSuccess
	if err := cmd.ExecuteContext(ctx); err != nil {
		var shown *displayedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return runStatus.ExitCode()
}

// displayedError wraps a fatal error already rendered by the formatter
type displayedError struct {
	err error
}

func (e *displayedError) Error() string { return e.err.Error() }
func (e *displayedError) Unwrap() error { return e.err }

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate flags
	if err := validateVerifyFlags(); err != nil {
		return err
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	applyFlagsToConfig(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	operation, err := createOperation(cfg)
	if err != nil {
		return fmt.Errorf("failed to create verify operation: %w", err)
	}

	stdout := cmd.OutOrStdout()
	warnNested(cmd.ErrOrStderr(), operation.BasePath, operation.TargetPath)

	// Create logger
	logger, err := createLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	formatter := createFormatter(cfg, stdout)

	engine := verify.NewEngine(verify.Config{
		Operation: operation,
		Formatter: formatter,
		Output:    stdout,
		Logger:    logger,
	})

	report, err := engine.Run(ctx)
	if err != nil {
		if formatter.Name() == "quiet" {
			return err
		}
		return &displayedError{err: err}
	}
	runStatus = report.Status

	if err := output.WriteReport(report, cfg.Verify.ReportPath, cfg.Verify.ReportFormat); err != nil {
		logger.Error(ctx, "Failed to write report", err, logging.Fields{"path": cfg.Verify.ReportPath})
		return err
	}
	logger.Info(ctx, "Report written", logging.Fields{
		"path":   cfg.Verify.ReportPath,
		"format": string(cfg.Verify.ReportFormat),
	})

	if formatter.Name() == "human" || formatter.Name() == "progress" {
		fmt.Fprintf(stdout, "Report written to %s\n", cfg.Verify.ReportPath)
	}

	// Differences and unreadable target files are results, not failures
	return nil
}

// createFormatter picks the console formatter. "auto" uses the live
// progress line on terminals and plain lines otherwise.
func createFormatter(cfg *config.Config, w io.Writer) output.Formatter {
	if cfg.Output.Quiet {
		return output.NewNullFormatter()
	}

	switch cfg.Output.Format {
	case "json":
		return output.NewJSONFormatter()
	case "human":
		return output.NewHumanFormatter(globalFlags.Verbose)
	case "progress":
		return output.NewProgressFormatter()
	default:
		if cfg.Output.Progress && !globalFlags.Verbose && isTerminal(w) {
			return output.NewProgressFormatter()
		}
		return output.NewHumanFormatter(globalFlags.Verbose)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// createLogger creates a logger based on configuration
func createLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	// Logging stays off unless enabled in config or a log file is given
	if !cfg.Enabled && cfg.File == "" {
		return logging.NewNullLogger(), nil
	}

	// Parse log format
	var format logging.Format
	switch cfg.Format {
	case "json":
		format = logging.FormatJSON
	default:
		format = logging.FormatText
	}

	// Create file logger
	loggerConfig := logging.FileLoggerConfig{
		Path:       cfg.File,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Level),
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	}

	return logging.NewFileLogger(loggerConfig)
}
