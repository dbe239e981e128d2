package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treeverify/internal/platform"
	"github.com/sdejongh/treeverify/pkg/config"
	"github.com/sdejongh/treeverify/pkg/models"
)

// validateVerifyFlags validates the verification flags.
// Root existence is checked by the engine so that it fails with root_invalid.
func validateVerifyFlags() error {
	if err := platform.ValidatePath(verifyFlags.Source); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	if err := platform.ValidatePath(verifyFlags.Target); err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}

	if verifyFlags.Parallel < 0 {
		return fmt.Errorf("invalid parallel value: %d (must not be negative)", verifyFlags.Parallel)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[verifyFlags.Format] {
		return fmt.Errorf("invalid report format: %s (valid: text, json)", verifyFlags.Format)
	}

	validPolicies := map[string]bool{
		"":       true,
		"record": true,
		"abort":  true,
	}
	if !validPolicies[verifyFlags.OnReadError] {
		return fmt.Errorf("invalid read error policy: %s (valid: record, abort)", verifyFlags.OnReadError)
	}

	validOutputs := map[string]bool{
		"":         true,
		"auto":     true,
		"human":    true,
		"progress": true,
		"json":     true,
	}
	if !validOutputs[verifyFlags.Output] {
		return fmt.Errorf("invalid output: %s (valid: auto, human, progress, json)", verifyFlags.Output)
	}

	return nil
}

// warnNested prints a warning when one tree lives inside the other: the
// outer tree then indexes or compares the inner tree's files too.
func warnNested(w io.Writer, base, target string) {
	if platform.IsNested(base, target) {
		fmt.Fprintf(w, "Warning: target %s is inside base %s\n", target, base)
	} else if platform.IsNested(target, base) {
		fmt.Fprintf(w, "Warning: base %s is inside target %s\n", base, target)
	}
}

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	if globalFlags.ConfigFile != "" {
		return config.LoadFromFile(globalFlags.ConfigFile)
	}
	return config.LoadDefault()
}

// applyFlagsToConfig overrides config values with the flags set on the command line
func applyFlagsToConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	// Report file
	if flags.Changed("out") || cfg.Verify.ReportPath == "" {
		cfg.Verify.ReportPath = verifyFlags.Out
	}
	if flags.Changed("format") {
		cfg.Verify.ReportFormat = models.ReportFormat(verifyFlags.Format)
	}

	// Read error policy
	if verifyFlags.OnReadError != "" {
		cfg.Verify.ReadErrorPolicy = models.ReadErrorPolicy(verifyFlags.OnReadError)
	}

	// Performance
	if verifyFlags.Parallel > 0 {
		cfg.Performance.MaxWorkers = verifyFlags.Parallel
	}
	if verifyFlags.BufferSize > 0 {
		cfg.Performance.BufferSize = verifyFlags.BufferSize
	}
	if verifyFlags.Bandwidth != "" {
		cfg.Performance.BandwidthLimit = verifyFlags.Bandwidth
	}

	// Exclude patterns
	if len(verifyFlags.Exclude) > 0 {
		cfg.Exclude = verifyFlags.Exclude
	}

	// Console output
	if verifyFlags.Output != "" {
		cfg.Output.Format = verifyFlags.Output
	}
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Logging, enabled by --log-file
	if verifyFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = verifyFlags.LogFile
	}
	if verifyFlags.LogFormat != "" {
		cfg.Logging.Format = verifyFlags.LogFormat
	}
	if verifyFlags.LogLevel != "" {
		cfg.Logging.Level = verifyFlags.LogLevel
	}
}

// createOperation creates a verify operation from configuration
func createOperation(cfg *config.Config) (*models.Operation, error) {
	base, err := platform.ResolveRoot(verifyFlags.Source)
	if err != nil {
		return nil, err
	}
	target, err := platform.ResolveRoot(verifyFlags.Target)
	if err != nil {
		return nil, err
	}

	bandwidth, err := cfg.BandwidthBytes()
	if err != nil {
		return nil, err
	}

	operation := &models.Operation{
		ID:              uuid.New().String(),
		BasePath:        base,
		TargetPath:      target,
		ExcludePatterns: cfg.Exclude,
		ReadErrorPolicy: cfg.Verify.ReadErrorPolicy,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		BandwidthLimit:  bandwidth,
		BufferSize:      cfg.Performance.BufferSize,
		CreatedAt:       time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}
