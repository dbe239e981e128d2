// Package config holds the persistent treeverify settings. Command-line
// flags are applied on top of a loaded Config.
package config

import (
	"strings"

	"github.com/sdejongh/treeverify/pkg/models"
	"github.com/sdejongh/treeverify/pkg/ratelimit"
)

// Config is the YAML configuration file
type Config struct {
	Verify      VerifyConfig      `yaml:"verify"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	// Exclude holds glob patterns matched against relative paths of both trees
	Exclude []string `yaml:"exclude"`
}

// VerifyConfig controls what a run produces
type VerifyConfig struct {
	ReadErrorPolicy models.ReadErrorPolicy `yaml:"read_error_policy"`
	ReportFormat    models.ReportFormat    `yaml:"report_format"`
	ReportPath      string                 `yaml:"report_path"`
}

// PerformanceConfig bounds hashing concurrency and I/O
type PerformanceConfig struct {
	MaxWorkers     int    `yaml:"max_workers"`
	BufferSize     int    `yaml:"buffer_size"`
	BandwidthLimit string `yaml:"bandwidth_limit"` // "10M", "1.5G"; empty is unlimited
}

// OutputConfig selects the console formatter
type OutputConfig struct {
	Format   string `yaml:"format"`   // auto, human, progress or json
	Progress bool   `yaml:"progress"` // auto may use live bars on a terminal
	Quiet    bool   `yaml:"quiet"`
}

// LoggingConfig configures the optional run log
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // json or text
	Level   string `yaml:"level"`  // debug, info, warn or error
	File    string `yaml:"file"`   // empty logs to stderr
}

// MinBufferSize is the smallest accepted read buffer
const MinBufferSize = 4096

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Verify: VerifyConfig{
			ReadErrorPolicy: models.ReadErrorRecord,
			ReportFormat:    models.ReportText,
			ReportPath:      "diff_output.txt",
		},
		Performance: PerformanceConfig{
			MaxWorkers: 8,
			BufferSize: 64 * 1024,
		},
		Output: OutputConfig{
			Format:   "auto",
			Progress: true,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Exclude: []string{},
	}
}

// BandwidthBytes parses the bandwidth limit; 0 means unlimited
func (c *Config) BandwidthBytes() (int64, error) {
	return ratelimit.ParseBandwidth(c.Performance.BandwidthLimit)
}

// oneOf reports a ValidationError unless value is among allowed
func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &models.ValidationError{
		Field:   field,
		Message: "must be one of " + strings.Join(allowed, ", "),
	}
}

// Validate returns the first invalid setting as a *models.ValidationError
func (c *Config) Validate() error {
	checks := []func() error{
		func() error {
			return oneOf("verify.read_error_policy", string(c.Verify.ReadErrorPolicy),
				string(models.ReadErrorRecord), string(models.ReadErrorAbort))
		},
		func() error {
			return oneOf("verify.report_format", string(c.Verify.ReportFormat),
				string(models.ReportText), string(models.ReportJSON))
		},
		func() error {
			if c.Performance.MaxWorkers < 1 {
				return &models.ValidationError{Field: "performance.max_workers", Message: "must be at least 1"}
			}
			return nil
		},
		func() error {
			if c.Performance.BufferSize < MinBufferSize {
				return &models.ValidationError{Field: "performance.buffer_size", Message: "must be at least 4096 bytes"}
			}
			return nil
		},
		func() error {
			if _, err := c.BandwidthBytes(); err != nil {
				return &models.ValidationError{Field: "performance.bandwidth_limit", Message: err.Error()}
			}
			return nil
		},
		func() error { return oneOf("output.format", c.Output.Format, "auto", "human", "progress", "json") },
		func() error { return oneOf("logging.format", c.Logging.Format, "json", "text") },
		func() error { return oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error") },
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
