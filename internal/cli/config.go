package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treeverify/pkg/config"
)

// NewConfigCommand groups the configuration file subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newConfigShowCommand(), newConfigInitCommand())
	return cmd
}

// settingRows lists the effective settings by their YAML key
func settingRows(cfg *config.Config) [][]string {
	orNone := func(s, none string) string {
		if s == "" {
			return none
		}
		return s
	}
	return [][]string{
		{"verify.read_error_policy", string(cfg.Verify.ReadErrorPolicy)},
		{"verify.report_format", string(cfg.Verify.ReportFormat)},
		{"verify.report_path", cfg.Verify.ReportPath},
		{"performance.max_workers", strconv.Itoa(cfg.Performance.MaxWorkers)},
		{"performance.buffer_size", strconv.Itoa(cfg.Performance.BufferSize)},
		{"performance.bandwidth_limit", orNone(cfg.Performance.BandwidthLimit, "unlimited")},
		{"output.format", cfg.Output.Format},
		{"output.progress", strconv.FormatBool(cfg.Output.Progress)},
		{"logging.enabled", strconv.FormatBool(cfg.Logging.Enabled)},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
		{"logging.file", orNone(cfg.Logging.File, "stderr")},
		{"exclude", orNone(strings.Join(cfg.Exclude, ", "), "none")},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header([]string{"Setting", "Value"})
			if err := table.Bulk(settingRows(cfg)); err != nil {
				return err
			}
			return table.Render()
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long:  "Write the default configuration to --config, or to $HOME/.config/treeverify/config.yaml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigFile
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
			}
			if err := config.SaveToFile(config.Default(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	return cmd
}
