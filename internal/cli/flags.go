package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags are shared by the root command and its subcommands
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags registers the persistent flags on the root command.
// --verbose and --quiet cannot be combined.
func AddGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&globalFlags.ConfigFile, "config", "", "config file (default $HOME/.config/treeverify/config.yaml)")
	pf.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "also print matched files and skipped entries")
	pf.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "print nothing but errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}
