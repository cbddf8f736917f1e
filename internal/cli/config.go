package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/pagecraft/internal/config"
)

// configCommand creates the config command for printing the effective
// configuration.
func (c *CLI) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration as TOML.

The result merges the built-in defaults, the config file and PAGECRAFT_*
environment overrides such as PAGECRAFT_SNAP_THRESHOLD=8.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), c.cfg)
		},
	}
}
