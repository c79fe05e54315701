package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/mglock/internal/cli/output"
	"github.com/marmos91/mglock/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective mglock configuration: file values with
environment overrides and defaults applied. Without a configuration file the
defaults are shown.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show the effective configuration as YAML
  mglock config show

  # Show as JSON
  mglock config show --output json

  # Show specific config file
  mglock config show --config /etc/mglock/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
