package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mglock/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default mglock configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/mglock/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  mglock config init

  # Initialize with custom path
  mglock config init --config /etc/mglock/config.yaml

  # Force overwrite existing config
  mglock config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
	return nil
}
