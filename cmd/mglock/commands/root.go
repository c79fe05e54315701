// Package commands implements the mglock command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/mglock/cmd/mglock/commands/config"
	"github.com/marmos91/mglock/internal/logger"
	pkgconfig "github.com/marmos91/mglock/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile  string
	logLevel string

	// loaded is the configuration read before any command runs. loadErr is
	// kept so commands that depend on the configuration can report it, while
	// the config subcommands still run against a broken file.
	loaded  *pkgconfig.Config
	loadErr error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mglock",
	Short: "mglock - multi-granularity lock manager",
	Long: `mglock is a multi-granularity lock manager for a database/table/page
hierarchy, using IS, IX, S and X locks with FIFO wait queues and upgrade
priority.

The command line replays scripted lock traffic against a fresh manager and
reports whether every step behaved as expected.

Use "mglock [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to every command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/mglock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// initConfig loads the configuration and initializes the logger from it.
// A configuration that fails to load falls back to defaults for logging.
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, loadErr = pkgconfig.Load(cfgFile)

	cfg := loaded
	if loadErr != nil {
		cfg = pkgconfig.GetDefaultConfig()
	}

	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	return logger.Init(logCfg)
}

// loadedConfig returns the configuration read by initConfig.
func loadedConfig() (*pkgconfig.Config, error) {
	if loadErr != nil {
		return nil, loadErr
	}
	if loaded == nil {
		return pkgconfig.GetDefaultConfig(), nil
	}
	return loaded, nil
}
