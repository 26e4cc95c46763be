// Command buzzbot trades social-mention spikes with staged exits.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"buzzbot-go/internal/config"
	"buzzbot-go/internal/util"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "buzzbot",
		Short: "Buzz-driven trading bot",
		Long: `buzzbot watches mention volume for a set of assets, opens a position
when buzz spikes far above its rolling baseline, and exits through a
stop-loss, trailing stop, staged take-profit and time stop.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "buzzbot version %s\n", version)
		},
	}
}

// load resolves the config and builds the logger it asks for.
func load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := util.NewLogger(cfg.App.LogLevel)
	if cfg.App.LogPretty {
		log = util.NewConsoleLogger(cfg.App.LogLevel)
	}
	log = log.With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()
	return cfg, log, nil
}
