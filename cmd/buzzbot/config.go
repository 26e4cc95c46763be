package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buzzbot-go/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load, apply overrides and validate the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			mode := "paper"
			if cfg.Trading.LiveTrading {
				mode = "LIVE"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d assets, sources %v, prices %s, %s trading\n",
				len(cfg.Assets), cfg.Collector.Sources, cfg.Prices.Provider, mode)
			return nil
		},
	})
	var force bool
	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Write the default config to the --config path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s exists, pass --force to overwrite", configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(configPath, config.Defaults()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			return nil
		},
	}
	defaults.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(defaults)
	return cmd
}
