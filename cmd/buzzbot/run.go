package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"buzzbot-go/internal/app"
	"buzzbot-go/internal/report"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop and the reporting API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			a, err := app.Build(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Info().
				Bool("live", cfg.Trading.LiveTrading).
				Strs("assets", cfg.Symbols()).
				Str("api", cfg.App.APIAddr).
				Msg("buzzbot starting")
			return a.Run(ctx)
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single cycle and print what happened",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			a, err := app.Build(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := a.Engine.Restore(ctx); err != nil {
				return err
			}
			result, err := a.Engine.RunCycle(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report.Signals(out, result.Signals)
			report.Positions(out, a.Engine.Positions(), time.Now())
			if len(result.Trades) > 0 {
				report.Trades(out, result.Trades)
			}
			report.Risk(out, a.Risk.Snapshot())
			return nil
		},
	}
}
