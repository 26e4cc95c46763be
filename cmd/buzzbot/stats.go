package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/paper"
	"buzzbot-go/internal/report"
	"buzzbot-go/internal/storage"
)

func statsCmd() *cobra.Command {
	var (
		limit  int
		window time.Duration
		fills  bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print performance, open positions and recent trades from storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			trades, err := store.TradeHistory(ctx, 0)
			if err != nil {
				return err
			}
			positions, err := store.OpenPositions(ctx)
			if err != nil {
				return err
			}
			signals, err := store.RecentSignals(ctx, time.Now().Add(-window))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report.Stats(out, ledger.Summarize(trades))
			report.Positions(out, positions, time.Now())
			if limit > 0 && len(trades) > limit {
				trades = trades[:limit]
			}
			report.Trades(out, trades)
			report.Signals(out, signals)
			if !fills {
				return nil
			}
			if cfg.Paper.FillsPath == "" {
				return errors.New("paper.fills_path is not set")
			}
			entries, err := paper.ReadJournal(cfg.Paper.FillsPath)
			if err != nil {
				return err
			}
			report.Fills(out, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent trades to list")
	cmd.Flags().BoolVar(&fills, "fills", false, "Also print the paper fill journal")
	cmd.Flags().DurationVar(&window, "signals", 2*time.Hour, "How far back to list signals")
	return cmd
}
