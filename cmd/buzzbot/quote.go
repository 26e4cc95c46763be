package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"buzzbot-go/internal/app"
	"buzzbot-go/internal/dex/solana"
)

func quoteCmd() *cobra.Command {
	var usd float64
	cmd := &cobra.Command{
		Use:   "quote <asset>",
		Short: "Ask Jupiter what a buy would fill at, without trading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			asset := strings.ToUpper(strings.TrimSpace(args[0]))
			mint, ok := app.Mints(cfg)[asset]
			if !ok {
				return fmt.Errorf("asset %s has no mint configured", asset)
			}
			if usd <= 0 {
				usd = cfg.Risk.MaxPositionUSD
			}

			client := solana.NewJupiterClient(cfg.Dex.RpcURL, cfg.Dex.JupiterBase, nil, cfg.Dex.Commitment)
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Trading.CallTimeout())
			defer cancel()

			units := uint64(math.Round(usd * math.Pow10(cfg.Dex.QuoteDecimals)))
			q, err := client.GetQuote(ctx, cfg.Dex.QuoteMint, mint.Address, units, cfg.Dex.SlippageBps)
			if err != nil {
				return err
			}
			out, err := q.OutUnits()
			if err != nil {
				return fmt.Errorf("quote out amount: %w", err)
			}
			qty := float64(out) / math.Pow10(mint.Decimals)
			if qty <= 0 {
				return fmt.Errorf("quote returned no %s", asset)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: $%.2f buys %.6f (%.10f per unit, impact %.4f%%)\n",
				asset, usd, qty, usd/qty, q.PriceImpactPct*100)
			return nil
		},
	}
	cmd.Flags().Float64Var(&usd, "usd", 0, "Quote size in USD (defaults to risk.max_position_usd)")
	return cmd
}
