// Package app assembles the trading loop and its surfaces from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/anomaly"
	"buzzbot-go/internal/api"
	"buzzbot-go/internal/baseline"
	"buzzbot-go/internal/collector"
	"buzzbot-go/internal/config"
	"buzzbot-go/internal/dex/solana"
	"buzzbot-go/internal/engine"
	"buzzbot-go/internal/exchange"
	"buzzbot-go/internal/execution"
	"buzzbot-go/internal/exit"
	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/notify"
	"buzzbot-go/internal/paper"
	"buzzbot-go/internal/position"
	"buzzbot-go/internal/risk"
	"buzzbot-go/internal/storage"
)

// streamer is implemented by price sources that need a background feed.
type streamer interface {
	Run(ctx context.Context) error
}

// App holds the wired components of one bot process.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Store  storage.Store
	Prices exchange.PriceSource
	Engine *engine.Engine
	Risk   *risk.Manager
	Ledger *ledger.Ledger
	API    *api.Server
	Paper  *paper.Account // nil when trading live

	venue   engine.Resumer
	closers []func() error
}

// Build wires every component described by cfg. Callers must Close the App.
func Build(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	prices, err := exchange.New(cfg.Prices.Provider, PriceTargets(cfg), log,
		exchange.WithDexScreenerConfig(cfg.Prices.DexScreenerBaseURL, cfg.Prices.DefaultChain),
		exchange.WithMinLiquidity(cfg.Prices.MinLiquidityUSD),
		exchange.WithBinanceURL(cfg.Prices.BinanceURL),
		exchange.WithStaleAfter(cfg.Prices.StaleAfter()),
	)
	if err != nil {
		return nil, fmt.Errorf("price source: %w", err)
	}
	a.Prices = prices

	mentions, err := Collector(cfg)
	if err != nil {
		return nil, err
	}

	venue, err := a.executor(cfg, prices)
	if err != nil {
		return nil, err
	}

	a.Risk = risk.NewManager(log.With().Str("component", "risk").Logger(), RiskLimits(cfg), cfg.Trading.PortfolioUSD)
	// Enough recent trades to answer the largest /history request.
	a.Ledger = ledger.New(1000, a.Risk)
	positions := position.NewManager(log.With().Str("component", "positions").Logger(), execution.NewInstrumented(venue, log), a.Risk, a.Ledger)

	a.Engine, err = engine.New(log.With().Str("component", "engine").Logger(), engine.Deps{
		Collector: mentions,
		Prices:    prices,
		Store:     store,
		Notifier:  notify.NewDiscord(cfg.Alerts.DiscordWebhookURL, log),
		Venue:     a.venue,
		Baseline:  baseline.NewTracker(cfg.Buzz.Lookback(), cfg.Buzz.MinSamples, cfg.Buzz.MaxSamples),
		Detector:  anomaly.NewDetector(DetectorOptions(cfg)),
		Risk:      a.Risk,
		Positions: positions,
		Exits:     exit.NewEngine(ExitRules(cfg)),
		Ledger:    a.Ledger,
	}, engine.Settings{
		Assets:      cfg.Symbols(),
		Sources:     cfg.Collector.Sources,
		Interval:    cfg.Trading.PollInterval(),
		CallTimeout: cfg.Trading.CallTimeout(),
		Lookback:    cfg.Buzz.Lookback(),
	})
	if err != nil {
		return nil, err
	}
	a.API = api.New(log.With().Str("component", "api").Logger(), a.Engine, store, cfg.Public)
	ok = true
	return a, nil
}

func (a *App) executor(cfg *config.Config, prices exchange.PriceSource) (execution.Executor, error) {
	if !cfg.Trading.LiveTrading {
		opts := []paper.ExecutorOption{paper.WithSlippageBps(cfg.Paper.SlippageBps)}
		if cfg.Paper.FillsPath != "" {
			rec, err := paper.OpenJournal(cfg.Paper.FillsPath)
			if err != nil {
				return nil, fmt.Errorf("paper journal: %w", err)
			}
			a.closers = append(a.closers, rec.Close)
			opts = append(opts, paper.WithRecorder(rec))
		}
		a.Log.Info().Float64("cash", cfg.Trading.PortfolioUSD).Msg("paper trading")
		venue := paper.NewExecutor(paper.NewAccount(cfg.Trading.PortfolioUSD), prices, opts...)
		a.Paper = venue.Account()
		a.venue = venue
		return venue, nil
	}

	key, err := solana.ParsePrivateKey(cfg.Wallet.PrivateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	client := solana.NewJupiterClient(cfg.Dex.RpcURL, cfg.Dex.JupiterBase, key, cfg.Dex.Commitment)
	a.Log.Warn().Str("wallet", key.PublicKey().String()).Msg("LIVE trading enabled")
	return solana.NewExecutor(client, solana.Mint{Address: cfg.Dex.QuoteMint, Decimals: cfg.Dex.QuoteDecimals}, Mints(cfg), cfg.Dex.SlippageBps, true), nil
}

// Run restores persisted state, starts the price stream and API, and drives
// the engine until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Engine.Restore(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s, ok := a.Prices.(streamer); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				a.Log.Error().Err(err).Msg("price stream stopped")
			}
		}()
	}
	if a.Config.App.APIAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.API.ListenAndServe(ctx, a.Config.App.APIAddr); err != nil {
				a.Log.Error().Err(err).Msg("api stopped")
				cancel()
			}
		}()
	}
	err := a.Engine.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Close releases storage and fill files.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// PriceTargets maps configured assets onto price source targets.
func PriceTargets(cfg *config.Config) []exchange.Target {
	out := make([]exchange.Target, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		out = append(out, exchange.Target{
			Asset:         asset.Symbol,
			Query:         asset.Query,
			Chain:         asset.Chain,
			PairAddress:   asset.PairAddress,
			BinanceSymbol: asset.BinanceSymbol,
		})
	}
	return out
}

// Collector registers the configured mention sources.
func Collector(cfg *config.Config) (*collector.Registry, error) {
	assets := make([]collector.Asset, 0, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		assets = append(assets, collector.Asset{Symbol: asset.Symbol, Query: asset.Query, Mint: asset.Mint})
	}
	registry := collector.NewRegistry(assets)
	for _, name := range cfg.Collector.Sources {
		switch strings.TrimSpace(name) {
		case collector.SourceCoinGeckoTrending:
			registry.Register(collector.NewCoinGeckoTrending(cfg.Collector.CoinGeckoBaseURL, nil))
		case collector.SourceDexScreenerBoosts:
			registry.Register(collector.NewDexScreenerBoosts(cfg.Collector.DexScreenerBaseURL, nil))
		case collector.SourceNewsRSS:
			registry.Register(collector.NewNewsRSS(cfg.Collector.NewsRSSURL, nil))
		case collector.SourceWeb:
			pages := make([]collector.Page, 0, len(cfg.Collector.WebPages))
			for _, p := range cfg.Collector.WebPages {
				pages = append(pages, collector.Page{URL: p.URL, Selector: p.Selector})
			}
			registry.Register(collector.NewWeb(pages, nil))
		default:
			return nil, fmt.Errorf("collector source %q: %w", name, collector.ErrUnknownSource)
		}
	}
	return registry, nil
}

// Mints maps asset symbols to their on-chain mints.
func Mints(cfg *config.Config) map[string]solana.Mint {
	out := make(map[string]solana.Mint, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		if asset.Mint != "" {
			out[asset.Symbol] = solana.Mint{Address: asset.Mint, Decimals: asset.Decimals}
		}
	}
	return out
}

// RiskLimits converts the risk section.
func RiskLimits(cfg *config.Config) risk.Limits {
	r := cfg.Risk
	return risk.Limits{
		MaxPositionUSD:         r.MaxPositionUSD,
		MaxConcurrent:          r.MaxConcurrentPositions,
		DailyLossCutoffPercent: r.DailyLossCutoffPercent,
		DailyLossCutoffUSD:     r.DailyLossCutoffUSD,
		LossStreak:             r.LossStreak,
		LossStreakFactor:       r.LossStreakFactor,
		WinStreak:              r.WinStreak,
		WinStreakFactor:        r.WinStreakFactor,
		MaxRiskPercent:         r.MaxRiskPercent,
		LossCooldown:           r.LossCooldown(),
		Blacklist:              append([]string(nil), r.Blacklist...),
	}
}

// ExitRules converts the exits section into the two-stage ladder.
func ExitRules(cfg *config.Config) exit.Rules {
	e := cfg.Exits
	return exit.Rules{
		StopLossPercent:     e.StopLossPercent,
		TrailingStopPercent: e.TrailingStopPercent,
		Stages: []exit.Stage{
			{Percent: e.PartialTakeProfitPercent, Fraction: e.PartialFraction},
			{Percent: e.TakeProfitPercent, Fraction: e.FinalFraction},
		},
		TimeStop:        e.TimeStop(),
		FlatBandPercent: e.FlatBandPercent,
	}
}

// DetectorOptions converts the buzz section.
func DetectorOptions(cfg *config.Config) anomaly.Options {
	b := cfg.Buzz
	return anomaly.Options{
		ThresholdPercent: b.BuzzThreshold,
		Cooldown:         b.Cooldown(),
		MinBaselineMean:  b.MinBaselineMean,
		MinZScore:        b.MinZScore,
	}
}
