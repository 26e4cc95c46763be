package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"buzzbot-go/internal/collector"
	"buzzbot-go/internal/exchange"
	"buzzbot-go/internal/storage"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

const fractionTolerance = 1e-9

// Validate reports every out-of-range field. Values are never adjusted.
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Trading.PollIntervalSecs <= 0 {
		fail("trading.poll_interval_secs must be > 0")
	}
	if c.Trading.CallTimeoutSecs <= 0 {
		fail("trading.call_timeout_secs must be > 0")
	}
	if c.Trading.PortfolioUSD <= 0 {
		fail("trading.portfolio_usd must be > 0")
	}

	if len(c.Assets) == 0 {
		fail("assets must list at least one asset")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for i, a := range c.Assets {
		sym := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if sym == "" {
			fail("assets[%d].symbol is required", i)
			continue
		}
		if _, dup := seen[sym]; dup {
			fail("assets[%d].symbol %q is duplicated", i, a.Symbol)
		}
		seen[sym] = struct{}{}
		if a.Decimals < 0 {
			fail("assets[%d].decimals must be >= 0", i)
		}
		if c.Trading.LiveTrading && a.Mint == "" {
			fail("assets[%d].mint is required for live trading", i)
		}
		if c.Prices.Provider == exchange.ProviderDexScreener && a.PairAddress == "" {
			fail("assets[%d].pair_address is required by the dexscreener price provider", i)
		}
	}

	b := c.Buzz
	if b.BuzzThreshold <= 0 {
		fail("buzz.buzz_threshold must be > 0")
	}
	if b.LookbackHours <= 0 {
		fail("buzz.lookback_hours must be > 0")
	}
	if b.MinSamples < 1 {
		fail("buzz.min_samples must be >= 1")
	}
	if b.MaxSamples < b.MinSamples {
		fail("buzz.max_samples must be >= buzz.min_samples")
	}
	if b.CooldownMinutes <= 0 {
		fail("buzz.cooldown_minutes must be > 0")
	}
	if b.MinBaselineMean < 0 {
		fail("buzz.min_baseline_mean must be >= 0")
	}
	if b.MinZScore < 0 {
		fail("buzz.min_zscore must be >= 0")
	}

	e := c.Exits
	if e.StopLossPercent <= 0 || e.StopLossPercent >= 100 {
		fail("exits.stop_loss_percent must be in (0, 100)")
	}
	if e.TrailingStopPercent <= 0 || e.TrailingStopPercent >= 100 {
		fail("exits.trailing_stop_percent must be in (0, 100)")
	}
	if e.PartialTakeProfitPercent <= 0 {
		fail("exits.partial_take_profit_percent must be > 0")
	}
	if e.TakeProfitPercent <= e.PartialTakeProfitPercent {
		fail("exits.take_profit_percent must be above exits.partial_take_profit_percent")
	}
	if e.PartialFraction <= 0 || e.PartialFraction > 1 {
		fail("exits.partial_fraction must be in (0, 1]")
	}
	if e.FinalFraction <= 0 || e.FinalFraction > 1 {
		fail("exits.final_fraction must be in (0, 1]")
	}
	if e.PartialFraction+e.FinalFraction > 1+fractionTolerance {
		fail("exits.partial_fraction + exits.final_fraction must not exceed 1")
	}
	if e.TimeStopHours <= 0 {
		fail("exits.time_stop_hours must be > 0")
	}
	if e.FlatBandPercent < 0 {
		fail("exits.flat_band_percent must be >= 0")
	}

	r := c.Risk
	if r.MaxPositionUSD <= 0 {
		fail("risk.max_position_usd must be > 0")
	}
	if r.MaxConcurrentPositions < 1 {
		fail("risk.max_concurrent_positions must be >= 1")
	}
	if r.DailyLossCutoffPercent <= 0 || r.DailyLossCutoffPercent >= 100 {
		fail("risk.daily_loss_cutoff_percent must be in (0, 100)")
	}
	if r.DailyLossCutoffUSD < 0 {
		fail("risk.daily_loss_cutoff_usd must be >= 0")
	}
	if r.LossStreak < 1 {
		fail("risk.loss_streak must be >= 1")
	}
	if r.LossStreakFactor <= 0 || r.LossStreakFactor >= 1 {
		fail("risk.loss_streak_factor must be in (0, 1)")
	}
	if r.WinStreak < 1 {
		fail("risk.win_streak must be >= 1")
	}
	if r.WinStreakFactor < 1 {
		fail("risk.win_streak_factor must be >= 1")
	}
	if r.MaxRiskPercent <= 0 || r.MaxRiskPercent > 100 {
		fail("risk.max_risk_percent must be in (0, 100]")
	}
	if r.LossCooldownHours < 0 {
		fail("risk.loss_cooldown_hours must be >= 0")
	}

	if len(c.Collector.Sources) == 0 {
		fail("collector.sources must list at least one source")
	}
	for _, src := range c.Collector.Sources {
		if !slices.Contains(collector.Sources, src) {
			fail("collector.sources: unknown source %q", src)
		}
		if src == collector.SourceWeb && len(c.Collector.WebPages) == 0 {
			fail("collector.web_pages is required by the web source")
		}
	}

	if !slices.Contains(exchange.Providers, strings.ToLower(c.Prices.Provider)) {
		fail("prices.provider: unknown provider %q", c.Prices.Provider)
	}
	if c.Prices.StaleAfterSecs < 0 {
		fail("prices.stale_after_secs must be >= 0")
	}
	if c.Paper.SlippageBps < 0 {
		fail("paper.slippage_bps must be >= 0")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case storage.DriverSQLite, storage.DriverMemory:
	default:
		fail("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	if c.Trading.LiveTrading {
		if c.Wallet.PrivateKeyBase58 == "" {
			fail("live trading requires a wallet key (%s)", EnvPrivateKey)
		}
		if c.Dex.SlippageBps <= 0 {
			fail("dex.slippage_bps must be > 0 for live trading")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
