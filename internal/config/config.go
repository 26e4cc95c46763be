// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, HTTP address, and logging.
type App struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
	APIAddr   string `yaml:"api_addr"`
}

// Trading holds loop cadence, the live switch and the notional portfolio.
type Trading struct {
	LiveTrading      bool    `yaml:"live_trading"`
	PollIntervalSecs int     `yaml:"poll_interval_secs"`
	CallTimeoutSecs  int     `yaml:"call_timeout_secs"`
	PortfolioUSD     float64 `yaml:"portfolio_usd"`
}

// PollInterval is the pause between cycles.
func (t Trading) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSecs) * time.Second
}

// CallTimeout bounds each external call.
func (t Trading) CallTimeout() time.Duration {
	return time.Duration(t.CallTimeoutSecs) * time.Second
}

// Asset is one traded token and where to find it.
type Asset struct {
	Symbol        string `yaml:"symbol"`
	Query         string `yaml:"query,omitempty"`
	Chain         string `yaml:"chain,omitempty"`
	PairAddress   string `yaml:"pair_address,omitempty"`
	Mint          string `yaml:"mint,omitempty"`
	Decimals      int    `yaml:"decimals,omitempty"`
	BinanceSymbol string `yaml:"binance_symbol,omitempty"`
}

// Buzz tunes baseline tracking and spike detection.
type Buzz struct {
	BuzzThreshold   float64 `yaml:"buzz_threshold"`
	LookbackHours   float64 `yaml:"lookback_hours"`
	MinSamples      int     `yaml:"min_samples"`
	MaxSamples      int     `yaml:"max_samples"`
	CooldownMinutes float64 `yaml:"cooldown_minutes"`
	MinBaselineMean float64 `yaml:"min_baseline_mean"`
	MinZScore       float64 `yaml:"min_zscore"`
}

// Lookback is the baseline horizon.
func (b Buzz) Lookback() time.Duration { return hours(b.LookbackHours) }

// Cooldown is the per-asset quiet period after a signal.
func (b Buzz) Cooldown() time.Duration {
	return time.Duration(b.CooldownMinutes * float64(time.Minute))
}

// Exits tunes the exit ladder. Percentages are given as 8 for 8%.
type Exits struct {
	TakeProfitPercent        float64 `yaml:"take_profit_percent"`
	PartialTakeProfitPercent float64 `yaml:"partial_take_profit_percent"`
	PartialFraction          float64 `yaml:"partial_fraction"`
	FinalFraction            float64 `yaml:"final_fraction"`
	StopLossPercent          float64 `yaml:"stop_loss_percent"`
	TrailingStopPercent      float64 `yaml:"trailing_stop_percent"`
	TimeStopHours            float64 `yaml:"time_stop_hours"`
	FlatBandPercent          float64 `yaml:"flat_band_percent"`
}

// TimeStop is how long a flat position may be held.
func (e Exits) TimeStop() time.Duration { return hours(e.TimeStopHours) }

// Risk encodes guard-rails for how much size the bot may take on.
type Risk struct {
	MaxPositionUSD         float64  `yaml:"max_position_usd"`
	MaxConcurrentPositions int      `yaml:"max_concurrent_positions"`
	DailyLossCutoffPercent float64  `yaml:"daily_loss_cutoff_percent"`
	DailyLossCutoffUSD     float64  `yaml:"daily_loss_cutoff_usd"`
	LossStreak             int      `yaml:"loss_streak"`
	LossStreakFactor       float64  `yaml:"loss_streak_factor"`
	WinStreak              int      `yaml:"win_streak"`
	WinStreakFactor        float64  `yaml:"win_streak_factor"`
	MaxRiskPercent         float64  `yaml:"max_risk_percent"`
	LossCooldownHours      float64  `yaml:"loss_cooldown_hours"`
	Blacklist              []string `yaml:"blacklist"`
}

// LossCooldown is how long an asset is barred after a losing position.
func (r Risk) LossCooldown() time.Duration { return hours(r.LossCooldownHours) }

// WebPage is a page scanned for cashtags by the web source.
type WebPage struct {
	URL      string `yaml:"url"`
	Selector string `yaml:"selector,omitempty"`
}

// Collector selects mention sources and their endpoints.
type Collector struct {
	Sources            []string  `yaml:"sources"`
	CoinGeckoBaseURL   string    `yaml:"coingecko_base_url"`
	DexScreenerBaseURL string    `yaml:"dexscreener_base_url"`
	NewsRSSURL         string    `yaml:"news_rss_url"`
	WebPages           []WebPage `yaml:"web_pages"`
}

// Prices selects the price provider.
type Prices struct {
	Provider           string  `yaml:"provider"`
	DexScreenerBaseURL string  `yaml:"dexscreener_base_url"`
	DefaultChain       string  `yaml:"default_chain"`
	MinLiquidityUSD    float64 `yaml:"min_liquidity_usd"`
	BinanceURL         string  `yaml:"binance_url"`
	StaleAfterSecs     int     `yaml:"stale_after_secs"`
}

// StaleAfter is the maximum age of a streamed price.
func (p Prices) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSecs) * time.Second
}

// Paper captures paper-trading execution tuning.
type Paper struct {
	SlippageBps float64 `yaml:"slippage_bps"`
	FillsPath   string  `yaml:"fills_path"`
}

// Storage selects the persistence driver.
type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Alerts configures outbound notifications.
type Alerts struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Trading   Trading   `yaml:"trading"`
	Assets    []Asset   `yaml:"assets"`
	Buzz      Buzz      `yaml:"buzz"`
	Exits     Exits     `yaml:"exits"`
	Risk      Risk      `yaml:"risk"`
	Collector Collector `yaml:"collector"`
	Prices    Prices    `yaml:"prices"`
	Paper     Paper     `yaml:"paper"`
	Dex       Dex       `yaml:"dex"`
	Wallet    Wallet    `yaml:"wallet"`
	Storage   Storage   `yaml:"storage"`
	Alerts    Alerts    `yaml:"alerts"`
}

// Symbols lists the configured asset symbols in file order.
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Assets))
	for i, a := range c.Assets {
		out[i] = a.Symbol
	}
	return out
}

// Load reads a YAML file from disk over the documented defaults. Keys absent
// from the file keep their default; keys present keep their value, zero
// included, so Validate can reject it.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Public returns the configuration keyed by its YAML names with secrets
// masked, for display on reporting surfaces.
func (c *Config) Public() (map[string]any, error) {
	redacted := *c
	if redacted.Wallet.PrivateKeyBase58 != "" {
		redacted.Wallet.PrivateKeyBase58 = masked
	}
	if redacted.Alerts.DiscordWebhookURL != "" {
		redacted.Alerts.DiscordWebhookURL = masked
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return out, nil
}

// Resolve is the full startup path: .env, file, environment overrides,
// defaults for empty strings, then validation.
func Resolve(path string) (*Config, error) {
	LoadDotEnv()
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const masked = "********"

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
