package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "buzzbot-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if got := cfg.Symbols(); len(got) != 2 || got[0] != "PEPE" || got[1] != "WIF" {
		t.Fatalf("unexpected symbols %+v", got)
	}
	if cfg.Assets[1].Decimals != 6 || cfg.Assets[0].BinanceSymbol != "PEPEUSDT" {
		t.Fatalf("asset fields not decoded: %+v", cfg.Assets)
	}
	if cfg.Trading.PollInterval() != time.Minute || cfg.Trading.CallTimeout() != 5*time.Second {
		t.Fatalf("unexpected trading durations %+v", cfg.Trading)
	}
	if cfg.Buzz.BuzzThreshold != 150 || cfg.Buzz.Lookback() != 12*time.Hour || cfg.Buzz.MinZScore != 2 {
		t.Fatalf("unexpected buzz section %+v", cfg.Buzz)
	}
	if cfg.Buzz.MinSamples != 3 || cfg.Buzz.Cooldown() != 15*time.Minute {
		t.Fatalf("expected buzz defaults to survive partial section, got %+v", cfg.Buzz)
	}
	if cfg.Exits.StopLossPercent != 5 || cfg.Exits.TakeProfitPercent != 15 {
		t.Fatalf("unexpected exits %+v", cfg.Exits)
	}
	if cfg.Exits.FlatBandPercent != 0 {
		t.Fatalf("explicit zero must not be replaced by default, got %.2f", cfg.Exits.FlatBandPercent)
	}
	if cfg.Risk.MaxConcurrentPositions != 3 || cfg.Risk.DailyLossCutoffPercent != 10 {
		t.Fatalf("unexpected risk %+v", cfg.Risk)
	}
	if len(cfg.Risk.Blacklist) != 1 || cfg.Risk.Blacklist[0] != "RUG" {
		t.Fatalf("unexpected blacklist %+v", cfg.Risk.Blacklist)
	}
	if len(cfg.Collector.Sources) != 3 || len(cfg.Collector.WebPages) != 1 || cfg.Collector.WebPages[0].Selector != ".post" {
		t.Fatalf("unexpected collector %+v", cfg.Collector)
	}
	if cfg.Prices.MinLiquidityUSD != 10000 || cfg.Prices.StaleAfter() != 2*time.Minute {
		t.Fatalf("unexpected prices %+v", cfg.Prices)
	}
	if cfg.Dex.Commitment != "processed" {
		t.Fatalf("expected processed commitment, got %s", cfg.Dex.Commitment)
	}
	if cfg.Paper.SlippageBps != 3 || cfg.Paper.FillsPath != "logs/fills.jsonl" {
		t.Fatalf("unexpected paper %+v", cfg.Paper)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected storage driver %s", cfg.Storage.Driver)
	}

	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("testdata config should validate: %v", err)
	}
	if cfg.Assets[0].Query != "pepe coin" || cfg.Assets[1].Query != "WIF" || cfg.Assets[0].Chain != "solana" {
		t.Fatalf("asset defaults not applied: %+v", cfg.Assets)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Buzz.BuzzThreshold = 275
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Buzz.BuzzThreshold != 275 || loaded.Assets[0].Symbol != "PEPE" {
		t.Fatalf("round trip lost values: %+v", loaded.Buzz)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected nil config error")
	}
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Assets = []Asset{{Symbol: "PEPE"}}
	ApplyDefaults(cfg)
	return cfg
}

func TestDefaultsValidateWithAnAsset(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsWithoutClamping(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		field  string
	}{
		"zero threshold":      {func(c *Config) { c.Buzz.BuzzThreshold = 0 }, "buzz.buzz_threshold"},
		"negative stop":       {func(c *Config) { c.Exits.StopLossPercent = -1 }, "exits.stop_loss_percent"},
		"fraction above one":  {func(c *Config) { c.Exits.PartialFraction = 1.5 }, "exits.partial_fraction"},
		"fractions sum":       {func(c *Config) { c.Exits.PartialFraction, c.Exits.FinalFraction = 0.8, 0.4 }, "must not exceed 1"},
		"stages inverted":     {func(c *Config) { c.Exits.PartialTakeProfitPercent = 20 }, "exits.take_profit_percent"},
		"cutoff too large":    {func(c *Config) { c.Risk.DailyLossCutoffPercent = 100 }, "risk.daily_loss_cutoff_percent"},
		"no concurrency":      {func(c *Config) { c.Risk.MaxConcurrentPositions = 0 }, "risk.max_concurrent_positions"},
		"unknown provider":    {func(c *Config) { c.Prices.Provider = "kraken" }, "prices.provider"},
		"unknown source":      {func(c *Config) { c.Collector.Sources = []string{"twitter"} }, "collector.sources"},
		"web without pages":   {func(c *Config) { c.Collector.Sources = []string{"web"} }, "collector.web_pages"},
		"unknown driver":      {func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		"duplicate asset":     {func(c *Config) { c.Assets = append(c.Assets, Asset{Symbol: "pepe"}) }, "duplicated"},
		"no assets":           {func(c *Config) { c.Assets = nil }, "assets"},
		"live without wallet": {func(c *Config) { c.Trading.LiveTrading = true }, "wallet key"},
		"pair provider":       {func(c *Config) { c.Prices.Provider = "dexscreener" }, "pair_address"},
		"no signal cooldown":  {func(c *Config) { c.Buzz.CooldownMinutes = 0 }, "buzz.cooldown_minutes"},
		"loss factor grows":   {func(c *Config) { c.Risk.LossStreakFactor = 2 }, "risk.loss_streak_factor"},
		"loss factor neutral": {func(c *Config) { c.Risk.LossStreakFactor = 1 }, "risk.loss_streak_factor"},
		"win factor shrinks":  {func(c *Config) { c.Risk.WinStreakFactor = 0.8 }, "risk.win_streak_factor"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			before := *cfg
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("error %q does not name %q", err, tc.field)
			}
			if cfg.Exits != before.Exits || cfg.Buzz != before.Buzz || cfg.Prices != before.Prices {
				t.Fatalf("Validate must not modify the config")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLiveTrading, "true")
	t.Setenv(EnvDiscordWebhook, "https://discord.test/hook")
	t.Setenv(EnvPrivateKey, "secret")
	t.Setenv(EnvDBPath, "/tmp/bot.db")
	t.Setenv(EnvCommitment, "")

	cfg := validConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if !cfg.Trading.LiveTrading || cfg.Alerts.DiscordWebhookURL != "https://discord.test/hook" {
		t.Fatalf("env not applied: %+v %+v", cfg.Trading, cfg.Alerts)
	}
	if cfg.Wallet.PrivateKeyBase58 != "secret" || cfg.Storage.Path != "/tmp/bot.db" {
		t.Fatalf("env not applied: %+v %+v", cfg.Wallet, cfg.Storage)
	}
	if cfg.Dex.Commitment != "confirmed" {
		t.Fatalf("empty env must not override, got %q", cfg.Dex.Commitment)
	}

	t.Setenv(EnvLiveTrading, "maybe")
	if err := ApplyEnv(cfg); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad bool, got %v", err)
	}
}

func TestPublicMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKeyBase58 = "secret-key"
	cfg.Alerts.DiscordWebhookURL = "https://discord.example/hook"

	out, err := cfg.Public()
	if err != nil {
		t.Fatalf("Public returned error: %v", err)
	}
	wallet, ok := out["wallet"].(map[string]any)
	if !ok || wallet["private_key_base58"] != masked {
		t.Fatalf("wallet key not masked: %+v", out["wallet"])
	}
	alerts, ok := out["alerts"].(map[string]any)
	if !ok || alerts["discord_webhook_url"] != masked {
		t.Fatalf("webhook not masked: %+v", out["alerts"])
	}
	buzz, ok := out["buzz"].(map[string]any)
	if !ok || buzz["buzz_threshold"] != 200 {
		t.Fatalf("expected buzz_threshold 200, got %+v", out["buzz"])
	}
	if cfg.Wallet.PrivateKeyBase58 != "secret-key" {
		t.Fatalf("Public must not modify the receiver")
	}
}
