package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides.
const (
	EnvLiveTrading    = "BUZZBOT_LIVE_TRADING"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
	EnvSolanaRPC      = "SOLANA_RPC_URL"
	EnvJupiterBase    = "JUPITER_BASE_URL"
	EnvCommitment     = "SOLANA_COMMITMENT"
	EnvPrivateKey     = "SOLANA_PRIVATE_KEY_BASE58"
	EnvDBPath         = "BUZZBOT_DB_PATH"
)

// Defaults returns a config populated with every documented default.
func Defaults() *Config {
	return &Config{
		App: App{
			Name:     "buzzbot",
			Env:      "dev",
			LogLevel: "info",
			APIAddr:  ":8080",
		},
		Trading: Trading{
			PollIntervalSecs: 300,
			CallTimeoutSecs:  10,
			PortfolioUSD:     5000,
		},
		Buzz: Buzz{
			BuzzThreshold:   200,
			LookbackHours:   24,
			MinSamples:      3,
			MaxSamples:      2048,
			CooldownMinutes: 15,
			MinBaselineMean: 0.5,
		},
		Exits: Exits{
			TakeProfitPercent:        15,
			PartialTakeProfitPercent: 8,
			PartialFraction:          0.5,
			FinalFraction:            0.25,
			StopLossPercent:          6,
			TrailingStopPercent:      4,
			TimeStopHours:            2,
			FlatBandPercent:          1,
		},
		Risk: Risk{
			MaxPositionUSD:         200,
			MaxConcurrentPositions: 2,
			DailyLossCutoffPercent: 10,
			LossStreak:             2,
			LossStreakFactor:       0.5,
			WinStreak:              3,
			WinStreakFactor:        1.25,
			MaxRiskPercent:         5,
			LossCooldownHours:      24,
		},
		Collector: Collector{
			Sources: []string{"coingecko_trending", "dexscreener_boosts"},
		},
		Prices: Prices{
			Provider:       "dexscreener_search",
			DefaultChain:   "solana",
			StaleAfterSecs: 120,
		},
		Paper: Paper{
			SlippageBps: 30,
		},
		Dex: Dex{
			Chain:         "solana",
			Commitment:    "confirmed",
			JupiterBase:   "https://quote-api.jup.ag",
			QuoteMint:     "EPjFWttTNT44Zj8X5FYiHzvGm8Z5iu2YH5pu4j3rk4A",
			QuoteDecimals: 6,
			SlippageBps:   100,
		},
		Storage: Storage{
			Driver: "sqlite",
			Path:   "buzzbot.db",
		},
	}
}

// ApplyDefaults fills empty strings and collections whose zero value has no
// meaning. Numeric fields are left alone so Validate sees what was configured.
func ApplyDefaults(cfg *Config) {
	d := Defaults()
	setString(&cfg.App.Name, d.App.Name)
	setString(&cfg.App.LogLevel, d.App.LogLevel)
	setString(&cfg.App.APIAddr, d.App.APIAddr)
	setString(&cfg.Prices.Provider, d.Prices.Provider)
	setString(&cfg.Dex.Chain, d.Dex.Chain)
	setString(&cfg.Dex.Commitment, d.Dex.Commitment)
	setString(&cfg.Dex.JupiterBase, d.Dex.JupiterBase)
	setString(&cfg.Dex.QuoteMint, d.Dex.QuoteMint)
	setString(&cfg.Storage.Driver, d.Storage.Driver)
	if cfg.Storage.Path == "" && cfg.Storage.Driver == d.Storage.Driver {
		cfg.Storage.Path = d.Storage.Path
	}
	if cfg.Dex.QuoteDecimals == 0 && cfg.Dex.QuoteMint == d.Dex.QuoteMint {
		cfg.Dex.QuoteDecimals = d.Dex.QuoteDecimals
	}
	if len(cfg.Collector.Sources) == 0 {
		cfg.Collector.Sources = d.Collector.Sources
	}
	for i := range cfg.Assets {
		a := &cfg.Assets[i]
		a.Symbol = strings.TrimSpace(a.Symbol)
		setString(&a.Query, a.Symbol)
		setString(&a.Chain, cfg.Prices.DefaultChain)
	}
}

// LoadDotEnv loads .env from the working directory if present.
func LoadDotEnv() {
	_ = godotenv.Load() // best-effort
}

// ApplyEnv overrides secrets and switches from the environment.
func ApplyEnv(cfg *Config) error {
	if v, ok := lookup(EnvLiveTrading); ok {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, EnvLiveTrading, v)
		}
		cfg.Trading.LiveTrading = live
	}
	if v, ok := lookup(EnvDiscordWebhook); ok {
		cfg.Alerts.DiscordWebhookURL = v
	}
	if v, ok := lookup(EnvSolanaRPC); ok {
		cfg.Dex.RpcURL = v
	}
	if v, ok := lookup(EnvJupiterBase); ok {
		cfg.Dex.JupiterBase = v
	}
	if v, ok := lookup(EnvCommitment); ok {
		cfg.Dex.Commitment = v
	}
	if v, ok := lookup(EnvPrivateKey); ok {
		cfg.Wallet.PrivateKeyBase58 = v
	}
	if v, ok := lookup(EnvDBPath); ok {
		cfg.Storage.Path = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}
