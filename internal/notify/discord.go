// Package notify posts trading alerts to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/position"
)

// Level selects the alert prefix.
type Level string

const (
	LevelInfo    Level = "info"
	LevelBuy     Level = "buy"
	LevelProfit  Level = "profit"
	LevelLoss    Level = "loss"
	LevelWarning Level = "warning"
)

var prefixes = map[Level]string{
	LevelInfo:    "ℹ️",
	LevelBuy:     "🟢",
	LevelProfit:  "💰",
	LevelLoss:    "📉",
	LevelWarning: "⚠️",
}

// Discord sends alerts to a webhook. A Discord with an empty URL is a no-op,
// and delivery failures are logged rather than returned to the trading loop.
type Discord struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewDiscord builds a notifier for webhookURL.
func NewDiscord(webhookURL string, log zerolog.Logger) *Discord {
	return &Discord{url: webhookURL, client: &http.Client{Timeout: 5 * time.Second}, log: log}
}

// Enabled reports whether a webhook is configured.
func (d *Discord) Enabled() bool { return d != nil && d.url != "" }

// Send posts message with the prefix for level.
func (d *Discord) Send(ctx context.Context, level Level, message string) error {
	if !d.Enabled() {
		return nil
	}
	body, err := json.Marshal(map[string]string{"content": prefixes[level] + " " + message})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) deliver(ctx context.Context, level Level, message string) {
	if err := d.Send(ctx, level, message); err != nil {
		d.log.Warn().Err(err).Str("level", string(level)).Msg("alert not delivered")
	}
}

// Opened announces a new position.
func (d *Discord) Opened(ctx context.Context, p position.Position, pctAbove float64) {
	d.deliver(ctx, LevelBuy, fmt.Sprintf("BUY %s $%.2f @ $%.8f | buzz +%.0f%%",
		p.Asset, p.CostUSD(), p.BuyPrice, pctAbove))
}

// Exited announces a sale.
func (d *Discord) Exited(ctx context.Context, t position.Trade) {
	level := LevelLoss
	if t.PnLPercent > 0 {
		level = LevelProfit
	}
	kind := "SELL"
	if t.Partial {
		kind = "PARTIAL SELL"
	}
	d.deliver(ctx, level, fmt.Sprintf("%s %s %+.1f%% ($%+.2f) | %s", kind, t.Asset, t.PnLPercent, t.PnLUSD, t.Reason))
}

// Halted announces the daily loss cutoff.
func (d *Discord) Halted(ctx context.Context, dailyPnLUSD, dailyPnLPercent float64) {
	d.deliver(ctx, LevelWarning, fmt.Sprintf("Daily loss cutoff hit: $%+.2f (%+.1f%%). New entries halted until tomorrow (UTC).",
		dailyPnLUSD, dailyPnLPercent))
}
