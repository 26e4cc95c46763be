package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/app"
	"buzzbot-go/internal/collector"
	"buzzbot-go/internal/config"
	"buzzbot-go/internal/exchange"
	"buzzbot-go/internal/position"
)

// trending serves a CoinGecko trending list with the asset at a settable rank.
func trending(t *testing.T, symbol string, rank *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/search/trending" {
			http.NotFound(w, r)
			return
		}
		coins := make([]map[string]any, 15)
		for i := range coins {
			sym := fmt.Sprintf("FILL%d", i)
			if int32(i) == rank.Load() {
				sym = symbol
			}
			coins[i] = map[string]any{"item": map[string]string{"symbol": sym, "name": sym}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"coins": coins})
	}))
}

func TestPaperFlowBuysOnBuzzAndStopsOut(t *testing.T) {
	ctx := context.Background()
	var rank atomic.Int32
	rank.Store(14)
	srv := trending(t, "BONK", &rank)
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Assets = []config.Asset{{Symbol: "BONK"}}
	cfg.Collector.Sources = []string{collector.SourceCoinGeckoTrending}
	cfg.Collector.CoinGeckoBaseURL = srv.URL
	cfg.Prices.Provider = exchange.ProviderStub
	cfg.Paper.SlippageBps = 0
	cfg.Storage.Driver = "memory"
	cfg.App.APIAddr = ""
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	var buf bytes.Buffer
	a, err := app.Build(cfg, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer a.Close()
	prices := a.Prices.(*exchange.Stub)
	prices.Set("BONK", 0.002)

	// Rank 14 scores 20 mentions; three quiet cycles build the baseline.
	for i := 0; i < 3; i++ {
		report, err := a.Engine.RunCycle(ctx)
		if err != nil {
			t.Fatalf("warm-up cycle %d: %v", i, err)
		}
		if len(report.Signals) != 0 {
			t.Fatalf("unexpected signal during warm-up: %+v", report.Signals)
		}
	}

	// Rank 0 scores 300 mentions, 1400% above baseline.
	rank.Store(0)
	report, err := a.Engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("spike cycle: %v", err)
	}
	if len(report.Signals) != 1 || len(report.Opened) != 1 {
		t.Fatalf("expected one signal and one entry, got %+v", report)
	}
	positions := a.Engine.Positions()
	if len(positions) != 1 || positions[0].Quantity <= 0 {
		t.Fatalf("expected an open BONK position, got %+v", positions)
	}
	if got := positions[0].CostUSD(); got < 199.99 || got > 200.01 {
		t.Fatalf("expected a $200 entry, got %.4f", got)
	}

	rank.Store(14)
	prices.Set("BONK", 0.00188)
	report, err = a.Engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("exit cycle: %v", err)
	}
	if len(report.Trades) != 1 || report.Trades[0].Reason != position.ReasonStopLoss {
		t.Fatalf("expected a stop-loss exit, got %+v", report.Trades)
	}
	if len(a.Engine.Positions()) != 0 {
		t.Fatalf("position should be closed")
	}

	summary := a.Engine.Summary()
	if summary.TotalTrades != 1 || summary.Losses != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if err := a.Risk.Check("BONK"); err == nil {
		t.Fatalf("expected BONK to be cooling down after a loss")
	}
	history, err := a.Store.TradeHistory(ctx, 10)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected persisted trade, got %d (%v)", len(history), err)
	}

	resp := httptest.NewRecorder()
	a.API.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"total_trades":1`) {
		t.Fatalf("unexpected /stats response %d %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(buf.String(), "buzz signal") {
		t.Fatalf("expected log output to include the signal, got %s", buf.String())
	}
}

func TestPaperRestartSellsReloadedPosition(t *testing.T) {
	ctx := context.Background()
	var rank atomic.Int32
	rank.Store(14)
	srv := trending(t, "BONK", &rank)
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Assets = []config.Asset{{Symbol: "BONK"}}
	cfg.Collector.Sources = []string{collector.SourceCoinGeckoTrending}
	cfg.Collector.CoinGeckoBaseURL = srv.URL
	cfg.Prices.Provider = exchange.ProviderStub
	cfg.Paper.SlippageBps = 0
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "buzzbot.db")
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	first, err := app.Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	first.Prices.(*exchange.Stub).Set("BONK", 0.002)
	for i := 0; i < 3; i++ {
		if _, err := first.Engine.RunCycle(ctx); err != nil {
			t.Fatalf("warm-up cycle %d: %v", i, err)
		}
	}
	rank.Store(0)
	report, err := first.Engine.RunCycle(ctx)
	if err != nil || len(report.Opened) != 1 {
		t.Fatalf("expected an entry before restart, got %+v (%v)", report, err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	rank.Store(14)
	second, err := app.Build(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("rebuild returned error: %v", err)
	}
	defer second.Close()
	if err := second.Engine.Restore(ctx); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if got := second.Paper.Holding("BONK"); got <= 0 {
		t.Fatalf("paper account should hold the reloaded BONK, got %g", got)
	}
	if cash := second.Paper.AvailableCash(); cash < 4799.99 || cash > 4800.01 {
		t.Fatalf("expected $4800 cash after reload, got %.4f", cash)
	}

	second.Prices.(*exchange.Stub).Set("BONK", 0.00188)
	report, err = second.Engine.RunCycle(ctx)
	if err != nil {
		t.Fatalf("exit cycle: %v", err)
	}
	if report.Errors != 0 {
		t.Fatalf("exit cycle logged %d errors", report.Errors)
	}
	if len(report.Trades) != 1 || report.Trades[0].Reason != position.ReasonStopLoss {
		t.Fatalf("expected a stop-loss exit after restart, got %+v", report.Trades)
	}
	if len(second.Engine.Positions()) != 0 {
		t.Fatalf("position should be closed")
	}
	if cash := second.Paper.AvailableCash(); cash < 4987.99 || cash > 4988.01 {
		t.Fatalf("expected $4988 cash after the stop, got %.4f", cash)
	}
}
