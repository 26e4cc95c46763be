package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"buzzbot-go/internal/execution"
	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/paper"
	"buzzbot-go/internal/position"
	"buzzbot-go/internal/risk"
	"buzzbot-go/internal/signal"
)

func TestStatsTable(t *testing.T) {
	var buf bytes.Buffer
	Stats(&buf, ledger.Summary{TotalTrades: 4, Wins: 3, Losses: 1, WinRatePercent: 75, TotalPnLUSD: -12.5, ProfitFactor: 1.8})

	out := buf.String()
	for _, want := range []string{"PERFORMANCE", "3 / 1", "+75.00%", "-$12.50", "1.80"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPositionsTable(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	Positions(&buf, []position.Position{{
		Asset:     "BONK",
		Quantity:  50,
		BuyPrice:  0.00002,
		LastPrice: 0.000022,
		PeakPrice: 0.000023,
		OpenTime:  now.Add(-90 * time.Minute),
		Stages:    position.StageSet(0).With(0),
	}}, now)

	out := buf.String()
	for _, want := range []string{"BONK", "0.00002000", "+10.00%", "1h30m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestEmptyPositionsTable(t *testing.T) {
	var buf bytes.Buffer
	Positions(&buf, nil, time.Now())
	if !strings.Contains(buf.String(), "OPEN POSITIONS") {
		t.Fatalf("missing title:\n%s", buf.String())
	}
}

func TestTradesTableMarksPartials(t *testing.T) {
	var buf bytes.Buffer
	Trades(&buf, []position.Trade{
		{Asset: "WIF", Reason: position.ReasonTakeProfit, Partial: true, PnLUSD: 4, PnLPercent: 8},
		{Asset: "WIF", Reason: position.ReasonStopLoss, PnLUSD: -6, PnLPercent: -6},
	})

	out := buf.String()
	for _, want := range []string{"take_profit (partial)", "stop_loss", "-$6.00", "+8.00%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRiskAndSignalsTables(t *testing.T) {
	var buf bytes.Buffer
	Risk(&buf, risk.State{Day: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), Halted: true, DailyPnLPercent: -10.5})
	Signals(&buf, []signal.Signal{{Asset: "PEPE", CurrentMentions: 35, BaselineMentions: 10, PercentAboveBaseline: 250}})

	out := buf.String()
	for _, want := range []string{"2026-06-01", "YES", "-10.50%", "PEPE", "+250.00%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFillsTable(t *testing.T) {
	var buf bytes.Buffer
	Fills(&buf, []paper.JournalEntry{{
		Seq:         3,
		Fill:        execution.Fill{Asset: "BONK", Side: execution.Sell, Quantity: 1000, Price: 0.5},
		CashAfter:   1250,
		RealizedPnL: -20,
	}})

	out := buf.String()
	for _, want := range []string{"PAPER FILLS", "BONK", "$500.00", "$1250.00", "-$20.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
