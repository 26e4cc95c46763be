// Package report renders trading state as console tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/paper"
	"buzzbot-go/internal/position"
	"buzzbot-go/internal/risk"
	"buzzbot-go/internal/signal"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// Stats writes the performance summary.
func Stats(w io.Writer, s ledger.Summary) {
	t := newTable(w, "PERFORMANCE")
	t.AppendRows([]table.Row{
		{"Trades", s.TotalTrades},
		{"Wins / Losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses)},
		{"Win rate", pct(s.WinRatePercent)},
		{"Avg win", pct(s.AvgWinPercent)},
		{"Avg loss", pct(s.AvgLossPercent)},
		{"Profit factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total P&L", usd(s.TotalPnLUSD)},
		{"Gross profit", usd(s.GrossProfitUSD)},
		{"Gross loss", usd(s.GrossLossUSD)},
		{"Best trade", pct(s.BestTradePercent)},
		{"Worst trade", pct(s.WorstTradePercent)},
		{"Avg hold", fmt.Sprintf("%.2fh", s.AvgHoldHours)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 12, Align: text.AlignRight},
	})
	t.Render()
}

// Risk writes the current risk state.
func Risk(w io.Writer, s risk.State) {
	t := newTable(w, "RISK")
	halted := "no"
	if s.Halted {
		halted = "YES"
	}
	t.AppendRows([]table.Row{
		{"Day", s.Day.Format("2006-01-02")},
		{"Open positions", s.OpenPositions},
		{"Daily P&L", fmt.Sprintf("%s (%s)", usd(s.DailyPnLUSD), pct(s.DailyPnLPercent))},
		{"Realized P&L", usd(s.RealizedPnLUSD)},
		{"Streak W/L", fmt.Sprintf("%d / %d", s.ConsecutiveWins, s.ConsecutiveLosses)},
		{"Halted", halted},
	})
	t.Render()
}

// Positions writes one row per open position.
func Positions(w io.Writer, positions []position.Position, now time.Time) {
	t := newTable(w, "OPEN POSITIONS")
	t.AppendHeader(table.Row{"Asset", "Qty", "Buy", "Last", "Peak", "P&L", "Stages", "Held"})
	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Asset,
			fmt.Sprintf("%.4f", p.Quantity),
			price(p.BuyPrice),
			price(p.LastPrice),
			price(p.PeakPrice),
			pct(p.PnLPercent(p.LastPrice)),
			fmt.Sprintf("%d", stagesFired(p.Stages)),
			now.Sub(p.OpenTime).Truncate(time.Minute).String(),
		})
	}
	if len(positions) == 0 {
		t.AppendRow(table.Row{"-", "", "", "", "", "", "", ""})
	}
	t.Render()
}

// Trades writes the trade history in the order given.
func Trades(w io.Writer, trades []position.Trade) {
	t := newTable(w, "TRADES")
	t.AppendHeader(table.Row{"Sold", "Asset", "Reason", "Qty", "Buy", "Sell", "P&L", "P&L %", "Hold"})
	for _, tr := range trades {
		reason := string(tr.Reason)
		if tr.Partial {
			reason += " (partial)"
		}
		t.AppendRow(table.Row{
			tr.SellTime.Format(time.DateTime),
			tr.Asset,
			reason,
			fmt.Sprintf("%.4f", tr.Quantity),
			price(tr.BuyPrice),
			price(tr.SellPrice),
			usd(tr.PnLUSD),
			pct(tr.PnLPercent),
			fmt.Sprintf("%.2fh", tr.HoldHours()),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

// Signals writes recent buzz signals.
func Signals(w io.Writer, signals []signal.Signal) {
	t := newTable(w, "SIGNALS")
	t.AppendHeader(table.Row{"Time", "Asset", "Mentions", "Baseline", "Above", "Z"})
	for _, s := range signals {
		t.AppendRow(table.Row{
			s.Ts.Format(time.DateTime),
			s.Asset,
			s.CurrentMentions,
			fmt.Sprintf("%.1f", s.BaselineMentions),
			pct(s.PercentAboveBaseline),
			fmt.Sprintf("%.2f", s.ZScore),
		})
	}
	t.Render()
}

// Fills writes the paper fill journal.
func Fills(w io.Writer, entries []paper.JournalEntry) {
	t := newTable(w, "PAPER FILLS")
	t.AppendHeader(table.Row{"#", "Time", "Asset", "Side", "Qty", "Price", "Notional", "Cash", "Realized"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Seq,
			e.Fill.Ts.Format(time.DateTime),
			e.Fill.Asset,
			string(e.Fill.Side),
			fmt.Sprintf("%.4f", e.Fill.Quantity),
			price(e.Fill.Price),
			usd(e.Fill.Notional()),
			usd(e.CashAfter),
			usd(e.RealizedPnL),
		})
	}
	t.Render()
}

func stagesFired(s position.StageSet) int {
	n := 0
	for i := 0; i < 8; i++ {
		if s.Has(i) {
			n++
		}
	}
	return n
}

func usd(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s$%.2f", sign, v)
}

func pct(v float64) string { return fmt.Sprintf("%+.2f%%", v) }

func price(v float64) string {
	if v != 0 && v < 0.01 {
		return fmt.Sprintf("%.8f", v)
	}
	return fmt.Sprintf("%.4f", v)
}
