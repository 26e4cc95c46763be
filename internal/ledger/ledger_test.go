package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/position"
)

func trade(id string, pnlUSD, pnlPct float64, hold time.Duration) position.Trade {
	return position.Trade{ID: id, Asset: "PEPE", PnLUSD: pnlUSD, PnLPercent: pnlPct, HoldDuration: hold}
}

func TestRecordNotifiesListenersInOrder(t *testing.T) {
	var seen []string
	l := ledger.New(4, ledger.ListenerFunc(func(tr position.Trade) { seen = append(seen, "first:"+tr.ID) }))
	l.Subscribe(ledger.ListenerFunc(func(tr position.Trade) { seen = append(seen, "second:"+tr.ID) }))

	l.Record(trade("t1", 1, 1, time.Hour))

	assert.Equal(t, []string{"first:t1", "second:t1"}, seen)
	assert.Len(t, l.Recent(0), 1)
}

func TestLoadDoesNotNotify(t *testing.T) {
	calls := 0
	l := ledger.New(0, ledger.ListenerFunc(func(position.Trade) { calls++ }))
	l.Load([]position.Trade{trade("old", 1, 1, 0)})
	assert.Zero(t, calls)
	assert.Len(t, l.Recent(0), 1)
	assert.Equal(t, 1, l.Summary().TotalTrades)
}

func TestRecentIsNewestFirst(t *testing.T) {
	l := ledger.New(0)
	for _, id := range []string{"a", "b", "c"} {
		l.Record(trade(id, 0, 0, 0))
	}

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)
	assert.Len(t, l.Recent(0), 3)
}

func TestRecentIsACopy(t *testing.T) {
	l := ledger.New(0)
	l.Record(trade("a", 1, 1, 0))
	recent := l.Recent(0)
	recent[0].ID = "mutated"
	assert.Equal(t, "a", l.Recent(0)[0].ID)
}

func TestRingEvictsOldestButSummaryKeepsHistory(t *testing.T) {
	l := ledger.New(3)
	l.Load([]position.Trade{trade("old-loss", -6, -6, time.Hour)})
	for _, id := range []string{"a", "b", "c", "d"} {
		l.Record(trade(id, 2, 2, time.Hour))
	}

	recent := l.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"d", "c", "b"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	s := l.Summary()
	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 2, s.TotalPnLUSD, 1e-9)
	assert.InDelta(t, -6, s.WorstTradePercent, 1e-9)
	assert.Equal(t, ledger.Summarize([]position.Trade{
		trade("old-loss", -6, -6, time.Hour),
		trade("a", 2, 2, time.Hour), trade("b", 2, 2, time.Hour),
		trade("c", 2, 2, time.Hour), trade("d", 2, 2, time.Hour),
	}), s)
}

func TestSummarize(t *testing.T) {
	trades := []position.Trade{
		trade("w1", 8, 8, 30*time.Minute),
		trade("w2", 4, 4, time.Hour),
		trade("l1", -6, -6, 90*time.Minute),
		trade("flat", 0, 0, time.Hour),
	}

	s := ledger.Summarize(trades)
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 50, s.WinRatePercent, 1e-9)
	assert.InDelta(t, 6, s.AvgWinPercent, 1e-9)
	assert.InDelta(t, -3, s.AvgLossPercent, 1e-9)
	assert.InDelta(t, 2, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 6, s.TotalPnLUSD, 1e-9)
	assert.InDelta(t, 8, s.BestTradePercent, 1e-9)
	assert.InDelta(t, -6, s.WorstTradePercent, 1e-9)
	assert.InDelta(t, 1, s.AvgHoldHours, 1e-9)
}

func TestSummarizeWithoutLosses(t *testing.T) {
	s := ledger.Summarize([]position.Trade{trade("w", 5, 5, time.Hour)})
	assert.Zero(t, s.ProfitFactor)
	assert.InDelta(t, 100, s.WinRatePercent, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, ledger.Summary{}, ledger.Summarize(nil))
}
