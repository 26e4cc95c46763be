// Package ledger keeps recent trades and derives performance figures from the
// full trade history.
package ledger

import (
	"sync"

	"github.com/shopspring/decimal"

	"buzzbot-go/internal/position"
)

// Listener is notified of every trade after it is appended.
type Listener interface {
	OnTradeClosed(position.Trade)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(position.Trade)

// OnTradeClosed calls f(trade).
func (f ListenerFunc) OnTradeClosed(trade position.Trade) { f(trade) }

// DefaultCapacity is the number of recent trades kept when New is given a
// non-positive capacity.
const DefaultCapacity = 256

// Ledger keeps the most recent trades in a fixed-size ring and running totals
// over every trade it has seen, so Summary covers the whole history while
// memory stays bounded.
type Ledger struct {
	mu        sync.RWMutex
	ring      []position.Trade
	next      int
	size      int
	totals    tally
	listeners []Listener
}

// New creates an empty ledger holding up to capacity recent trades.
func New(capacity int, listeners ...Listener) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		ring:      make([]position.Trade, capacity),
		listeners: listeners,
	}
}

// Subscribe adds a listener for subsequently recorded trades.
func (l *Ledger) Subscribe(listener Listener) {
	l.mu.Lock()
	l.listeners = append(l.listeners, listener)
	l.mu.Unlock()
}

// Record appends a trade and fans it out to listeners in subscription order.
func (l *Ledger) Record(trade position.Trade) {
	l.mu.Lock()
	l.appendLocked(trade)
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	for _, listener := range listeners {
		listener.OnTradeClosed(trade)
	}
}

// Load seeds the ledger with previously persisted trades without notifying
// listeners. Trades are expected oldest first.
func (l *Ledger) Load(trades []position.Trade) {
	l.mu.Lock()
	for _, t := range trades {
		l.appendLocked(t)
	}
	l.mu.Unlock()
}

func (l *Ledger) appendLocked(trade position.Trade) {
	l.ring[l.next] = trade
	l.next = (l.next + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
	l.totals.add(trade)
}

// Recent returns up to limit retained trades, newest first. A non-positive
// limit returns everything retained.
func (l *Ledger) Recent(limit int) []position.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > l.size {
		limit = l.size
	}
	out := make([]position.Trade, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, l.ring[(l.next-i+len(l.ring))%len(l.ring)])
	}
	return out
}

// Summary holds aggregate performance over a set of trades. A trade with a
// non-positive P&L percent counts as a loss. ProfitFactor is zero when there
// is no gross loss to divide by.
type Summary struct {
	TotalTrades       int     `json:"total_trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRatePercent    float64 `json:"win_rate"`
	AvgWinPercent     float64 `json:"avg_win_percent"`
	AvgLossPercent    float64 `json:"avg_loss_percent"`
	ProfitFactor      float64 `json:"profit_factor"`
	GrossProfitUSD    float64 `json:"gross_profit_usd"`
	GrossLossUSD      float64 `json:"gross_loss_usd"`
	TotalPnLUSD       float64 `json:"total_pnl_usd"`
	BestTradePercent  float64 `json:"best_trade_percent"`
	WorstTradePercent float64 `json:"worst_trade_percent"`
	AvgHoldHours      float64 `json:"avg_hold_hours"`
}

// Summary computes performance over every trade recorded or loaded,
// including those already evicted from the ring.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals.summary()
}

// Summarize computes performance over trades.
func Summarize(trades []position.Trade) Summary {
	var t tally
	for _, trade := range trades {
		t.add(trade)
	}
	return t.summary()
}

// tally accumulates the figures behind a Summary. Money sums are kept in
// decimal so long histories do not drift.
type tally struct {
	trades      int
	wins        int
	losses      int
	best        float64
	worst       float64
	grossProfit decimal.Decimal
	grossLoss   decimal.Decimal
	winPct      decimal.Decimal
	lossPct     decimal.Decimal
	totalPnL    decimal.Decimal
	holdHours   decimal.Decimal
}

func (t *tally) add(trade position.Trade) {
	if t.trades == 0 {
		t.best, t.worst = trade.PnLPercent, trade.PnLPercent
	}
	t.trades++
	pnl := decimal.NewFromFloat(trade.PnLUSD)
	pct := decimal.NewFromFloat(trade.PnLPercent)
	t.totalPnL = t.totalPnL.Add(pnl)
	if trade.PnLPercent > 0 {
		t.wins++
		t.grossProfit = t.grossProfit.Add(pnl)
		t.winPct = t.winPct.Add(pct)
	} else {
		t.losses++
		t.grossLoss = t.grossLoss.Add(pnl)
		t.lossPct = t.lossPct.Add(pct)
	}
	t.holdHours = t.holdHours.Add(decimal.NewFromFloat(trade.HoldHours()))
	if trade.PnLPercent > t.best {
		t.best = trade.PnLPercent
	}
	if trade.PnLPercent < t.worst {
		t.worst = trade.PnLPercent
	}
}

func (t *tally) summary() Summary {
	var s Summary
	if t.trades == 0 {
		return s
	}
	s.TotalTrades = t.trades
	s.Wins = t.wins
	s.Losses = t.losses
	s.BestTradePercent = t.best
	s.WorstTradePercent = t.worst

	total := decimal.NewFromInt(int64(t.trades))
	s.WinRatePercent = decimal.NewFromInt(int64(t.wins)).Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
	if t.wins > 0 {
		s.AvgWinPercent = t.winPct.Div(decimal.NewFromInt(int64(t.wins))).InexactFloat64()
	}
	if t.losses > 0 {
		s.AvgLossPercent = t.lossPct.Div(decimal.NewFromInt(int64(t.losses))).InexactFloat64()
	}
	grossLoss := t.grossLoss.Abs()
	if grossLoss.IsPositive() {
		s.ProfitFactor = t.grossProfit.Div(grossLoss).InexactFloat64()
	}
	s.GrossProfitUSD = t.grossProfit.InexactFloat64()
	s.GrossLossUSD = grossLoss.InexactFloat64()
	s.TotalPnLUSD = t.totalPnL.InexactFloat64()
	s.AvgHoldHours = t.holdHours.Div(total).InexactFloat64()
	return s
}
