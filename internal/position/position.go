// Package position owns the lifecycle of tradable positions from open to closed.
package position

import (
	"time"
)

// Status is the lifecycle state of a position.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ExitReason names the rule that triggered a sale.
type ExitReason string

const (
	ReasonStopLoss     ExitReason = "stop_loss"
	ReasonTrailingStop ExitReason = "trailing_stop"
	ReasonTakeProfit   ExitReason = "take_profit"
	ReasonTimeStop     ExitReason = "time_stop"
)

// NoStage marks exit decisions that are not take-profit stages.
const NoStage = -1

// StageSet records which take-profit stages already fired for a position.
type StageSet uint8

// Has reports whether stage i fired.
func (s StageSet) Has(i int) bool {
	if i < 0 || i > 7 {
		return false
	}
	return s&(1<<uint(i)) != 0
}

// With returns the set with stage i marked.
func (s StageSet) With(i int) StageSet {
	if i < 0 || i > 7 {
		return s
	}
	return s | 1<<uint(i)
}

// Position is a long holding in one asset.
type Position struct {
	ID               string    `json:"id"`
	Asset            string    `json:"asset"`
	SignalID         string    `json:"signal_id,omitempty"`
	Quantity         float64   `json:"quantity"`
	OriginalQuantity float64   `json:"original_quantity"`
	BuyPrice         float64   `json:"buy_price"`
	PeakPrice        float64   `json:"peak_price"`
	LastPrice        float64   `json:"last_price"`
	OpenTime         time.Time `json:"open_time"`
	CloseTime        time.Time `json:"close_time,omitempty"`
	Status           Status    `json:"status"`
	Stages           StageSet  `json:"stages_fired"`
	RealizedPnLUSD   float64   `json:"realized_pnl_usd"`
}

// PnLPercent is the unrealized return at price relative to the buy price.
func (p Position) PnLPercent(price float64) float64 {
	if p.BuyPrice <= 0 {
		return 0
	}
	return (price - p.BuyPrice) / p.BuyPrice * 100
}

// CostUSD is the entry notional of the quantity still held.
func (p Position) CostUSD() float64 { return p.Quantity * p.BuyPrice }

// ExitDecision is what the exit rules ask the manager to sell this cycle.
type ExitDecision struct {
	Reason   ExitReason `json:"reason"`
	Quantity float64    `json:"quantity"`
	Stage    int        `json:"stage"`
	Full     bool       `json:"full"`
}

// Trade is an immutable record of one sale, partial or final.
type Trade struct {
	ID             string        `json:"id"`
	PositionID     string        `json:"position_id"`
	Asset          string        `json:"asset"`
	Quantity       float64       `json:"quantity"`
	BuyPrice       float64       `json:"buy_price"`
	SellPrice      float64       `json:"sell_price"`
	PnLUSD         float64       `json:"pnl_usd"`
	PnLPercent     float64       `json:"pnl_percent"`
	HoldDuration   time.Duration `json:"hold_duration"`
	BuyTime        time.Time     `json:"buy_time"`
	SellTime       time.Time     `json:"sell_time"`
	Reason         ExitReason    `json:"reason"`
	Partial        bool          `json:"partial"`
	PositionPnLUSD float64       `json:"position_pnl_usd"`
}

// HoldHours is the hold duration expressed in hours.
func (t Trade) HoldHours() float64 { return t.HoldDuration.Hours() }
