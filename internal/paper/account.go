// Package paper simulates order execution against a virtual USD account.
package paper

import (
	"errors"
	"fmt"
	"sync"

	"buzzbot-go/internal/execution"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(JournalEntry)
}

// ErrInsufficientCash is returned when a buy costs more than the free cash.
var ErrInsufficientCash = errors.New("insufficient cash for buy")

// ErrInsufficientPosition is returned when selling more than is held.
var ErrInsufficientPosition = errors.New("insufficient position to sell")

const epsilon = 1e-9

type holding struct {
	Qty     float64
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and per-asset holdings while trading in paper mode.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	cash         float64
	realizedPnL  float64
	holdings     map[string]holding
}

// HoldingSnapshot exposes a read-only view of a single asset holding.
type HoldingSnapshot struct {
	Qty         float64 `json:"qty"`
	AvgCost     float64 `json:"avg_cost"`
	MarketValue float64 `json:"market_value"`
	Unrealized  float64 `json:"unrealized"`
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64                    `json:"cash"`
	RealizedPnL float64                    `json:"realized_pnl"`
	Equity      float64                    `json:"equity"`
	Holdings    map[string]HoldingSnapshot `json:"holdings"`
}

// NewAccount constructs an account funded with startingCash USD.
func NewAccount(startingCash float64) *Account {
	return &Account{
		startingCash: startingCash,
		cash:         startingCash,
		holdings:     make(map[string]holding),
	}
}

// Holding is a position carried into Restore.
type Holding struct {
	Asset   string
	Qty     float64
	AvgCost float64
}

// Restore rebuilds the account after a restart from the realized P&L of
// every closed trade and the holdings still open. Cash becomes starting cash
// plus realized P&L less the cost of the holdings.
func (a *Account) Restore(realizedPnL float64, open []Holding) error {
	holdings := make(map[string]holding, len(open))
	cash := a.startingCash + realizedPnL
	for _, h := range open {
		if h.Qty <= 0 || h.AvgCost <= 0 {
			return fmt.Errorf("restore %s: quantity and cost must be positive", h.Asset)
		}
		if _, dup := holdings[h.Asset]; dup {
			return fmt.Errorf("restore %s: duplicate holding", h.Asset)
		}
		holdings[h.Asset] = holding{Qty: h.Qty, AvgCost: h.AvgCost}
		cash -= h.Qty * h.AvgCost
	}
	if cash < -epsilon {
		return fmt.Errorf("%w: restored holdings cost %.2f more than the account holds", ErrInsufficientCash, -cash)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cash = cash
	a.realizedPnL = realizedPnL
	a.holdings = holdings
	return nil
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill executes a market order at price, mutating balances if successful.
func (a *Account) MarketFill(asset string, side execution.Side, qty, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.holdings[asset]
	notional := qty * price

	switch side {
	case execution.Buy:
		if notional > a.cash+epsilon {
			return fmt.Errorf("%w: need %.2f have %.2f", ErrInsufficientCash, notional, a.cash)
		}
		newQty := state.Qty + qty
		a.cash -= notional
		a.holdings[asset] = holding{Qty: newQty, AvgCost: (state.AvgCost*state.Qty + notional) / newQty}

	case execution.Sell:
		if state.Qty <= 0 || state.Qty+epsilon < qty {
			return fmt.Errorf("%w: have %g want %g", ErrInsufficientPosition, state.Qty, qty)
		}
		a.realizedPnL += (price - state.AvgCost) * qty
		a.cash += notional
		newQty := state.Qty - qty
		if newQty <= epsilon {
			delete(a.holdings, asset)
		} else {
			a.holdings[asset] = holding{Qty: newQty, AvgCost: state.AvgCost}
		}

	default:
		return fmt.Errorf("unknown order side %q", side)
	}
	return nil
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	holdings := make(map[string]HoldingSnapshot, len(a.holdings))
	equity := a.cash
	for asset, h := range a.holdings {
		mark := prices[asset]
		var marketValue, unrealized float64
		if mark > 0 {
			marketValue = h.Qty * mark
			unrealized = (mark - h.AvgCost) * h.Qty
		}
		holdings[asset] = HoldingSnapshot{
			Qty:         h.Qty,
			AvgCost:     h.AvgCost,
			MarketValue: marketValue,
			Unrealized:  unrealized,
		}
		equity += marketValue
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Holdings:    holdings,
	}
}

// AvailableCash reports free cash that can be deployed into new longs.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Holding returns the quantity held for asset.
func (a *Account) Holding(asset string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings[asset].Qty
}

// RealizedPnL returns total closed profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
