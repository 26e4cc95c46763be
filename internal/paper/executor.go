package paper

import (
	"context"
	"fmt"
	"time"

	"buzzbot-go/internal/execution"
	"buzzbot-go/internal/position"
)

// Venue is the name paper fills carry.
const Venue = "paper"

// PriceSource quotes the current USD price of an asset.
type PriceSource interface {
	CurrentPrice(ctx context.Context, asset string) (float64, error)
}

// Executor fills market orders at the quoted price, shifted against the
// trader by a fixed slippage, and settles them on an Account.
type Executor struct {
	account     *Account
	prices      PriceSource
	slippageBps float64
	recorder    FillRecorder
	now         func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSlippageBps applies bps of adverse slippage to every fill.
func WithSlippageBps(bps float64) ExecutorOption {
	return func(e *Executor) {
		if bps > 0 {
			e.slippageBps = bps
		}
	}
}

// WithRecorder mirrors every fill to rec.
func WithRecorder(rec FillRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = rec }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor builds a paper venue trading against account.
func NewExecutor(account *Account, prices PriceSource, opts ...ExecutorOption) *Executor {
	e := &Executor{account: account, prices: prices, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resume seeds the account with positions reloaded from storage so they can
// be sold, and with the realized P&L of the trade history.
func (e *Executor) Resume(realizedPnLUSD float64, open []position.Position) error {
	holdings := make([]Holding, 0, len(open))
	for _, p := range open {
		holdings = append(holdings, Holding{Asset: p.Asset, Qty: p.Quantity, AvgCost: p.BuyPrice})
	}
	return e.account.Restore(realizedPnLUSD, holdings)
}

// Account exposes the underlying virtual account.
func (e *Executor) Account() *Account { return e.account }

// Buy spends usd on asset.
func (e *Executor) Buy(ctx context.Context, asset string, usd float64) (execution.Fill, error) {
	if usd <= 0 {
		return execution.Fill{}, fmt.Errorf("paper buy %s: usd must be positive", asset)
	}
	px, err := e.quote(ctx, asset, execution.Buy)
	if err != nil {
		return execution.Fill{}, err
	}
	return e.fill(asset, execution.Buy, usd/px, px)
}

// Sell disposes of qty units of asset.
func (e *Executor) Sell(ctx context.Context, asset string, qty float64) (execution.Fill, error) {
	px, err := e.quote(ctx, asset, execution.Sell)
	if err != nil {
		return execution.Fill{}, err
	}
	return e.fill(asset, execution.Sell, qty, px)
}

func (e *Executor) quote(ctx context.Context, asset string, side execution.Side) (float64, error) {
	px, err := e.prices.CurrentPrice(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("paper %s %s: price: %w", side, asset, err)
	}
	if px <= 0 {
		return 0, fmt.Errorf("paper %s %s: non-positive price %g", side, asset, px)
	}
	slip := e.slippageBps / 10_000
	if side == execution.Buy {
		return px * (1 + slip), nil
	}
	return px * (1 - slip), nil
}

func (e *Executor) fill(asset string, side execution.Side, qty, px float64) (execution.Fill, error) {
	if err := e.account.MarketFill(asset, side, qty, px); err != nil {
		return execution.Fill{}, fmt.Errorf("paper %s %s: %w", side, asset, err)
	}
	fill := execution.Fill{
		Asset:    asset,
		Side:     side,
		Quantity: qty,
		Price:    px,
		Venue:    Venue,
		Ts:       e.now().UTC(),
	}
	if e.recorder != nil {
		e.recorder.Record(JournalEntry{
			Fill:        fill,
			CashAfter:   e.account.AvailableCash(),
			RealizedPnL: e.account.RealizedPnL(),
		})
	}
	return fill, nil
}
