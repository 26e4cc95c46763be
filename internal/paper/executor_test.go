package paper

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fixedPrices map[string]float64

func (f fixedPrices) CurrentPrice(_ context.Context, asset string) (float64, error) {
	px, ok := f[asset]
	if !ok {
		return 0, errors.New("no price")
	}
	return px, nil
}

type captured struct{ entries []JournalEntry }

func (c *captured) Record(e JournalEntry) { c.entries = append(c.entries, e) }

func TestExecutorAppliesSlippage(t *testing.T) {
	rec := &captured{}
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	exec := NewExecutor(NewAccount(1000), fixedPrices{"PEPE": 2},
		WithSlippageBps(50), WithRecorder(rec), WithClock(func() time.Time { return at }))

	buy, err := exec.Buy(context.Background(), "PEPE", 201)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if math.Abs(buy.Price-2.01) > 1e-12 || math.Abs(buy.Quantity-100) > 1e-9 {
		t.Fatalf("unexpected buy fill %+v", buy)
	}
	if buy.Venue != Venue || !buy.Ts.Equal(at) {
		t.Fatalf("fill metadata wrong: %+v", buy)
	}

	sell, err := exec.Sell(context.Background(), "PEPE", 100)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if math.Abs(sell.Price-1.99) > 1e-12 {
		t.Fatalf("unexpected sell price %g", sell.Price)
	}
	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 recorded fills, got %d", len(rec.entries))
	}
	last := rec.entries[1]
	if math.Abs(last.CashAfter-998) > 1e-9 || math.Abs(last.RealizedPnL+2) > 1e-9 {
		t.Fatalf("journal should carry the account after the sell, got %+v", last)
	}
}

func TestExecutorPriceFailure(t *testing.T) {
	exec := NewExecutor(NewAccount(1000), fixedPrices{})
	if _, err := exec.Buy(context.Background(), "PEPE", 10); err == nil {
		t.Fatalf("expected price error")
	}
}

func TestExecutorRejectsOverspend(t *testing.T) {
	account := NewAccount(50)
	exec := NewExecutor(account, fixedPrices{"PEPE": 1})
	_, err := exec.Buy(context.Background(), "PEPE", 100)
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if account.AvailableCash() != 50 {
		t.Fatalf("failed buy must not move cash")
	}
}
