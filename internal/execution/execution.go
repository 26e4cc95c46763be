// Package execution defines the order placement contract and its instrumentation.
package execution

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long entry.
	Buy Side = "BUY"
	// Sell indicates an exit of held quantity.
	Sell Side = "SELL"
)

// ErrLiveDisabled is returned when a live venue is used without live trading enabled.
var ErrLiveDisabled = errors.New("live trading disabled")

// Fill is the venue's answer to a market order.
type Fill struct {
	Asset    string    `json:"asset"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Venue    string    `json:"venue"`
	TxID     string    `json:"tx_id,omitempty"`
	Ts       time.Time `json:"ts"`
}

// Notional is quantity times price.
func (f Fill) Notional() float64 { return f.Quantity * f.Price }

// Executor places market orders. Paper and live venues both satisfy it.
type Executor interface {
	Buy(ctx context.Context, asset string, usd float64) (Fill, error)
	Sell(ctx context.Context, asset string, qty float64) (Fill, error)
}

// Instrumented wraps an Executor with order logging and metrics.
type Instrumented struct {
	next Executor
	log  zerolog.Logger
}

// NewInstrumented decorates next.
func NewInstrumented(next Executor, log zerolog.Logger) *Instrumented {
	return &Instrumented{next: next, log: log}
}

// Buy forwards to the wrapped venue.
func (in *Instrumented) Buy(ctx context.Context, asset string, usd float64) (Fill, error) {
	fill, err := in.next.Buy(ctx, asset, usd)
	if err != nil {
		in.log.Warn().Err(err).Str("asset", asset).Float64("usd", usd).Msg("buy failed")
		return fill, err
	}
	in.observe(fill)
	return fill, nil
}

// Sell forwards to the wrapped venue.
func (in *Instrumented) Sell(ctx context.Context, asset string, qty float64) (Fill, error) {
	fill, err := in.next.Sell(ctx, asset, qty)
	if err != nil {
		in.log.Warn().Err(err).Str("asset", asset).Float64("qty", qty).Msg("sell failed")
		return fill, err
	}
	in.observe(fill)
	return fill, nil
}

func (in *Instrumented) observe(fill Fill) {
	metrics.OrdersTotal.WithLabelValues(fill.Asset, string(fill.Side)).Inc()
	in.log.Info().
		Str("asset", fill.Asset).
		Str("side", string(fill.Side)).
		Float64("qty", fill.Quantity).
		Float64("px", fill.Price).
		Str("venue", fill.Venue).
		Str("tx", fill.TxID).
		Msg("order filled")
}
