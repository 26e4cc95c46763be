// Package exit evaluates stop-loss, trailing-stop, take-profit and time-stop
// rules against open positions.
package exit

import (
	"math"
	"time"

	"buzzbot-go/internal/position"
)

// tolerance absorbs float noise when prices land exactly on a rule level.
const tolerance = 1e-9

// Stage is one scaled take-profit step: sell Fraction of the original
// quantity once the gain reaches Percent.
type Stage struct {
	Percent  float64
	Fraction float64
}

// Rules holds the exit parameters, percentages expressed as 6 for 6%.
type Rules struct {
	StopLossPercent     float64
	TrailingStopPercent float64
	Stages              []Stage
	TimeStop            time.Duration
	FlatBandPercent     float64
}

// DefaultRules mirrors the documented defaults.
func DefaultRules() Rules {
	return Rules{
		StopLossPercent:     6,
		TrailingStopPercent: 4,
		Stages: []Stage{
			{Percent: 8, Fraction: 0.5},
			{Percent: 15, Fraction: 0.25},
		},
		TimeStop:        2 * time.Hour,
		FlatBandPercent: 1,
	}
}

// Engine applies Rules in fixed precedence: stop-loss, trailing stop,
// take-profit stage, time stop. The first match wins.
type Engine struct {
	rules Rules
}

// NewEngine builds an exit engine.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the configured rules.
func (e *Engine) Rules() Rules { return e.rules }

// Evaluate returns the single exit to perform for p at price, if any.
func (e *Engine) Evaluate(p position.Position, price float64, elapsed time.Duration) (position.ExitDecision, bool) {
	if p.Status != position.StatusOpen || p.Quantity <= 0 || p.BuyPrice <= 0 || price <= 0 {
		return position.ExitDecision{}, false
	}
	full := func(reason position.ExitReason) (position.ExitDecision, bool) {
		return position.ExitDecision{Reason: reason, Quantity: p.Quantity, Stage: position.NoStage, Full: true}, true
	}

	if e.rules.StopLossPercent > 0 && atOrBelow(price, p.BuyPrice*(1-e.rules.StopLossPercent/100)) {
		return full(position.ReasonStopLoss)
	}

	if e.rules.TrailingStopPercent > 0 && p.PeakPrice > p.BuyPrice &&
		atOrBelow(price, p.PeakPrice*(1-e.rules.TrailingStopPercent/100)) {
		return full(position.ReasonTrailingStop)
	}

	for i, stage := range e.rules.Stages {
		if p.Stages.Has(i) {
			continue
		}
		if !atOrAbove(price, p.BuyPrice*(1+stage.Percent/100)) {
			break
		}
		qty := math.Min(stage.Fraction*p.OriginalQuantity, p.Quantity)
		return position.ExitDecision{
			Reason:   position.ReasonTakeProfit,
			Quantity: qty,
			Stage:    i,
			Full:     qty >= p.Quantity*(1-tolerance),
		}, true
	}

	if e.rules.TimeStop > 0 && elapsed >= e.rules.TimeStop &&
		math.Abs(p.PnLPercent(price)) <= e.rules.FlatBandPercent+tolerance {
		return full(position.ReasonTimeStop)
	}
	return position.ExitDecision{}, false
}

func atOrBelow(price, level float64) bool { return price <= level*(1+tolerance) }

func atOrAbove(price, level float64) bool { return price >= level*(1-tolerance) }
