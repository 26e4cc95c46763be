package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buzzbot-go/internal/execution"
)

const dustFraction = 1e-9

var (
	// ErrAlreadyOpen is returned when opening an asset that is already held.
	ErrAlreadyOpen = errors.New("position already open")
	// ErrNoPosition is returned when an asset has no open position.
	ErrNoPosition = errors.New("no open position")
)

// Book is told when the set of open positions changes.
type Book interface {
	PositionOpened(asset string)
	PositionClosed(asset string)
}

// TradeRecorder receives every trade exactly once.
type TradeRecorder interface {
	Record(Trade)
}

// ExitPolicy decides whether an open position should be (partly) sold.
type ExitPolicy interface {
	Evaluate(p Position, price float64, elapsed time.Duration) (ExitDecision, bool)
}

// Manager is the only owner of Position records. Callers receive copies.
type Manager struct {
	log    zerolog.Logger
	exec   execution.Executor
	book   Book
	trades TradeRecorder
	now    func() time.Time
	mu     sync.RWMutex
	open   map[string]*Position
}

// Option configures Manager construction.
type Option func(*Manager)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires the manager to its venue, risk book and trade ledger.
func NewManager(log zerolog.Logger, exec execution.Executor, book Book, trades TradeRecorder, opts ...Option) *Manager {
	m := &Manager{
		log:    log,
		exec:   exec,
		book:   book,
		trades: trades,
		now:    time.Now,
		open:   make(map[string]*Position),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open buys usd worth of asset. A failed buy leaves no trace.
func (m *Manager) Open(ctx context.Context, asset, signalID string, usd float64) (Position, error) {
	if usd <= 0 {
		return Position{}, fmt.Errorf("open %s: size must be positive", asset)
	}
	m.mu.RLock()
	_, held := m.open[asset]
	m.mu.RUnlock()
	if held {
		return Position{}, fmt.Errorf("open %s: %w", asset, ErrAlreadyOpen)
	}

	fill, err := m.exec.Buy(ctx, asset, usd)
	if err != nil {
		return Position{}, fmt.Errorf("open %s: %w", asset, err)
	}
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return Position{}, fmt.Errorf("open %s: invalid fill qty=%.8f px=%.8f", asset, fill.Quantity, fill.Price)
	}

	now := m.now().UTC()
	p := &Position{
		ID:               uuid.New().String(),
		Asset:            asset,
		SignalID:         signalID,
		Quantity:         fill.Quantity,
		OriginalQuantity: fill.Quantity,
		BuyPrice:         fill.Price,
		PeakPrice:        fill.Price,
		LastPrice:        fill.Price,
		OpenTime:         now,
		Status:           StatusOpen,
	}
	m.mu.Lock()
	m.open[asset] = p
	snapshot := *p
	m.mu.Unlock()

	if m.book != nil {
		m.book.PositionOpened(asset)
	}
	m.log.Info().
		Str("asset", asset).
		Str("position", p.ID).
		Float64("qty", p.Quantity).
		Float64("px", p.BuyPrice).
		Float64("usd", usd).
		Msg("position opened")
	return snapshot, nil
}

// Restore re-adopts positions that were open before a restart.
func (m *Manager) Restore(positions []Position) {
	for _, p := range positions {
		if p.Status != StatusOpen || p.Quantity <= 0 {
			continue
		}
		m.mu.Lock()
		if _, held := m.open[p.Asset]; held {
			m.mu.Unlock()
			continue
		}
		cp := p
		if cp.PeakPrice < cp.BuyPrice {
			cp.PeakPrice = cp.BuyPrice
		}
		m.open[p.Asset] = &cp
		m.mu.Unlock()
		if m.book != nil {
			m.book.PositionOpened(p.Asset)
		}
	}
}

// Mark records the latest observed price; the peak never decreases.
func (m *Manager) Mark(asset string, price float64) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.open[asset]
	if !ok {
		return Position{}, fmt.Errorf("mark %s: %w", asset, ErrNoPosition)
	}
	if price > 0 {
		p.LastPrice = price
		if price > p.PeakPrice {
			p.PeakPrice = price
		}
	}
	return *p, nil
}

// Monitor marks the position at price, asks policy for an exit and applies it.
// It returns the trade produced, or nil when the position is left untouched.
func (m *Manager) Monitor(ctx context.Context, asset string, price float64, policy ExitPolicy) (*Trade, error) {
	p, err := m.Mark(asset, price)
	if err != nil {
		return nil, err
	}
	decision, ok := policy.Evaluate(p, price, m.now().Sub(p.OpenTime))
	if !ok {
		return nil, nil
	}
	trade, err := m.Apply(ctx, asset, decision)
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// Apply sells what decision asks for. On a venue error the position is
// unchanged so the exit is evaluated afresh next cycle.
func (m *Manager) Apply(ctx context.Context, asset string, decision ExitDecision) (Trade, error) {
	m.mu.RLock()
	p, ok := m.open[asset]
	var qty float64
	if ok {
		qty = decision.Quantity
		if decision.Full || qty > p.Quantity {
			qty = p.Quantity
		}
	}
	m.mu.RUnlock()
	if !ok {
		return Trade{}, fmt.Errorf("exit %s: %w", asset, ErrNoPosition)
	}
	if qty <= 0 {
		return Trade{}, fmt.Errorf("exit %s: nothing to sell", asset)
	}

	fill, err := m.exec.Sell(ctx, asset, qty)
	if err != nil {
		return Trade{}, fmt.Errorf("exit %s (%s): %w", asset, decision.Reason, err)
	}
	sold := fill.Quantity
	if sold <= 0 || sold > qty {
		sold = qty
	}

	now := m.now().UTC()
	m.mu.Lock()
	pnl := sold * (fill.Price - p.BuyPrice)
	p.Quantity -= sold
	p.RealizedPnLUSD += pnl
	if decision.Stage != NoStage {
		p.Stages = p.Stages.With(decision.Stage)
	}
	closed := decision.Full || p.Quantity <= p.OriginalQuantity*dustFraction
	if closed {
		p.Quantity = 0
		p.Status = StatusClosed
		p.CloseTime = now
		delete(m.open, asset)
	}
	trade := Trade{
		ID:             uuid.New().String(),
		PositionID:     p.ID,
		Asset:          asset,
		Quantity:       sold,
		BuyPrice:       p.BuyPrice,
		SellPrice:      fill.Price,
		PnLUSD:         pnl,
		PnLPercent:     p.PnLPercent(fill.Price),
		HoldDuration:   now.Sub(p.OpenTime),
		BuyTime:        p.OpenTime,
		SellTime:       now,
		Reason:         decision.Reason,
		Partial:        !closed,
		PositionPnLUSD: p.RealizedPnLUSD,
	}
	remaining := p.Quantity
	m.mu.Unlock()

	if closed && m.book != nil {
		m.book.PositionClosed(asset)
	}
	if m.trades != nil {
		m.trades.Record(trade)
	}
	m.log.Info().
		Str("asset", asset).
		Str("reason", string(decision.Reason)).
		Float64("qty", sold).
		Float64("px", fill.Price).
		Float64("pnl_usd", pnl).
		Float64("remaining", remaining).
		Bool("closed", closed).
		Msg("position exit")
	return trade, nil
}

// Get returns a copy of the open position for asset.
func (m *Manager) Get(asset string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.open[asset]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Assets lists assets with open positions in sorted order.
func (m *Manager) Assets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.open))
	for asset := range m.open {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Count is the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}

// Snapshot copies every open position, sorted by asset.
func (m *Manager) Snapshot() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
