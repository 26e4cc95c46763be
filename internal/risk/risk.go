// Package risk gates entries against portfolio limits and sizes new positions.
package risk

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/position"
)

const breakEvenUSD = 1e-9

// Reasons CanOpen refuses an entry, in evaluation order.
var (
	ErrDailyHalt     = errors.New("daily loss cutoff reached")
	ErrMaxConcurrent = errors.New("max concurrent positions reached")
	ErrAlreadyHeld   = errors.New("position already open for asset")
	ErrBlacklisted   = errors.New("asset blacklisted")
	ErrCoolingDown   = errors.New("asset cooling down after a loss")
)

// Limits are the portfolio-level guard-rails. Percentages are given as 10 for 10%.
type Limits struct {
	MaxPositionUSD         float64
	MaxConcurrent          int
	DailyLossCutoffPercent float64
	DailyLossCutoffUSD     float64
	LossStreak             int
	LossStreakFactor       float64
	WinStreak              int
	WinStreakFactor        float64
	MaxRiskPercent         float64
	LossCooldown           time.Duration
	Blacklist              []string
}

// DefaultLimits mirrors the documented defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionUSD:         200,
		MaxConcurrent:          2,
		DailyLossCutoffPercent: 10,
		LossStreak:             2,
		LossStreakFactor:       0.5,
		WinStreak:              3,
		WinStreakFactor:        1.25,
		MaxRiskPercent:         5,
		LossCooldown:           24 * time.Hour,
	}
}

// State is the per-trading-day risk picture. OpenPositions and
// RealizedPnLUSD carry across days; everything else resets at UTC midnight.
type State struct {
	Day               time.Time `json:"day"`
	OpenPositions     int       `json:"open_positions"`
	OpenAssets        []string  `json:"open_assets"`
	DailyPnLUSD       float64   `json:"daily_pnl_usd"`
	DailyPnLPercent   float64   `json:"daily_pnl_percent"`
	DayStartEquityUSD float64   `json:"day_start_equity_usd"`
	RealizedPnLUSD    float64   `json:"realized_pnl_usd"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	Halted            bool      `json:"halted"`
}

// Manager owns the risk state. The trading loop is its only writer; other
// goroutines read through Snapshot.
type Manager struct {
	log          zerolog.Logger
	limits       Limits
	portfolioUSD float64
	now          func() time.Time
	mu           sync.RWMutex
	state        State
	open         map[string]struct{}
	cooldowns    map[string]time.Time
	blacklist    map[string]struct{}
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

// NewManager builds a risk manager for a portfolio of portfolioUSD.
func NewManager(log zerolog.Logger, limits Limits, portfolioUSD float64, opts ...Option) *Manager {
	m := &Manager{
		log:          log,
		limits:       limits,
		portfolioUSD: portfolioUSD,
		now:          time.Now,
		open:         make(map[string]struct{}),
		cooldowns:    make(map[string]time.Time),
		blacklist:    make(map[string]struct{}, len(limits.Blacklist)),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, asset := range limits.Blacklist {
		if asset = normalize(asset); asset != "" {
			m.blacklist[asset] = struct{}{}
		}
	}
	m.state.Day = tradingDay(m.now())
	m.state.DayStartEquityUSD = portfolioUSD
	return m
}

// RollDay resets the daily counters when now falls on a new trading day.
func (m *Manager) RollDay(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked(now)
}

func (m *Manager) rollLocked(now time.Time) {
	day := tradingDay(now)
	if !day.After(m.state.Day) {
		return
	}
	m.log.Info().
		Time("day", day).
		Float64("previous_pnl_usd", m.state.DailyPnLUSD).
		Bool("was_halted", m.state.Halted).
		Msg("new trading day")
	m.state.Day = day
	m.state.DailyPnLUSD = 0
	m.state.ConsecutiveWins = 0
	m.state.ConsecutiveLosses = 0
	m.state.Halted = false
	m.state.DayStartEquityUSD = m.portfolioUSD + m.state.RealizedPnLUSD
}

// Check returns nil when a new position in asset is allowed, otherwise the
// first failing gate.
func (m *Manager) Check(asset string) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked(now)

	if m.state.Halted {
		return ErrDailyHalt
	}
	if m.limits.MaxConcurrent > 0 && len(m.open) >= m.limits.MaxConcurrent {
		return ErrMaxConcurrent
	}
	if _, held := m.open[asset]; held {
		return ErrAlreadyHeld
	}
	if _, banned := m.blacklist[normalize(asset)]; banned {
		return ErrBlacklisted
	}
	if until, ok := m.cooldowns[asset]; ok {
		if now.Before(until) {
			return ErrCoolingDown
		}
		delete(m.cooldowns, asset)
	}
	return nil
}

// CanOpen reports whether every gate passes for asset.
func (m *Manager) CanOpen(asset string) bool {
	return m.Check(asset) == nil
}

// SizeFor returns the USD amount for a new position, adjusted for the current
// streak and capped at the per-trade risk ceiling.
func (m *Manager) SizeFor(asset string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.limits.MaxPositionUSD
	switch {
	case m.limits.LossStreak > 0 && m.state.ConsecutiveLosses >= m.limits.LossStreak:
		size *= m.limits.LossStreakFactor
	case m.limits.WinStreak > 0 && m.state.ConsecutiveWins >= m.limits.WinStreak:
		size *= m.limits.WinStreakFactor
	}
	if ceiling := m.equityLocked() * m.limits.MaxRiskPercent / 100; m.limits.MaxRiskPercent > 0 && size > ceiling {
		size = ceiling
	}
	return math.Max(0, size)
}

// PositionOpened counts a new open position.
func (m *Manager) PositionOpened(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[asset] = struct{}{}
	m.state.OpenPositions = len(m.open)
}

// PositionClosed releases the concurrency slot held by asset.
func (m *Manager) PositionClosed(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, asset)
	m.state.OpenPositions = len(m.open)
}

// OnTradeClosed books realized P&L. Streaks and the loss cooldown follow the
// net result of a whole position, so only the final trade of a position moves
// them; a break-even position leaves both streak counters untouched.
func (m *Manager) OnTradeClosed(trade position.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked(trade.SellTime)

	m.state.DailyPnLUSD += trade.PnLUSD
	m.state.RealizedPnLUSD += trade.PnLUSD
	m.settleLocked(trade, true)

	if !m.state.Halted && m.breachedLocked() {
		m.state.Halted = true
		m.log.Warn().
			Float64("daily_pnl_usd", m.state.DailyPnLUSD).
			Float64("daily_pnl_pct", m.dailyPercentLocked()).
			Msg("daily loss cutoff breached, new entries halted")
	}
}

// Restore replays persisted trades, oldest first, after a restart. Trades
// from earlier days only move equity and loss cooldowns.
func (m *Manager) Restore(trades []position.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, trade := range trades {
		m.state.RealizedPnLUSD += trade.PnLUSD
		today := tradingDay(trade.SellTime).Equal(m.state.Day)
		if today {
			m.state.DailyPnLUSD += trade.PnLUSD
		}
		m.settleLocked(trade, today)
	}
	m.state.DayStartEquityUSD = m.equityLocked() - m.state.DailyPnLUSD
	m.state.Halted = m.breachedLocked()
}

func (m *Manager) settleLocked(trade position.Trade, streaks bool) {
	if trade.Partial {
		return
	}
	switch {
	case trade.PositionPnLUSD > breakEvenUSD:
		if streaks {
			m.state.ConsecutiveWins++
			m.state.ConsecutiveLosses = 0
		}
	case trade.PositionPnLUSD < -breakEvenUSD:
		if streaks {
			m.state.ConsecutiveLosses++
			m.state.ConsecutiveWins = 0
		}
		if m.limits.LossCooldown > 0 {
			m.cooldowns[trade.Asset] = trade.SellTime.Add(m.limits.LossCooldown)
		}
	}
}

// Halted reports whether new entries are halted for the current day.
func (m *Manager) Halted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Halted
}

// EquityUSD is the starting portfolio plus everything realized since.
func (m *Manager) EquityUSD() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.equityLocked()
}

// Snapshot returns a copy of the risk state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.state
	out.DailyPnLPercent = m.dailyPercentLocked()
	out.OpenAssets = make([]string, 0, len(m.open))
	for asset := range m.open {
		out.OpenAssets = append(out.OpenAssets, asset)
	}
	sort.Strings(out.OpenAssets)
	return out
}

func (m *Manager) equityLocked() float64 {
	return m.portfolioUSD + m.state.RealizedPnLUSD
}

func (m *Manager) dailyPercentLocked() float64 {
	if m.state.DayStartEquityUSD <= 0 {
		return 0
	}
	return m.state.DailyPnLUSD / m.state.DayStartEquityUSD * 100
}

func (m *Manager) breachedLocked() bool {
	if m.limits.DailyLossCutoffPercent > 0 && m.dailyPercentLocked() <= -m.limits.DailyLossCutoffPercent {
		return true
	}
	return m.limits.DailyLossCutoffUSD > 0 && m.state.DailyPnLUSD <= -m.limits.DailyLossCutoffUSD
}

func tradingDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func normalize(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
