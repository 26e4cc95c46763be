package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"buzzbot-go/internal/position"
	"buzzbot-go/internal/signal"
)

// Memory is a process-local Store for tests and throwaway runs.
type Memory struct {
	mu        sync.RWMutex
	mentions  []signal.MentionSample
	signals   []signal.Signal
	trades    []position.Trade
	positions map[string]position.Position
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{positions: make(map[string]position.Position)}
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// SaveMention implements Store.
func (m *Memory) SaveMention(_ context.Context, sample signal.MentionSample) error {
	m.mu.Lock()
	m.mentions = append(m.mentions, sample)
	m.mu.Unlock()
	return nil
}

// SaveSignal implements Store.
func (m *Memory) SaveSignal(_ context.Context, sig signal.Signal) error {
	m.mu.Lock()
	m.signals = append(m.signals, sig)
	m.mu.Unlock()
	return nil
}

// SaveTrade implements Store.
func (m *Memory) SaveTrade(_ context.Context, trade position.Trade) error {
	m.mu.Lock()
	m.trades = append(m.trades, trade)
	m.mu.Unlock()
	return nil
}

// UpsertPosition implements Store.
func (m *Memory) UpsertPosition(_ context.Context, pos position.Position) error {
	m.mu.Lock()
	m.positions[pos.Asset] = pos
	m.mu.Unlock()
	return nil
}

// OpenPositions implements Store.
func (m *Memory) OpenPositions(context.Context) ([]position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []position.Position
	for _, p := range m.positions {
		if p.Status == position.StatusOpen {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.After(out[j].OpenTime) })
	return out, nil
}

// RecentMentions implements Store.
func (m *Memory) RecentMentions(_ context.Context, since time.Time) ([]signal.MentionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []signal.MentionSample
	for i := len(m.mentions) - 1; i >= 0; i-- {
		if !m.mentions[i].Ts.Before(since) {
			out = append(out, m.mentions[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	return out, nil
}

// RecentSignals implements Store.
func (m *Memory) RecentSignals(_ context.Context, since time.Time) ([]signal.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []signal.Signal
	for i := len(m.signals) - 1; i >= 0; i-- {
		if !m.signals[i].Ts.Before(since) {
			out = append(out, m.signals[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	return out, nil
}

// TradeHistory implements Store.
func (m *Memory) TradeHistory(_ context.Context, limit int) ([]position.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]position.Trade, 0, len(m.trades))
	for i := len(m.trades) - 1; i >= 0; i-- {
		out = append(out, m.trades[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SellTime.After(out[j].SellTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
