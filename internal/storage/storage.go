// Package storage persists mentions, signals, trades and open positions.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buzzbot-go/internal/position"
	"buzzbot-go/internal/signal"
)

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store is the persistence contract used by the trading loop and the
// reporting surfaces. Lists come back newest first.
type Store interface {
	SaveMention(ctx context.Context, sample signal.MentionSample) error
	SaveSignal(ctx context.Context, sig signal.Signal) error
	SaveTrade(ctx context.Context, trade position.Trade) error
	UpsertPosition(ctx context.Context, pos position.Position) error
	OpenPositions(ctx context.Context) ([]position.Position, error)
	RecentMentions(ctx context.Context, since time.Time) ([]signal.MentionSample, error)
	RecentSignals(ctx context.Context, since time.Time) ([]signal.Signal, error)
	TradeHistory(ctx context.Context, limit int) ([]position.Trade, error)
	Close() error
}

// Open returns the store for driver. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
