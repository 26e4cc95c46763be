package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzzbot-go/internal/position"
	"buzzbot-go/internal/signal"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "data", "buzzbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	mem, err := Open(DriverMemory, "")
	require.NoError(t, err)
	return map[string]Store{DriverSQLite: sqlite, DriverMemory: mem}
}

var base = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "")
	assert.Error(t, err)
}

func TestSignalsSinceNewestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"old", "mid", "new"} {
				require.NoError(t, store.SaveSignal(ctx, signal.Signal{
					ID: id, Asset: "PEPE", CurrentMentions: 35, BaselineMentions: 10,
					PercentAboveBaseline: 250, Ts: base.Add(time.Duration(i) * time.Hour),
				}))
			}

			got, err := store.RecentSignals(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "new", got[0].ID)
			assert.Equal(t, "mid", got[1].ID)
			assert.InDelta(t, 250, got[0].PercentAboveBaseline, 1e-9)
			assert.True(t, got[1].Ts.Equal(base.Add(time.Hour)))
		})
	}
}

func TestMentionsSince(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveMention(ctx, signal.MentionSample{Asset: "WIF", Source: "web", Count: 3, Ts: base}))
			require.NoError(t, store.SaveMention(ctx, signal.MentionSample{Asset: "WIF", Source: "web", Count: 9, Ts: base.Add(time.Minute)}))

			got, err := store.RecentMentions(ctx, base.Add(time.Second))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, 9, got[0].Count)
			assert.Equal(t, "web", got[0].Source)
		})
	}
}

func TestTradeHistoryLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"t1", "t2", "t3"} {
				require.NoError(t, store.SaveTrade(ctx, position.Trade{
					ID: id, PositionID: "p", Asset: "PEPE", Quantity: 50, BuyPrice: 1, SellPrice: 1.08,
					PnLUSD: 4, PnLPercent: 8, HoldDuration: 90 * time.Minute, BuyTime: base,
					SellTime: base.Add(time.Duration(i+1) * time.Hour), Reason: position.ReasonTakeProfit,
					Partial: i < 2, PositionPnLUSD: 4,
				}))
			}

			got, err := store.TradeHistory(ctx, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "t3", got[0].ID)
			assert.False(t, got[0].Partial)
			assert.True(t, got[1].Partial)
			assert.Equal(t, 90*time.Minute, got[0].HoldDuration)
			assert.Equal(t, position.ReasonTakeProfit, got[0].Reason)

			all, err := store.TradeHistory(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestUpsertPositionReplacesByAsset(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := position.Position{
				ID: "p1", Asset: "PEPE", SignalID: "s1", Quantity: 100, OriginalQuantity: 100,
				BuyPrice: 1, PeakPrice: 1, LastPrice: 1, OpenTime: base, Status: position.StatusOpen,
			}
			require.NoError(t, store.UpsertPosition(ctx, p))

			p.Quantity = 50
			p.PeakPrice = 1.08
			p.Stages = p.Stages.With(0)
			require.NoError(t, store.UpsertPosition(ctx, p))

			open, err := store.OpenPositions(ctx)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.InDelta(t, 50, open[0].Quantity, 1e-9)
			assert.True(t, open[0].Stages.Has(0))
			assert.True(t, open[0].OpenTime.Equal(base))
			assert.True(t, open[0].CloseTime.IsZero())

			p.Quantity = 0
			p.Status = position.StatusClosed
			p.CloseTime = base.Add(time.Hour)
			require.NoError(t, store.UpsertPosition(ctx, p))
			open, err = store.OpenPositions(ctx)
			require.NoError(t, err)
			assert.Empty(t, open)
		})
	}
}
