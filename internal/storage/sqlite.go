package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"buzzbot-go/internal/position"
	"buzzbot-go/internal/signal"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "buzzbot.db"

const schema = `
CREATE TABLE IF NOT EXISTS mentions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset TEXT NOT NULL,
    source TEXT NOT NULL,
    count INTEGER NOT NULL,
    ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mentions_ts ON mentions(ts);

CREATE TABLE IF NOT EXISTS signals (
    id TEXT PRIMARY KEY,
    asset TEXT NOT NULL,
    current_mentions INTEGER NOT NULL,
    baseline_mentions REAL NOT NULL,
    percent_above REAL NOT NULL,
    z_score REAL NOT NULL,
    ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts);

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL,
    asset TEXT NOT NULL,
    quantity REAL NOT NULL,
    buy_price REAL NOT NULL,
    sell_price REAL NOT NULL,
    pnl_usd REAL NOT NULL,
    pnl_percent REAL NOT NULL,
    hold_ns INTEGER NOT NULL,
    buy_time INTEGER NOT NULL,
    sell_time INTEGER NOT NULL,
    reason TEXT NOT NULL,
    partial INTEGER NOT NULL,
    position_pnl_usd REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_sell_time ON trades(sell_time);

CREATE TABLE IF NOT EXISTS positions (
    asset TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    signal_id TEXT NOT NULL,
    quantity REAL NOT NULL,
    original_quantity REAL NOT NULL,
    buy_price REAL NOT NULL,
    peak_price REAL NOT NULL,
    last_price REAL NOT NULL,
    open_time INTEGER NOT NULL,
    close_time INTEGER NOT NULL,
    status TEXT NOT NULL,
    stages INTEGER NOT NULL,
    realized_pnl_usd REAL NOT NULL
);
`

// SQLite is a Store backed by a go-sqlite3 database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Writes come from one loop; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// SaveMention implements Store.
func (s *SQLite) SaveMention(ctx context.Context, m signal.MentionSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mentions (asset, source, count, ts) VALUES (?, ?, ?, ?)`,
		m.Asset, m.Source, m.Count, unix(m.Ts))
	if err != nil {
		return fmt.Errorf("save mention: %w", err)
	}
	return nil
}

// SaveSignal implements Store.
func (s *SQLite) SaveSignal(ctx context.Context, sig signal.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, asset, current_mentions, baseline_mentions, percent_above, z_score, ts)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Asset, sig.CurrentMentions, sig.BaselineMentions, sig.PercentAboveBaseline, sig.ZScore, unix(sig.Ts))
	if err != nil {
		return fmt.Errorf("save signal: %w", err)
	}
	return nil
}

// SaveTrade implements Store.
func (s *SQLite) SaveTrade(ctx context.Context, t position.Trade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (id, position_id, asset, quantity, buy_price, sell_price, pnl_usd, pnl_percent,
             hold_ns, buy_time, sell_time, reason, partial, position_pnl_usd)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PositionID, t.Asset, t.Quantity, t.BuyPrice, t.SellPrice, t.PnLUSD, t.PnLPercent,
		int64(t.HoldDuration), unix(t.BuyTime), unix(t.SellTime), string(t.Reason), t.Partial, t.PositionPnLUSD)
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// UpsertPosition implements Store. The row for an asset always holds its
// most recent position.
func (s *SQLite) UpsertPosition(ctx context.Context, p position.Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (asset, id, signal_id, quantity, original_quantity, buy_price, peak_price,
             last_price, open_time, close_time, status, stages, realized_pnl_usd)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(asset) DO UPDATE SET
             id = excluded.id,
             signal_id = excluded.signal_id,
             quantity = excluded.quantity,
             original_quantity = excluded.original_quantity,
             buy_price = excluded.buy_price,
             peak_price = excluded.peak_price,
             last_price = excluded.last_price,
             open_time = excluded.open_time,
             close_time = excluded.close_time,
             status = excluded.status,
             stages = excluded.stages,
             realized_pnl_usd = excluded.realized_pnl_usd`,
		p.Asset, p.ID, p.SignalID, p.Quantity, p.OriginalQuantity, p.BuyPrice, p.PeakPrice,
		p.LastPrice, unix(p.OpenTime), unix(p.CloseTime), string(p.Status), int(p.Stages), p.RealizedPnLUSD)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// OpenPositions implements Store.
func (s *SQLite) OpenPositions(ctx context.Context) ([]position.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset, id, signal_id, quantity, original_quantity, buy_price, peak_price, last_price,
             open_time, close_time, status, stages, realized_pnl_usd
         FROM positions WHERE status = ? ORDER BY open_time DESC`, string(position.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []position.Position
	for rows.Next() {
		var (
			p               position.Position
			openNs, closeNs int64
			status          string
			stages          int
		)
		if err := rows.Scan(&p.Asset, &p.ID, &p.SignalID, &p.Quantity, &p.OriginalQuantity, &p.BuyPrice,
			&p.PeakPrice, &p.LastPrice, &openNs, &closeNs, &status, &stages, &p.RealizedPnLUSD); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.OpenTime = fromUnix(openNs)
		p.CloseTime = fromUnix(closeNs)
		p.Status = position.Status(status)
		p.Stages = position.StageSet(stages)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentMentions implements Store.
func (s *SQLite) RecentMentions(ctx context.Context, since time.Time) ([]signal.MentionSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset, source, count, ts FROM mentions WHERE ts >= ? ORDER BY ts DESC, id DESC`, unix(since))
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()

	var out []signal.MentionSample
	for rows.Next() {
		var (
			m  signal.MentionSample
			ts int64
		)
		if err := rows.Scan(&m.Asset, &m.Source, &m.Count, &ts); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.Ts = fromUnix(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentSignals implements Store.
func (s *SQLite) RecentSignals(ctx context.Context, since time.Time) ([]signal.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset, current_mentions, baseline_mentions, percent_above, z_score, ts
         FROM signals WHERE ts >= ? ORDER BY ts DESC`, unix(since))
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []signal.Signal
	for rows.Next() {
		var (
			sig signal.Signal
			ts  int64
		)
		if err := rows.Scan(&sig.ID, &sig.Asset, &sig.CurrentMentions, &sig.BaselineMentions,
			&sig.PercentAboveBaseline, &sig.ZScore, &ts); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Ts = fromUnix(ts)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// TradeHistory implements Store. A non-positive limit returns every trade.
func (s *SQLite) TradeHistory(ctx context.Context, limit int) ([]position.Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, position_id, asset, quantity, buy_price, sell_price, pnl_usd, pnl_percent,
             hold_ns, buy_time, sell_time, reason, partial, position_pnl_usd
         FROM trades ORDER BY sell_time DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []position.Trade
	for rows.Next() {
		var (
			t                     position.Trade
			holdNs, buyNs, sellNs int64
			reason                string
		)
		if err := rows.Scan(&t.ID, &t.PositionID, &t.Asset, &t.Quantity, &t.BuyPrice, &t.SellPrice, &t.PnLUSD,
			&t.PnLPercent, &holdNs, &buyNs, &sellNs, &reason, &t.Partial, &t.PositionPnLUSD); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.HoldDuration = time.Duration(holdNs)
		t.BuyTime = fromUnix(buyNs)
		t.SellTime = fromUnix(sellNs)
		t.Reason = position.ExitReason(reason)
		out = append(out, t)
	}
	return out, rows.Err()
}
