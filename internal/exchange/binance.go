package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type binanceEnvelope struct {
	Stream string       `json:"stream"`
	Data   binanceTrade `json:"data"`
}

type binanceTrade struct {
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

type quote struct {
	price float64
	ts    time.Time
}

// BinanceTicker keeps the last traded price of each asset from the Binance
// combined trade stream. Run must be running for prices to stay fresh.
type BinanceTicker struct {
	s       settings
	log     zerolog.Logger
	streams map[string]string // stream symbol (upper) -> asset
	symbols []string
	mu      sync.RWMutex
	last    map[string]quote
}

// NewBinanceTicker maps every target with a Binance symbol onto the stream.
func NewBinanceTicker(targets []Target, log zerolog.Logger, opts ...Option) (*BinanceTicker, error) {
	b := &BinanceTicker{
		s:       newSettings(opts),
		log:     log,
		streams: make(map[string]string, len(targets)),
		last:    make(map[string]quote, len(targets)),
	}
	for _, t := range targets {
		sym := strings.ToUpper(strings.TrimSpace(t.BinanceSymbol))
		if sym == "" {
			continue
		}
		b.streams[sym] = t.Asset
		b.symbols = append(b.symbols, sym)
	}
	if len(b.symbols) == 0 {
		return nil, fmt.Errorf("binance ticker requires at least one binance_symbol")
	}
	return b, nil
}

// CurrentPrice implements PriceSource from the cache.
func (b *BinanceTicker) CurrentPrice(_ context.Context, asset string) (float64, error) {
	b.mu.RLock()
	q, ok := b.last[asset]
	b.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("binance %s: %w", asset, ErrNoPrice)
	}
	if age := b.s.now().Sub(q.ts); age > b.s.staleAfter {
		return 0, fmt.Errorf("binance %s: %w (age %s)", asset, ErrStalePrice, age.Truncate(time.Second))
	}
	return q.price, nil
}

// Run streams trades until ctx is canceled, reconnecting with backoff.
func (b *BinanceTicker) Run(ctx context.Context) error {
	streams := make([]string, len(b.symbols))
	for i, sym := range b.symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	url := fmt.Sprintf("%s?streams=%s", b.s.binanceURL, strings.Join(streams, "/"))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warn().Err(err).Msg("binance ticker disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (b *BinanceTicker) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	b.log.Info().Str("provider", ProviderBinance).Strs("symbols", b.symbols).Msg("connected price stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					b.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		if err := b.handle(message); err != nil {
			b.log.Warn().Err(err).Msg("skipping binance message")
		}
	}
}

func (b *BinanceTicker) handle(message []byte) error {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	asset, ok := b.streams[parseBinanceSymbol(env.Stream)]
	if !ok {
		return fmt.Errorf("unexpected stream %q", env.Stream)
	}
	px, err := strconv.ParseFloat(env.Data.Price, 64)
	if err != nil || px <= 0 {
		return fmt.Errorf("invalid price %q", env.Data.Price)
	}
	ts := b.s.now()
	if env.Data.TradeTime > 0 {
		ts = time.UnixMilli(env.Data.TradeTime)
	}
	b.mu.Lock()
	b.last[asset] = quote{price: px, ts: ts}
	b.mu.Unlock()
	return nil
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
