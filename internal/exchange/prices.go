// Package exchange hosts price sources for the traded assets.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// ProviderStub serves settable in-memory prices (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance caches live trades from Binance public websockets.
	ProviderBinance = "binance"
	// ProviderDexScreener reads a configured on-chain pair from the Dexscreener HTTP API.
	ProviderDexScreener = "dexscreener"
	// ProviderDexScreenerSearch resolves the deepest pair for the asset symbol via Dexscreener search.
	ProviderDexScreenerSearch = "dexscreener_search"
)

// Providers lists every recognised provider name.
var Providers = []string{ProviderStub, ProviderBinance, ProviderDexScreener, ProviderDexScreenerSearch}

var (
	// ErrNoPrice means the source has never seen a price for the asset.
	ErrNoPrice = errors.New("no price available")
	// ErrStalePrice means the last known price is older than the staleness window.
	ErrStalePrice = errors.New("price is stale")
	// ErrUnknownAsset means the asset is not configured on this source.
	ErrUnknownAsset = errors.New("asset not configured")
)

// PriceSource quotes the current USD price of an asset.
type PriceSource interface {
	CurrentPrice(ctx context.Context, asset string) (float64, error)
}

// Target describes where each asset trades.
type Target struct {
	Asset         string
	Query         string
	Chain         string
	PairAddress   string
	BinanceSymbol string
}

type settings struct {
	client          *http.Client
	dexBaseURL      string
	defaultChain    string
	minLiquidityUSD float64
	binanceURL      string
	staleAfter      time.Duration
	now             func() time.Time
}

// Option configures price source construction parameters.
type Option func(*settings)

const (
	defaultDexScreenerBaseURL = "https://api.dexscreener.com"
	defaultBinanceURL         = "wss://stream.binance.com:9443/stream"
	defaultStaleAfter         = 2 * time.Minute
	userAgent                 = "buzzbot-go/1.0"
)

// WithHTTPClient overrides the HTTP client used by Dexscreener sources.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.client = client
		}
	}
}

// WithDexScreenerConfig injects base URL and default chain metadata for Dexscreener.
func WithDexScreenerConfig(baseURL, defaultChain string) Option {
	return func(s *settings) {
		if baseURL != "" {
			s.dexBaseURL = strings.TrimSuffix(baseURL, "/")
		}
		if defaultChain != "" {
			s.defaultChain = strings.ToLower(defaultChain)
		}
	}
}

// WithMinLiquidity drops search results with less USD liquidity than usd.
func WithMinLiquidity(usd float64) Option {
	return func(s *settings) {
		if usd > 0 {
			s.minLiquidityUSD = usd
		}
	}
}

// WithBinanceURL overrides the combined-stream websocket endpoint.
func WithBinanceURL(url string) Option {
	return func(s *settings) {
		if url != "" {
			s.binanceURL = url
		}
	}
}

// WithStaleAfter sets how old a streamed price may be before it is refused.
func WithStaleAfter(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		client:     &http.Client{Timeout: 10 * time.Second},
		dexBaseURL: defaultDexScreenerBaseURL,
		binanceURL: defaultBinanceURL,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New builds the price source named by provider.
func New(provider string, targets []Target, log zerolog.Logger, opts ...Option) (PriceSource, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderDexScreener:
		return NewDexScreener(targets, opts...)
	case ProviderDexScreenerSearch:
		return NewDexScreenerSearch(targets, opts...), nil
	case ProviderBinance:
		return NewBinanceTicker(targets, log, opts...)
	case ProviderStub, "":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", provider)
	}
}
