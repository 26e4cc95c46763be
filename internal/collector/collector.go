// Package collector turns external buzz sources into mention samples.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"buzzbot-go/internal/metrics"
	"buzzbot-go/internal/signal"
)

// ErrUnknownSource is returned by Fetch for a source that was never registered.
var ErrUnknownSource = errors.New("unknown mention source")

// Source names.
const (
	SourceCoinGeckoTrending = "coingecko_trending"
	SourceDexScreenerBoosts = "dexscreener_boosts"
	SourceNewsRSS           = "news_rss"
	SourceWeb               = "web"
)

// Sources lists every recognised source name.
var Sources = []string{SourceCoinGeckoTrending, SourceDexScreenerBoosts, SourceNewsRSS, SourceWeb}

const userAgent = "buzzbot-go/1.0 (collector)"

// Asset is what a source needs to know to count mentions of one asset.
type Asset struct {
	Symbol string
	Query  string
	Mint   string
}

// Source counts current mentions of an asset.
type Source interface {
	Name() string
	Count(ctx context.Context, asset Asset) (int, error)
}

// Registry dispatches fetches to named sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	assets  map[string]Asset
	now     func() time.Time
}

// NewRegistry returns a registry aware of assets. Unknown assets are looked up
// by symbol alone.
func NewRegistry(assets []Asset, sources ...Source) *Registry {
	r := &Registry{
		sources: make(map[string]Source, len(sources)),
		assets:  make(map[string]Asset, len(assets)),
		now:     time.Now,
	}
	for _, a := range assets {
		r.assets[a.Symbol] = a
	}
	for _, src := range sources {
		r.Register(src)
	}
	return r
}

// SetClock overrides time.Now, for tests.
func (r *Registry) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Register adds or replaces a source under its Name.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	r.sources[src.Name()] = src
	r.mu.Unlock()
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Fetch counts current mentions of asset on source. Failures are returned,
// never reported as a zero count.
func (r *Registry) Fetch(ctx context.Context, asset, source string) (signal.MentionSample, error) {
	r.mu.RLock()
	src, ok := r.sources[source]
	target, known := r.assets[asset]
	r.mu.RUnlock()
	if !ok {
		return signal.MentionSample{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	if !known {
		target = Asset{Symbol: asset}
	}
	if target.Query == "" {
		target.Query = target.Symbol
	}

	count, err := src.Count(ctx, target)
	if err != nil {
		return signal.MentionSample{}, fmt.Errorf("%s %s: %w", source, asset, err)
	}
	if count < 0 {
		return signal.MentionSample{}, fmt.Errorf("%s %s: negative count %d", source, asset, count)
	}
	metrics.MentionsTotal.WithLabelValues(asset, source).Add(float64(count))
	return signal.MentionSample{Asset: asset, Source: source, Count: count, Ts: r.now().UTC()}, nil
}

func get(ctx context.Context, client *http.Client, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func mentions(text, term string) bool {
	term = strings.TrimSpace(term)
	return term != "" && strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
