package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type dexscreenerPairsResponse struct {
	Pairs []dexscreenerPair `json:"pairs"`
	Pair  *dexscreenerPair  `json:"pair"`
}

type dexscreenerPair struct {
	ChainID     string               `json:"chainId"`
	PairAddress string               `json:"pairAddress"`
	BaseToken   dexscreenerToken     `json:"baseToken"`
	QuoteToken  dexscreenerToken     `json:"quoteToken"`
	PriceUsd    string               `json:"priceUsd"`
	PriceNative string               `json:"priceNative"`
	Liquidity   dexscreenerLiquidity `json:"liquidity"`
}

type dexscreenerToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexscreenerLiquidity struct {
	USD float64 `json:"usd"`
}

func (r *dexscreenerPairsResponse) all() []dexscreenerPair {
	if len(r.Pairs) > 0 {
		return r.Pairs
	}
	if r.Pair != nil {
		return []dexscreenerPair{*r.Pair}
	}
	return nil
}

func parseDexScreenerPrice(pair *dexscreenerPair) (float64, error) {
	if pair == nil {
		return 0, fmt.Errorf("pair missing")
	}
	if pair.PriceUsd != "" {
		if px, err := strconv.ParseFloat(pair.PriceUsd, 64); err == nil && px > 0 {
			return px, nil
		}
	}
	if pair.PriceNative != "" {
		if px, err := strconv.ParseFloat(pair.PriceNative, 64); err == nil && px > 0 {
			return px, nil
		}
	}
	return 0, fmt.Errorf("pair missing price")
}

func getPairs(ctx context.Context, client *http.Client, endpoint string) ([]dexscreenerPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var payload dexscreenerPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.all(), nil
}

type pairTarget struct {
	chain   string
	address string
}

// DexScreener prices each asset from its configured pair.
type DexScreener struct {
	s       settings
	targets map[string]pairTarget
}

// NewDexScreener requires every target to carry a pair address; the chain
// falls back to the configured default.
func NewDexScreener(targets []Target, opts ...Option) (*DexScreener, error) {
	d := &DexScreener{s: newSettings(opts), targets: make(map[string]pairTarget, len(targets))}
	for _, t := range targets {
		chain := strings.ToLower(strings.TrimSpace(t.Chain))
		if chain == "" {
			chain = d.s.defaultChain
		}
		address := strings.TrimSpace(t.PairAddress)
		if chain == "" || address == "" {
			return nil, fmt.Errorf("dexscreener asset %q missing chain or pair address", t.Asset)
		}
		d.targets[t.Asset] = pairTarget{chain: chain, address: address}
	}
	return d, nil
}

// CurrentPrice implements PriceSource.
func (d *DexScreener) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	target, ok := d.targets[asset]
	if !ok {
		return 0, fmt.Errorf("dexscreener %s: %w", asset, ErrUnknownAsset)
	}
	endpoint := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.s.dexBaseURL, target.chain, target.address)
	pairs, err := getPairs(ctx, d.s.client, endpoint)
	if err != nil {
		return 0, fmt.Errorf("dexscreener %s: %w", asset, err)
	}
	if len(pairs) == 0 {
		return 0, fmt.Errorf("dexscreener %s: %w", asset, ErrNoPrice)
	}
	px, err := parseDexScreenerPrice(&pairs[0])
	if err != nil {
		return 0, fmt.Errorf("dexscreener %s: %w", asset, err)
	}
	return px, nil
}

// DexScreenerSearch resolves each asset through the search endpoint and
// prices it from the most liquid pair whose base token symbol matches.
type DexScreenerSearch struct {
	s       settings
	queries map[string]Target
}

// NewDexScreenerSearch builds a search-backed source. Assets need no pair
// address; Query defaults to the asset symbol.
func NewDexScreenerSearch(targets []Target, opts ...Option) *DexScreenerSearch {
	d := &DexScreenerSearch{s: newSettings(opts), queries: make(map[string]Target, len(targets))}
	for _, t := range targets {
		if strings.TrimSpace(t.Query) == "" {
			t.Query = t.Asset
		}
		t.Chain = strings.ToLower(strings.TrimSpace(t.Chain))
		d.queries[t.Asset] = t
	}
	return d
}

// CurrentPrice implements PriceSource.
func (d *DexScreenerSearch) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	target, ok := d.queries[asset]
	if !ok {
		target = Target{Asset: asset, Query: asset}
	}
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", d.s.dexBaseURL, url.QueryEscape(target.Query))
	pairs, err := getPairs(ctx, d.s.client, endpoint)
	if err != nil {
		return 0, fmt.Errorf("dexscreener search %s: %w", asset, err)
	}
	best := d.pick(target, pairs)
	if best == nil {
		return 0, fmt.Errorf("dexscreener search %s: %w", asset, ErrNoPrice)
	}
	px, err := parseDexScreenerPrice(best)
	if err != nil {
		return 0, fmt.Errorf("dexscreener search %s: %w", asset, err)
	}
	return px, nil
}

func (d *DexScreenerSearch) pick(target Target, pairs []dexscreenerPair) *dexscreenerPair {
	chain := target.Chain
	if chain == "" {
		chain = d.s.defaultChain
	}
	want := normalizeSymbol(target.Asset)
	var best *dexscreenerPair
	for i := range pairs {
		pair := &pairs[i]
		if normalizeSymbol(pair.BaseToken.Symbol) != want {
			continue
		}
		if chain != "" && strings.ToLower(pair.ChainID) != chain {
			continue
		}
		if d.s.minLiquidityUSD > 0 && pair.Liquidity.USD < d.s.minLiquidityUSD {
			continue
		}
		if _, err := parseDexScreenerPrice(pair); err != nil {
			continue
		}
		if best == nil || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}
	return best
}
