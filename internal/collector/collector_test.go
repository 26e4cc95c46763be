package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type fixed struct {
	name  string
	count int
	err   error
	seen  Asset
}

func (f *fixed) Name() string { return f.name }

func (f *fixed) Count(_ context.Context, asset Asset) (int, error) {
	f.seen = asset
	return f.count, f.err
}

func TestRegistryFetchStampsSample(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	src := &fixed{name: "fake", count: 7}
	reg := NewRegistry([]Asset{{Symbol: "WIF", Query: "dogwifhat", Mint: "MINT"}}, src)
	reg.SetClock(func() time.Time { return at })

	sample, err := reg.Fetch(context.Background(), "WIF", "fake")
	require.NoError(t, err)
	assert.Equal(t, "WIF", sample.Asset)
	assert.Equal(t, "fake", sample.Source)
	assert.Equal(t, 7, sample.Count)
	assert.True(t, sample.Ts.Equal(at))
	assert.Equal(t, "MINT", src.seen.Mint)
	assert.Equal(t, []string{"fake"}, reg.Names())
}

func TestRegistryUnknownAssetQueriesBySymbol(t *testing.T) {
	src := &fixed{name: "fake"}
	reg := NewRegistry(nil, src)
	_, err := reg.Fetch(context.Background(), "BONK", "fake")
	require.NoError(t, err)
	assert.Equal(t, Asset{Symbol: "BONK", Query: "BONK"}, src.seen)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry(nil, &fixed{name: "down", err: errors.New("boom")}, &fixed{name: "neg", count: -1})

	_, err := reg.Fetch(context.Background(), "WIF", "nope")
	assert.ErrorIs(t, err, ErrUnknownSource)
	_, err = reg.Fetch(context.Background(), "WIF", "down")
	assert.Error(t, err)
	_, err = reg.Fetch(context.Background(), "WIF", "neg")
	assert.Error(t, err)
}

func TestCoinGeckoTrendingScoresByRank(t *testing.T) {
	server := serve(t, `{"coins":[{"item":{"symbol":"BTC"}},{"item":{"symbol":"pepe"}},{"item":{"symbol":"WIF"}}]}`)
	src := NewCoinGeckoTrending(server.URL, server.Client())

	n, err := src.Count(context.Background(), Asset{Symbol: "PEPE"})
	require.NoError(t, err)
	assert.Equal(t, 280, n)

	n, err = src.Count(context.Background(), Asset{Symbol: "BONK"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCoinGeckoTrendingStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewCoinGeckoTrending(server.URL, server.Client()).Count(context.Background(), Asset{Symbol: "PEPE"})
	assert.Error(t, err)
}

func TestDexScreenerBoostsSumsMatchingMint(t *testing.T) {
	server := serve(t, `[
		{"chainId":"solana","tokenAddress":"MINT","amount":100,"totalAmount":500},
		{"chainId":"solana","tokenAddress":"OTHER","amount":50,"totalAmount":50},
		{"chainId":"solana","tokenAddress":"MINT","amount":10,"totalAmount":30}
	]`)
	src := NewDexScreenerBoosts(server.URL, server.Client())

	n, err := src.Count(context.Background(), Asset{Symbol: "WIF", Mint: "MINT"})
	require.NoError(t, err)
	assert.Equal(t, 530, n)

	n, err = src.Count(context.Background(), Asset{Symbol: "WIF"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDexScreenerBoostsDecodeFailure(t *testing.T) {
	server := serve(t, `not json`)
	_, err := NewDexScreenerBoosts(server.URL, server.Client()).Count(context.Background(), Asset{Symbol: "WIF", Mint: "MINT"})
	assert.Error(t, err)
}

func TestNewsRSSCountsMatchingHeadlines(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss><channel>
<item><title>PEPE rallies 40% overnight</title></item>
<item><title>Why pepe holders are cheering</title></item>
<item><title>Bitcoin steady as ETF flows slow</title></item>
<item><title>Frog coins lead: Pepe and friends</title></item>
</channel></rss>`))
	}))
	defer server.Close()

	src := NewNewsRSS(server.URL+"/rss?q=%s", server.Client())
	n, err := src.Count(context.Background(), Asset{Symbol: "PEPE", Query: "pepe coin"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "pepe coin", query)
}

func TestNewsRSSMalformedFeed(t *testing.T) {
	server := serve(t, `<rss><channel><item><title>broken`)
	_, err := NewNewsRSS(server.URL, server.Client()).Count(context.Background(), Asset{Symbol: "PEPE", Query: "PEPE"})
	assert.Error(t, err)
}

func TestWebCountsCashtagsInSelection(t *testing.T) {
	server := serve(t, `<html><body>
<div class="post">Loading up on $WIF and $wif again</div>
<div class="post">$WIFI is not a match, $BONK neither</div>
<div class="ad">$WIF $WIF $WIF</div>
</body></html>`)

	src := NewWeb([]Page{{URL: server.URL, Selector: ".post"}, {URL: server.URL}}, server.Client())
	n, err := src.Count(context.Background(), Asset{Symbol: "WIF"})
	require.NoError(t, err)
	assert.Equal(t, 2+5, n)
}

func TestWebWithoutPagesFails(t *testing.T) {
	_, err := NewWeb(nil, nil).Count(context.Background(), Asset{Symbol: "WIF"})
	assert.Error(t, err)
}
