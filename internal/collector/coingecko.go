package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultCoinGeckoBaseURL = "https://api.coingecko.com"

// trendingSlots is the length of the CoinGecko trending list; rank 0 scores highest.
const trendingSlots = 15

// CoinGeckoTrending scores an asset by its position on the trending list.
type CoinGeckoTrending struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoTrending builds the source; empty baseURL uses the public API.
func NewCoinGeckoTrending(baseURL string, client *http.Client) *CoinGeckoTrending {
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	return &CoinGeckoTrending{baseURL: strings.TrimSuffix(baseURL, "/"), client: defaultClient(client)}
}

// Name implements Source.
func (c *CoinGeckoTrending) Name() string { return SourceCoinGeckoTrending }

type trendingResponse struct {
	Coins []struct {
		Item struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"item"`
	} `json:"coins"`
}

// Count implements Source.
func (c *CoinGeckoTrending) Count(ctx context.Context, asset Asset) (int, error) {
	resp, err := get(ctx, c.client, c.baseURL+"/api/v3/search/trending")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var payload trendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode trending: %w", err)
	}
	for rank, coin := range payload.Coins {
		if rank >= trendingSlots {
			break
		}
		if strings.EqualFold(coin.Item.Symbol, asset.Symbol) {
			return (trendingSlots - rank) * 20, nil
		}
	}
	return 0, nil
}
