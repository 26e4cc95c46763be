package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultDexScreenerBaseURL = "https://api.dexscreener.com"

// DexScreenerBoosts counts paid boost units on the asset's token.
type DexScreenerBoosts struct {
	baseURL string
	client  *http.Client
}

// NewDexScreenerBoosts builds the source; empty baseURL uses the public API.
func NewDexScreenerBoosts(baseURL string, client *http.Client) *DexScreenerBoosts {
	if baseURL == "" {
		baseURL = defaultDexScreenerBaseURL
	}
	return &DexScreenerBoosts{baseURL: strings.TrimSuffix(baseURL, "/"), client: defaultClient(client)}
}

// Name implements Source.
func (d *DexScreenerBoosts) Name() string { return SourceDexScreenerBoosts }

type boost struct {
	ChainID      string  `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"`
	Amount       float64 `json:"amount"`
	TotalAmount  float64 `json:"totalAmount"`
}

// Count implements Source. Assets without a mint always count zero.
func (d *DexScreenerBoosts) Count(ctx context.Context, asset Asset) (int, error) {
	resp, err := get(ctx, d.client, d.baseURL+"/token-boosts/top/v1")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var boosts []boost
	if err := json.NewDecoder(resp.Body).Decode(&boosts); err != nil {
		return 0, fmt.Errorf("decode boosts: %w", err)
	}
	if asset.Mint == "" {
		return 0, nil
	}
	var total float64
	for _, b := range boosts {
		if b.TokenAddress == asset.Mint {
			total += b.TotalAmount
		}
	}
	return int(total), nil
}
