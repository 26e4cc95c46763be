// Package solana executes swaps on Solana through the Jupiter aggregator.
package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultBaseURL is the public Jupiter swap API.
const DefaultBaseURL = "https://quote-api.jup.ag"

// JupiterClient quotes routes and submits locally signed swap transactions.
type JupiterClient struct {
	BaseURL string
	RPC     *rpc.Client
	Owner   solana.PrivateKey
	Commit  rpc.CommitmentType
	HTTP    *http.Client
}

// Quote is Jupiter's route answer. Amounts are decimal strings in base units.
type Quote struct {
	InputMint      string  `json:"inputMint"`
	OutputMint     string  `json:"outputMint"`
	InAmount       string  `json:"inAmount"`
	OutAmount      string  `json:"outAmount"`
	OtherAmount    string  `json:"otherAmountThreshold"`
	SlippageBps    int     `json:"slippageBps"`
	RoutePlan      any     `json:"routePlan"`
	PriceImpactPct float64 `json:"priceImpactPct,string"`
}

// InUnits parses InAmount.
func (q *Quote) InUnits() (uint64, error) { return strconv.ParseUint(q.InAmount, 10, 64) }

// OutUnits parses OutAmount.
func (q *Quote) OutUnits() (uint64, error) { return strconv.ParseUint(q.OutAmount, 10, 64) }

// ParseCommitment maps a config string onto an RPC commitment, defaulting to confirmed.
func ParseCommitment(commit string) rpc.CommitmentType {
	switch strings.ToLower(strings.TrimSpace(commit)) {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// NewJupiterClient builds a client. owner may be nil for quote-only use.
func NewJupiterClient(rpcURL, baseURL string, owner solana.PrivateKey, commit string) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rpcURL == "" {
		rpcURL = rpc.MainNetBeta_RPC
	}
	return &JupiterClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		RPC:     rpc.New(rpcURL),
		Owner:   owner,
		Commit:  ParseCommitment(commit),
		HTTP:    &http.Client{Timeout: 8 * time.Second},
	}
}

// GetQuote asks for the best route; amount is in the input mint's smallest units.
func (j *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.BaseURL+"/v6/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote request: %w", err)
	}
	resp, err := j.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter quote status %d", resp.StatusCode)
	}
	var out Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode jupiter quote: %w", err)
	}
	return &out, nil
}

// BuildAndSendSwap asks Jupiter for a ready-to-sign transaction, signs it locally, then submits via RPC.
func (j *JupiterClient) BuildAndSendSwap(ctx context.Context, quote *Quote) (solana.Signature, error) {
	var sig solana.Signature
	if len(j.Owner) == 0 {
		return sig, fmt.Errorf("jupiter swap: no wallet key loaded")
	}
	body, err := json.Marshal(map[string]any{
		"userPublicKey":             j.Owner.PublicKey().String(),
		"wrapAndUnwrapSol":          true,
		"asLegacyTransaction":       false,
		"useTokenLedger":            false,
		"prioritizationFeeLamports": 0,
		"quoteResponse":             quote,
	})
	if err != nil {
		return sig, fmt.Errorf("encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.BaseURL+"/v6/swap", bytes.NewReader(body))
	if err != nil {
		return sig, fmt.Errorf("jupiter swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := j.HTTP.Do(req)
	if err != nil {
		return sig, fmt.Errorf("jupiter swap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sig, fmt.Errorf("jupiter swap status %d", resp.StatusCode)
	}
	var sr struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return sig, fmt.Errorf("decode swap response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return sig, fmt.Errorf("decode tx: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return sig, fmt.Errorf("unmarshal tx: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(j.Owner.PublicKey()) {
			return &j.Owner
		}
		return nil
	}); err != nil {
		return sig, fmt.Errorf("sign: %w", err)
	}

	sig, err = j.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: j.Commit,
	})
	if err != nil {
		return sig, fmt.Errorf("send tx: %w", err)
	}
	return sig, nil
}
