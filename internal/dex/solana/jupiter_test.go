package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

func TestParseCommitment(t *testing.T) {
	cases := map[string]rpc.CommitmentType{
		"finalized": rpc.CommitmentFinalized,
		"Processed": rpc.CommitmentProcessed,
		"":          rpc.CommitmentConfirmed,
		"whatever":  rpc.CommitmentConfirmed,
	}
	for in, expected := range cases {
		if got := ParseCommitment(in); got != expected {
			t.Fatalf("ParseCommitment(%q): expected %v got %v", in, expected, got)
		}
	}
	client := NewJupiterClient("https://rpc", "", solana.NewWallet().PrivateKey, "finalized")
	if client.Commit != rpc.CommitmentFinalized || client.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected client %+v", client)
	}
}

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != "AAA" || q.Get("amount") != "10" || q.Get("slippageBps") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(Quote{InputMint: "AAA", OutputMint: "BBB", InAmount: "10", OutAmount: "20", SlippageBps: 50})
	}))
	defer server.Close()

	client := NewJupiterClient("https://rpc", server.URL+"/", nil, "processed")
	client.HTTP = server.Client()

	quote, err := client.GetQuote(context.Background(), "AAA", "BBB", 10, 50)
	if err != nil {
		t.Fatalf("GetQuote returned error: %v", err)
	}
	out, err := quote.OutUnits()
	if err != nil || out != 20 {
		t.Fatalf("expected OutAmount 20, got %d (%v)", out, err)
	}
}

func TestGetQuoteStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewJupiterClient("https://rpc", server.URL, nil, "")
	client.HTTP = server.Client()
	if _, err := client.GetQuote(context.Background(), "AAA", "BBB", 10, 50); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestBuildAndSendSwapNeedsWallet(t *testing.T) {
	client := NewJupiterClient("https://rpc", "https://jup", nil, "")
	if _, err := client.BuildAndSendSwap(context.Background(), &Quote{}); err == nil {
		t.Fatalf("expected missing wallet error")
	}
}
