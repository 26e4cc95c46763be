package solana

import (
	"context"
	"fmt"
	"math"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"buzzbot-go/internal/execution"
)

// Venue is the name live fills carry.
const Venue = "jupiter"

// USDCMint is the canonical USDC mint on Solana mainnet.
const USDCMint = "EPjFWttTNT44Zj8X5FYiHzvGm8Z5iu2YH5pu4j3rk4A"

// Mint is a token address with its decimal precision.
type Mint struct {
	Address  string
	Decimals int
}

// Swapper is the slice of JupiterClient the executor needs.
type Swapper interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error)
	BuildAndSendSwap(ctx context.Context, quote *Quote) (solana.Signature, error)
}

// Executor buys assets with the quote token and sells them back through
// Jupiter. Fill quantity and price come from the quoted amounts.
type Executor struct {
	swapper     Swapper
	quote       Mint
	mints       map[string]Mint
	slippageBps int
	live        bool
	now         func() time.Time
}

// NewExecutor builds a live venue. Unless live is set every order fails with
// execution.ErrLiveDisabled.
func NewExecutor(swapper Swapper, quote Mint, mints map[string]Mint, slippageBps int, live bool) *Executor {
	if quote.Address == "" {
		quote = Mint{Address: USDCMint, Decimals: 6}
	}
	copied := make(map[string]Mint, len(mints))
	for asset, m := range mints {
		copied[asset] = m
	}
	return &Executor{swapper: swapper, quote: quote, mints: copied, slippageBps: slippageBps, live: live, now: time.Now}
}

// Buy spends usd of the quote token on asset.
func (e *Executor) Buy(ctx context.Context, asset string, usd float64) (execution.Fill, error) {
	mint, err := e.check(asset)
	if err != nil {
		return execution.Fill{}, err
	}
	in := toUnits(usd, e.quote.Decimals)
	if in == 0 {
		return execution.Fill{}, fmt.Errorf("jupiter buy %s: amount %g rounds to zero", asset, usd)
	}
	got, sig, err := e.swap(ctx, e.quote.Address, mint.Address, in)
	if err != nil {
		return execution.Fill{}, fmt.Errorf("jupiter buy %s: %w", asset, err)
	}
	qty := fromUnits(got, mint.Decimals)
	if qty <= 0 {
		return execution.Fill{}, fmt.Errorf("jupiter buy %s: empty output", asset)
	}
	return e.fill(asset, execution.Buy, qty, fromUnits(in, e.quote.Decimals)/qty, sig), nil
}

// Sell swaps qty units of asset back into the quote token.
func (e *Executor) Sell(ctx context.Context, asset string, qty float64) (execution.Fill, error) {
	mint, err := e.check(asset)
	if err != nil {
		return execution.Fill{}, err
	}
	in := toUnits(qty, mint.Decimals)
	if in == 0 {
		return execution.Fill{}, fmt.Errorf("jupiter sell %s: quantity %g rounds to zero", asset, qty)
	}
	got, sig, err := e.swap(ctx, mint.Address, e.quote.Address, in)
	if err != nil {
		return execution.Fill{}, fmt.Errorf("jupiter sell %s: %w", asset, err)
	}
	sold := fromUnits(in, mint.Decimals)
	return e.fill(asset, execution.Sell, sold, fromUnits(got, e.quote.Decimals)/sold, sig), nil
}

func (e *Executor) check(asset string) (Mint, error) {
	if !e.live {
		return Mint{}, execution.ErrLiveDisabled
	}
	mint, ok := e.mints[asset]
	if !ok || mint.Address == "" {
		return Mint{}, fmt.Errorf("jupiter: no mint configured for %s", asset)
	}
	return mint, nil
}

func (e *Executor) swap(ctx context.Context, inMint, outMint string, amount uint64) (uint64, solana.Signature, error) {
	q, err := e.swapper.GetQuote(ctx, inMint, outMint, amount, e.slippageBps)
	if err != nil {
		return 0, solana.Signature{}, err
	}
	out, err := q.OutUnits()
	if err != nil {
		return 0, solana.Signature{}, fmt.Errorf("quote out amount %q: %w", q.OutAmount, err)
	}
	sig, err := e.swapper.BuildAndSendSwap(ctx, q)
	if err != nil {
		return 0, sig, err
	}
	return out, sig, nil
}

func (e *Executor) fill(asset string, side execution.Side, qty, px float64, sig solana.Signature) execution.Fill {
	return execution.Fill{
		Asset:    asset,
		Side:     side,
		Quantity: qty,
		Price:    px,
		Venue:    Venue,
		TxID:     sig.String(),
		Ts:       e.now().UTC(),
	}
}

func toUnits(amount float64, decimals int) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(math.Floor(amount * math.Pow10(decimals)))
}

func fromUnits(units uint64, decimals int) float64 {
	return float64(units) / math.Pow10(decimals)
}
