// Package engine runs the trading cycle: collect mentions, detect buzz, open
// risk-gated positions and walk every open position through the exit ladder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"buzzbot-go/internal/anomaly"
	"buzzbot-go/internal/baseline"
	"buzzbot-go/internal/exit"
	"buzzbot-go/internal/ledger"
	"buzzbot-go/internal/metrics"
	"buzzbot-go/internal/position"
	"buzzbot-go/internal/risk"
	"buzzbot-go/internal/signal"
)

const (
	criticalFailures  = 5
	criticalIntervals = 5
	restoreTrades     = 10000
)

// ErrNoData is returned by a cycle in which every mention fetch failed.
var ErrNoData = errors.New("no mention data collected")

// Collector fetches one fresh mention count.
type Collector interface {
	Fetch(ctx context.Context, asset, source string) (signal.MentionSample, error)
}

// Prices quotes the current USD price of an asset.
type Prices interface {
	CurrentPrice(ctx context.Context, asset string) (float64, error)
}

// Store mirrors cycle output to durable storage.
type Store interface {
	SaveMention(ctx context.Context, sample signal.MentionSample) error
	SaveSignal(ctx context.Context, sig signal.Signal) error
	SaveTrade(ctx context.Context, trade position.Trade) error
	UpsertPosition(ctx context.Context, pos position.Position) error
	OpenPositions(ctx context.Context) ([]position.Position, error)
	RecentMentions(ctx context.Context, since time.Time) ([]signal.MentionSample, error)
	TradeHistory(ctx context.Context, limit int) ([]position.Trade, error)
}

// Notifier receives trading alerts. Implementations must not block for long.
type Notifier interface {
	Opened(ctx context.Context, p position.Position, pctAbove float64)
	Exited(ctx context.Context, t position.Trade)
	Halted(ctx context.Context, dailyPnLUSD, dailyPnLPercent float64)
}

// Resumer is implemented by venues that keep their own book of holdings and
// must be told about state reloaded from the store.
type Resumer interface {
	Resume(realizedPnLUSD float64, open []position.Position) error
}

// Deps are the collaborators a cycle drives. Store, Notifier and Venue are
// optional.
type Deps struct {
	Collector Collector
	Prices    Prices
	Store     Store
	Notifier  Notifier
	Venue     Resumer
	Baseline  *baseline.Tracker
	Detector  *anomaly.Detector
	Risk      *risk.Manager
	Positions *position.Manager
	Exits     *exit.Engine
	Ledger    *ledger.Ledger
}

// Settings fix the cycle cadence and the asset universe.
type Settings struct {
	Assets      []string
	Sources     []string
	Interval    time.Duration
	CallTimeout time.Duration
	Lookback    time.Duration
}

// Option configures Engine construction.
type Option func(*Engine)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Report summarises one cycle.
type Report struct {
	Started  time.Time        `json:"started"`
	Duration time.Duration    `json:"duration"`
	Samples  int              `json:"samples"`
	Signals  []signal.Signal  `json:"signals"`
	Opened   []string         `json:"opened"`
	Trades   []position.Trade `json:"trades"`
	Errors   int              `json:"errors"`
	Stopped  bool             `json:"stopped"`
}

// Health tracks whether cycles keep succeeding.
type Health struct {
	Started             time.Time `json:"started"`
	LastCycle           time.Time `json:"last_cycle"`
	LastSuccess         time.Time `json:"last_success"`
	Cycles              int       `json:"cycles"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	Critical            bool      `json:"critical"`
}

// Status is a read-only view for reporting surfaces.
type Status struct {
	Health    Health              `json:"health"`
	Risk      risk.State          `json:"risk"`
	Positions []position.Position `json:"positions"`
	Summary   ledger.Summary      `json:"summary"`
}

// Engine owns the cycle loop. Only one cycle runs at a time; readers use the
// snapshot accessors.
type Engine struct {
	log      zerolog.Logger
	deps     Deps
	settings Settings
	now      func() time.Time

	cycle sync.Mutex

	mu     sync.RWMutex
	health Health
}

// New validates deps and builds an engine.
func New(log zerolog.Logger, deps Deps, settings Settings, opts ...Option) (*Engine, error) {
	switch {
	case deps.Collector == nil:
		return nil, fmt.Errorf("engine: collector is required")
	case deps.Prices == nil:
		return nil, fmt.Errorf("engine: price source is required")
	case deps.Baseline == nil || deps.Detector == nil:
		return nil, fmt.Errorf("engine: baseline tracker and detector are required")
	case deps.Risk == nil || deps.Positions == nil || deps.Exits == nil || deps.Ledger == nil:
		return nil, fmt.Errorf("engine: risk, positions, exits and ledger are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if settings.Interval <= 0 {
		settings.Interval = 2 * time.Minute
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = 10 * time.Second
	}
	e := &Engine{
		log:      log,
		deps:     deps,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.health.Started = e.now().UTC()
	return e, nil
}

// Restore reloads open positions, trade history and recent mentions from the
// store so a restart resumes where the last run stopped.
func (e *Engine) Restore(ctx context.Context) error {
	store := e.deps.Store
	if store == nil {
		return nil
	}
	open, err := store.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	e.deps.Positions.Restore(open)

	history, err := store.TradeHistory(ctx, restoreTrades)
	if err != nil {
		return fmt.Errorf("restore trades: %w", err)
	}
	oldestFirst := make([]position.Trade, len(history))
	for i, t := range history {
		oldestFirst[len(history)-1-i] = t
	}
	e.deps.Ledger.Load(oldestFirst)
	e.deps.Risk.Restore(oldestFirst)
	if e.deps.Venue != nil {
		if err := e.deps.Venue.Resume(e.deps.Risk.Snapshot().RealizedPnLUSD, e.deps.Positions.Snapshot()); err != nil {
			return fmt.Errorf("restore venue: %w", err)
		}
	}

	var mentions []signal.MentionSample
	if e.settings.Lookback > 0 {
		mentions, err = store.RecentMentions(ctx, e.now().Add(-e.settings.Lookback))
		if err != nil {
			return fmt.Errorf("restore mentions: %w", err)
		}
		for i := len(mentions) - 1; i >= 0; i-- {
			e.deps.Baseline.Update(mentions[i])
		}
	}
	e.log.Info().
		Int("positions", len(open)).
		Int("trades", len(history)).
		Int("mentions", len(mentions)).
		Msg("state restored")
	return nil
}

// Run executes a cycle immediately and then once per interval until ctx is
// cancelled. A cycle that overruns its interval delays the next one.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.settings.Interval)
	defer ticker.Stop()

	e.log.Info().
		Strs("assets", e.settings.Assets).
		Strs("sources", e.settings.Sources).
		Dur("interval", e.settings.Interval).
		Msg("engine started")
	for {
		if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			e.log.Error().Err(err).Msg("cycle failed")
		}
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full pass. The stop signal is honoured between
// phases; a phase already in flight completes.
func (e *Engine) RunCycle(ctx context.Context) (Report, error) {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	start := e.now()
	report := Report{Started: start.UTC()}
	e.deps.Risk.RollDay(start)

	err := e.phases(ctx, &report)
	report.Duration = e.now().Sub(start)
	metrics.CycleSeconds.Observe(report.Duration.Seconds())
	e.updateGauges()

	if ctx.Err() != nil {
		report.Stopped = true
		return report, ctx.Err()
	}
	e.recordHealth(start, err)
	e.log.Info().
		Int("samples", report.Samples).
		Int("signals", len(report.Signals)).
		Int("opened", len(report.Opened)).
		Int("trades", len(report.Trades)).
		Int("errors", report.Errors).
		Dur("took", report.Duration).
		Msg("cycle complete")
	return report, err
}

func (e *Engine) phases(ctx context.Context, report *Report) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	samples, attempted := e.collect(ctx, report)
	if attempted > 0 && len(samples) == 0 {
		// Exits still run so open positions stay protected.
		if ctx.Err() == nil {
			e.monitor(ctx, report)
		}
		return ErrNoData
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	report.Signals = e.detect(ctx, samples, report)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.open(ctx, report.Signals, report)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	e.monitor(ctx, report)
	return nil
}

// collect fetches every asset from every source. Failures skip that pair.
func (e *Engine) collect(ctx context.Context, report *Report) (map[string][]signal.MentionSample, int) {
	out := make(map[string][]signal.MentionSample)
	attempted := 0
	for _, asset := range e.settings.Assets {
		for _, source := range e.settings.Sources {
			attempted++
			callCtx, cancel := e.callContext(ctx)
			sample, err := e.deps.Collector.Fetch(callCtx, asset, source)
			cancel()
			if err != nil {
				e.fail(report, "collect", err).Str("asset", asset).Str("source", source).Msg("mention fetch failed")
				continue
			}
			out[asset] = append(out[asset], sample)
			report.Samples++
			e.persist(report, "mention", func(c context.Context) error { return e.deps.Store.SaveMention(c, sample) })
		}
	}
	return out, attempted
}

// detect reads each baseline before folding the fresh sample in, then asks the
// detector about the summed counts of sources with a sufficient history.
func (e *Engine) detect(ctx context.Context, samples map[string][]signal.MentionSample, report *Report) []signal.Signal {
	now := e.now()
	var out []signal.Signal
	for _, asset := range e.settings.Assets {
		fresh := samples[asset]
		if len(fresh) == 0 {
			continue
		}
		parts := make([]baseline.Stats, 0, len(fresh))
		current := 0
		for _, s := range fresh {
			stats := e.deps.Baseline.Baseline(asset, s.Source, now)
			if stats.Sufficient {
				current += s.Count
			}
			parts = append(parts, stats)
		}
		for _, s := range fresh {
			e.deps.Baseline.Update(s)
		}

		base := baseline.Combine(parts...)
		sig := e.deps.Detector.Evaluate(asset, current, base, now)
		if sig == nil {
			e.log.Debug().
				Str("asset", asset).
				Int("mentions", current).
				Float64("baseline", base.Mean).
				Bool("sufficient", base.Sufficient).
				Msg("no signal")
			continue
		}
		metrics.SignalsTotal.WithLabelValues(asset).Inc()
		e.log.Info().
			Str("asset", asset).
			Int("mentions", sig.CurrentMentions).
			Float64("baseline", sig.BaselineMentions).
			Float64("pct_above", sig.PercentAboveBaseline).
			Float64("z", sig.ZScore).
			Msg("buzz signal")
		s := *sig
		e.persist(report, "signal", func(c context.Context) error { return e.deps.Store.SaveSignal(c, s) })
		out = append(out, s)
	}
	return out
}

// open tries the strongest signals first.
func (e *Engine) open(ctx context.Context, signals []signal.Signal, report *Report) {
	ordered := append([]signal.Signal(nil), signals...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PercentAboveBaseline > ordered[j].PercentAboveBaseline
	})
	for _, sig := range ordered {
		if err := e.deps.Risk.Check(sig.Asset); err != nil {
			e.log.Info().Str("asset", sig.Asset).Err(err).Msg("entry blocked")
			continue
		}
		size := e.deps.Risk.SizeFor(sig.Asset)
		if size <= 0 {
			e.log.Warn().Str("asset", sig.Asset).Msg("entry size is zero")
			continue
		}
		callCtx, cancel := e.callContext(ctx)
		pos, err := e.deps.Positions.Open(callCtx, sig.Asset, sig.ID, size)
		cancel()
		if err != nil {
			e.fail(report, "open", err).Str("asset", sig.Asset).Float64("usd", size).Msg("entry failed")
			continue
		}
		report.Opened = append(report.Opened, sig.Asset)
		e.persist(report, "position", func(c context.Context) error { return e.deps.Store.UpsertPosition(c, pos) })
		e.alert(func(c context.Context) { e.deps.Notifier.Opened(c, pos, sig.PercentAboveBaseline) })
	}
}

// monitor prices every open position and applies the exit ladder.
func (e *Engine) monitor(ctx context.Context, report *Report) {
	wasHalted := e.deps.Risk.Halted()
	for _, asset := range e.deps.Positions.Assets() {
		before, ok := e.deps.Positions.Get(asset)
		if !ok {
			continue
		}
		callCtx, cancel := e.callContext(ctx)
		price, err := e.deps.Prices.CurrentPrice(callCtx, asset)
		cancel()
		if err != nil {
			e.fail(report, "price", err).Str("asset", asset).Msg("price fetch failed")
			continue
		}

		callCtx, cancel = e.callContext(ctx)
		trade, err := e.deps.Positions.Monitor(callCtx, asset, price, e.deps.Exits)
		cancel()
		if err != nil {
			e.fail(report, "exit", err).Str("asset", asset).Float64("px", price).Msg("exit failed, retrying next cycle")
		}

		after, open := e.deps.Positions.Get(asset)
		if trade == nil {
			if open {
				e.persist(report, "position", func(c context.Context) error { return e.deps.Store.UpsertPosition(c, after) })
			}
			continue
		}

		t := *trade
		report.Trades = append(report.Trades, t)
		metrics.TradesTotal.WithLabelValues(asset, string(t.Reason)).Inc()
		e.persist(report, "trade", func(c context.Context) error { return e.deps.Store.SaveTrade(c, t) })
		if !open {
			after = before
			after.Quantity = 0
			after.Status = position.StatusClosed
			after.CloseTime = t.SellTime
			after.LastPrice = t.SellPrice
			after.RealizedPnLUSD = t.PositionPnLUSD
		}
		e.persist(report, "position", func(c context.Context) error { return e.deps.Store.UpsertPosition(c, after) })
		e.alert(func(c context.Context) { e.deps.Notifier.Exited(c, t) })
	}

	if !wasHalted && e.deps.Risk.Halted() {
		state := e.deps.Risk.Snapshot()
		e.alert(func(c context.Context) { e.deps.Notifier.Halted(c, state.DailyPnLUSD, state.DailyPnLPercent) })
	}
}

// callContext bounds one external call. It ignores cancellation of parent so
// a stop request never interrupts an order half way.
func (e *Engine) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), e.settings.CallTimeout)
}

func (e *Engine) fail(report *Report, phase string, err error) *zerolog.Event {
	report.Errors++
	metrics.ErrorsTotal.WithLabelValues(phase).Inc()
	return e.log.Warn().Err(err).Str("phase", phase)
}

func (e *Engine) persist(report *Report, what string, write func(context.Context) error) {
	if e.deps.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.settings.CallTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		e.fail(report, "storage", err).Str("record", what).Msg("persist failed")
	}
}

func (e *Engine) alert(send func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), e.settings.CallTimeout)
	defer cancel()
	send(ctx)
}

func (e *Engine) updateGauges() {
	metrics.OpenPositions.Set(float64(e.deps.Positions.Count()))
	metrics.DailyPnLUSD.Set(e.deps.Risk.Snapshot().DailyPnLUSD)
}

func (e *Engine) recordHealth(start time.Time, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.Cycles++
	e.health.LastCycle = start.UTC()
	if err != nil {
		e.health.ConsecutiveFailures++
		e.health.LastError = err.Error()
		return
	}
	e.health.ConsecutiveFailures = 0
	e.health.LastError = ""
	e.health.LastSuccess = start.UTC()
}

// Health reports cycle health. It is critical after five failed cycles in a
// row or when nothing succeeded for five intervals.
func (e *Engine) Health() Health {
	e.mu.RLock()
	h := e.health
	e.mu.RUnlock()

	since := h.LastSuccess
	if since.IsZero() {
		since = h.Started
	}
	stale := e.now().Sub(since) > criticalIntervals*e.settings.Interval
	h.Critical = h.ConsecutiveFailures >= criticalFailures || stale
	return h
}

// Status copies the risk state, open positions and performance summary.
func (e *Engine) Status() Status {
	return Status{
		Health:    e.Health(),
		Risk:      e.deps.Risk.Snapshot(),
		Positions: e.deps.Positions.Snapshot(),
		Summary:   e.deps.Ledger.Summary(),
	}
}

// Positions copies the open positions.
func (e *Engine) Positions() []position.Position {
	return e.deps.Positions.Snapshot()
}

// Trades returns up to limit trades, newest first.
func (e *Engine) Trades(limit int) []position.Trade {
	return e.deps.Ledger.Recent(limit)
}

// Summary computes performance over the trades the ledger retains.
func (e *Engine) Summary() ledger.Summary {
	return e.deps.Ledger.Summary()
}

type nopNotifier struct{}

func (nopNotifier) Opened(context.Context, position.Position, float64) {}
func (nopNotifier) Exited(context.Context, position.Trade)         {}
func (nopNotifier) Halted(context.Context, float64, float64)       {}
