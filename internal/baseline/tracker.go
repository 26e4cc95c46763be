// Package baseline keeps rolling mention statistics per asset and source.
package baseline

import (
	"math"
	"sort"
	"sync"
	"time"

	"buzzbot-go/internal/signal"
)

const (
	defaultHorizon    = 24 * time.Hour
	defaultMinSamples = 3
	defaultMaxSamples = 2048
)

// Stats summarises a baseline window. Sufficient is false when the window holds
// fewer than the minimum sample count; Mean and StdDev must not be used then.
type Stats struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
	Samples    int     `json:"samples"`
	Sufficient bool    `json:"sufficient"`
}

type key struct {
	asset  string
	source string
}

type point struct {
	count int
	ts    time.Time
}

type window struct {
	points []point
}

// Tracker owns one bounded, time-ordered window per (asset, source).
type Tracker struct {
	horizon    time.Duration
	minSamples int
	maxSamples int
	mu         sync.Mutex
	windows    map[key]*window
}

// NewTracker builds a tracker; non-positive arguments select the defaults.
func NewTracker(horizon time.Duration, minSamples, maxSamples int) *Tracker {
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	if minSamples <= 0 {
		minSamples = defaultMinSamples
	}
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	return &Tracker{
		horizon:    horizon,
		minSamples: minSamples,
		maxSamples: maxSamples,
		windows:    make(map[key]*window),
	}
}

// Update appends the sample to its window and evicts entries outside the horizon.
func (t *Tracker) Update(s signal.MentionSample) {
	if s.Asset == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{asset: s.Asset, source: s.Source}
	w := t.windows[k]
	if w == nil {
		w = &window{}
		t.windows[k] = w
	}
	w.insert(point{count: s.Count, ts: s.Ts})
	w.evict(s.Ts.Add(-t.horizon))
	if over := len(w.points) - t.maxSamples; over > 0 {
		w.points = w.points[over:]
	}
}

// Baseline evicts expired samples relative to asOf and summarises what remains.
func (t *Tracker) Baseline(asset, source string, asOf time.Time) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windows[key{asset: asset, source: source}]
	if w == nil {
		return Stats{}
	}
	w.evict(asOf.Add(-t.horizon))
	if len(w.points) == 0 {
		delete(t.windows, key{asset: asset, source: source})
		return Stats{}
	}
	stats := w.summarise()
	stats.Sufficient = stats.Samples >= t.minSamples
	if !stats.Sufficient {
		stats.Mean, stats.StdDev = 0, 0
	}
	return stats
}

// Combine sums sufficient baselines from several sources into one expectation.
// Insufficient inputs are skipped; the result is insufficient when none remain.
func Combine(parts ...Stats) Stats {
	var out Stats
	var variance float64
	for _, p := range parts {
		if !p.Sufficient {
			continue
		}
		if !out.Sufficient || p.Samples < out.Samples {
			out.Samples = p.Samples
		}
		out.Sufficient = true
		out.Mean += p.Mean
		variance += p.StdDev * p.StdDev
	}
	out.StdDev = math.Sqrt(variance)
	return out
}

func (w *window) insert(p point) {
	n := len(w.points)
	if n == 0 || !p.ts.Before(w.points[n-1].ts) {
		w.points = append(w.points, p)
		return
	}
	idx := sort.Search(n, func(i int) bool { return w.points[i].ts.After(p.ts) })
	w.points = append(w.points, point{})
	copy(w.points[idx+1:], w.points[idx:])
	w.points[idx] = p
}

func (w *window) evict(cutoff time.Time) {
	idx := 0
	for i, p := range w.points {
		if p.ts.After(cutoff) {
			idx = i
			break
		}
		idx = i + 1
	}
	if idx > 0 {
		w.points = w.points[idx:]
	}
}

func (w *window) summarise() Stats {
	n := float64(len(w.points))
	var sum float64
	for _, p := range w.points {
		sum += float64(p.count)
	}
	mean := sum / n
	var sq float64
	for _, p := range w.points {
		d := float64(p.count) - mean
		sq += d * d
	}
	return Stats{Mean: mean, StdDev: math.Sqrt(sq / n), Samples: len(w.points)}
}
