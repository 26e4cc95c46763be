// Package anomaly turns mention counts measured against a baseline into buzz signals.
package anomaly

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"buzzbot-go/internal/baseline"
	"buzzbot-go/internal/signal"
)

const (
	defaultThreshold = 200.0
	defaultCooldown  = 15 * time.Minute
	defaultMinMean   = 0.5
)

// Options tunes the detector. Zero values select the defaults; MinZScore of
// zero disables the z-score gate.
type Options struct {
	ThresholdPercent float64
	Cooldown         time.Duration
	MinBaselineMean  float64
	MinZScore        float64
}

// Detector emits at most one signal per asset per cooldown window.
type Detector struct {
	threshold float64
	cooldown  time.Duration
	minMean   float64
	minZ      float64
	mu        sync.Mutex
	lastEmit  map[string]time.Time
}

// NewDetector builds a detector from options.
func NewDetector(opts Options) *Detector {
	d := &Detector{
		threshold: opts.ThresholdPercent,
		cooldown:  opts.Cooldown,
		minMean:   opts.MinBaselineMean,
		minZ:      opts.MinZScore,
		lastEmit:  make(map[string]time.Time),
	}
	if d.threshold <= 0 {
		d.threshold = defaultThreshold
	}
	if d.cooldown <= 0 {
		d.cooldown = defaultCooldown
	}
	if d.minMean <= 0 {
		d.minMean = defaultMinMean
	}
	return d
}

// PercentAbove reports how far current sits above mean, in percent.
func PercentAbove(current int, mean float64) float64 {
	return (float64(current) - mean) / mean * 100
}

// Evaluate compares the fresh count with the baseline and returns a Signal when
// the spike clears the threshold outside the asset's cooldown. An insufficient
// or near-zero baseline never produces a signal.
func (d *Detector) Evaluate(asset string, current int, base baseline.Stats, now time.Time) *signal.Signal {
	if asset == "" || !base.Sufficient || base.Mean < d.minMean {
		return nil
	}
	pct := PercentAbove(current, base.Mean)
	if pct < d.threshold {
		return nil
	}
	var z float64
	if base.StdDev > 0 {
		z = (float64(current) - base.Mean) / base.StdDev
	}
	if d.minZ > 0 && z < d.minZ {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastEmit[asset]; ok && now.Sub(last) < d.cooldown {
		return nil
	}
	d.lastEmit[asset] = now

	return &signal.Signal{
		ID:                   uuid.New().String(),
		Asset:                asset,
		CurrentMentions:      current,
		BaselineMentions:     base.Mean,
		PercentAboveBaseline: pct,
		ZScore:               z,
		Ts:                   now,
	}
}

// CoolingDown reports whether asset emitted a signal within the cooldown of now.
func (d *Detector) CoolingDown(asset string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastEmit[asset]
	return ok && now.Sub(last) < d.cooldown
}
