package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzzbot-go/internal/baseline"
)

var ready = baseline.Stats{Mean: 10, StdDev: 2, Samples: 12, Sufficient: true}

func TestEvaluateThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sig := NewDetector(Options{}).Evaluate("WIF", 35, ready, now)
	require.NotNil(t, sig)
	assert.Equal(t, "WIF", sig.Asset)
	assert.InDelta(t, 250, sig.PercentAboveBaseline, 1e-9)
	assert.Equal(t, 35, sig.CurrentMentions)
	assert.InDelta(t, 10, sig.BaselineMentions, 1e-9)
	assert.NotEmpty(t, sig.ID)

	assert.Nil(t, NewDetector(Options{}).Evaluate("WIF", 25, ready, now))
}

func TestEvaluateExactlyAtThreshold(t *testing.T) {
	sig := NewDetector(Options{ThresholdPercent: 200}).Evaluate("WIF", 30, ready, time.Now())
	require.NotNil(t, sig)
	assert.InDelta(t, 200, sig.PercentAboveBaseline, 1e-9)
}

func TestEvaluateInsufficientNeverSignals(t *testing.T) {
	d := NewDetector(Options{})
	for samples := 0; samples < 3; samples++ {
		base := baseline.Stats{Samples: samples}
		assert.Nil(t, d.Evaluate("WIF", 10_000, base, time.Now()))
	}
}

func TestEvaluateNearZeroMeanIsInsufficient(t *testing.T) {
	d := NewDetector(Options{})
	base := baseline.Stats{Mean: 0, Samples: 30, Sufficient: true}
	assert.Nil(t, d.Evaluate("WIF", 500, base, time.Now()))
	base.Mean = 0.1
	assert.Nil(t, d.Evaluate("WIF", 500, base, time.Now()))
}

func TestCooldownSuppressesRepeatSpikes(t *testing.T) {
	d := NewDetector(Options{Cooldown: 15 * time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := d.Evaluate("BONK", 40, ready, now)
	second := d.Evaluate("BONK", 60, ready, now.Add(2*time.Minute))
	require.NotNil(t, first)
	assert.Nil(t, second)
	assert.True(t, d.CoolingDown("BONK", now.Add(14*time.Minute)))

	other := d.Evaluate("PEPE", 40, ready, now.Add(2*time.Minute))
	assert.NotNil(t, other, "cooldown is per asset")

	third := d.Evaluate("BONK", 40, ready, now.Add(15*time.Minute))
	assert.NotNil(t, third)
}

func TestZScoreGate(t *testing.T) {
	d := NewDetector(Options{MinZScore: 20})
	noisy := baseline.Stats{Mean: 10, StdDev: 5, Samples: 10, Sufficient: true}
	assert.Nil(t, d.Evaluate("WIF", 40, noisy, time.Now()))

	sig := d.Evaluate("WIF", 200, noisy, time.Now())
	require.NotNil(t, sig)
	assert.InDelta(t, 38, sig.ZScore, 1e-9)
}
