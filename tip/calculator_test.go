package tip

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

func newTestCalculator(t *testing.T, p Policy) *Calculator {
	return NewCalculator(p, metrics.NewSet(nil, "test").Tips, zaptest.NewLogger(t))
}

func TestCalculateTip(t *testing.T) {
	c := newTestCalculator(t, DefaultPolicy())

	tests := []struct {
		name    string
		profit  int64
		urgency float64
		want    uint64
	}{
		{"exactly at the cap", 100_000_000, 1.0, 10_000_000},
		{"low urgency", 100_000_000, 0, 2_500_000},
		{"medium urgency", 10_000_000, 0.5, 625_000},
		{"below min", 1_000, 0.5, 10_000},
		{"zero profit", 0, 1, 10_000},
		{"negative profit", -50, 1, 10_000},
		{"urgency clamped high", 100_000_000, 7, 10_000_000},
		{"urgency clamped low", 100_000_000, -1, 2_500_000},
		{"huge profit", 1 << 62, 1, GlobalHardCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CalculateTip(tt.profit, tt.urgency))
		})
	}
}

func TestTipCeiling(t *testing.T) {
	c := newTestCalculator(t, Policy{
		Enabled:          true,
		MinUnits:         50_000_000,
		MaxUnits:         1_000_000_000,
		ProfitMultiplier: 10,
	})

	p := c.Policy()
	assert.Equal(t, GlobalHardCap, p.MaxUnits)
	assert.Equal(t, GlobalHardCap, p.MinUnits)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Clamps))

	for _, profit := range []int64{0, 1, 1_000, 1_000_000, 1 << 40} {
		for _, u := range []float64{0, 0.25, 0.5, 1} {
			assert.LessOrEqual(t, c.CalculateTip(profit, u), GlobalHardCap)
		}
	}
}

func TestDisabledPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Enabled = false
	c := newTestCalculator(t, p)

	assert.Equal(t, uint64(0), c.CalculateTip(100_000_000, 1))
	assert.Equal(t, uint64(0), c.CalculateTip(0, 1))
	assert.True(t, c.IsCostEffective(1))
}

func TestIsCostEffective(t *testing.T) {
	c := newTestCalculator(t, DefaultPolicy())

	// 5% multiplier at urgency 0.5 is 6.25% of profit
	assert.True(t, c.IsCostEffective(10_000_000))
	// min tip of 10_000 is 20% of 50_000
	assert.False(t, c.IsCostEffective(50_000))
	assert.True(t, c.IsCostEffective(50_001))
	assert.False(t, c.IsCostEffective(0))
	assert.False(t, c.IsCostEffective(-1))
}

func TestSetPolicy(t *testing.T) {
	c := newTestCalculator(t, DefaultPolicy())

	got := c.SetPolicy(Policy{Enabled: true, MinUnits: 1, MaxUnits: 500, ProfitMultiplier: -3})
	assert.Equal(t, uint64(500), got.MaxUnits)
	assert.Equal(t, float64(0), got.ProfitMultiplier)
	assert.Equal(t, got, c.Policy())
	assert.Equal(t, uint64(1), c.CalculateTip(1_000_000, 1))
}

func TestEnabledPolicyNeverTipsZero(t *testing.T) {
	c := newTestCalculator(t, Policy{Enabled: true, MinUnits: 0, MaxUnits: 0, ProfitMultiplier: 0})

	p := c.Policy()
	assert.Equal(t, MinEnabledUnits, p.MinUnits)
	assert.Equal(t, MinEnabledUnits, p.MaxUnits)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.Clamps))

	for _, profit := range []int64{-1, 0, 10, 1_000_000} {
		for _, u := range []float64{0, 0.5, 1} {
			assert.GreaterOrEqual(t, c.CalculateTip(profit, u), MinEnabledUnits)
		}
	}

	got := c.SetPolicy(Policy{Enabled: true, MinUnits: 0, MaxUnits: 5_000, ProfitMultiplier: 0.05})
	assert.Equal(t, MinEnabledUnits, got.MinUnits)
	assert.Equal(t, uint64(5_000), got.MaxUnits)
	assert.Equal(t, MinEnabledUnits, c.CalculateTip(10, 0))

	// a disabled policy keeps its zero bounds
	off := c.SetPolicy(Policy{Enabled: false})
	assert.Equal(t, uint64(0), off.MinUnits)
}
