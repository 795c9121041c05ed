// Package tip sizes relay tips from expected profit under a hard ceiling
package tip

import (
	"sync"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/utils/math"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

// GlobalHardCap is the largest tip ever produced, in lamports. No policy can
// raise it.
const GlobalHardCap uint64 = 10_000_000

// MinEnabledUnits is the smallest tip an enabled policy may produce. A zero
// tip would submit a bundle the relay has no reason to include.
const MinEnabledUnits uint64 = 1

// Policy controls tip sizing
type Policy struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	MinUnits         uint64  `yaml:"min_units" json:"minUnits"`
	MaxUnits         uint64  `yaml:"max_units" json:"maxUnits"`
	ProfitMultiplier float64 `yaml:"profit_multiplier" json:"profitMultiplier"`
}

func DefaultPolicy() Policy {
	return Policy{
		Enabled:          true,
		MinUnits:         10_000,
		MaxUnits:         GlobalHardCap,
		ProfitMultiplier: 0.05,
	}
}

// Calculator computes tips. The policy may be swapped at runtime.
type Calculator struct {
	mu      sync.RWMutex
	policy  Policy
	metrics *metrics.TipMetrics
	logger  *zap.Logger
}

func NewCalculator(policy Policy, m *metrics.TipMetrics, logger *zap.Logger) *Calculator {
	c := &Calculator{metrics: m, logger: logger}
	c.SetPolicy(policy)
	return c
}

// Policy returns the effective policy
func (c *Calculator) Policy() Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// SetPolicy installs a policy, clamping its bounds to the hard cap and, when
// enabled, to a floor of MinEnabledUnits. It returns what was actually stored.
func (c *Calculator) SetPolicy(p Policy) Policy {
	clamped := false
	if p.MaxUnits > GlobalHardCap {
		c.logger.Warn("Tip max units above hard cap, clamping",
			zap.Uint64("requested", p.MaxUnits),
			zap.Uint64("cap", GlobalHardCap))
		p.MaxUnits = GlobalHardCap
		clamped = true
	}
	if p.Enabled && p.MaxUnits < MinEnabledUnits {
		c.logger.Warn("Tip max units below the enabled floor, raising",
			zap.Uint64("requested", p.MaxUnits),
			zap.Uint64("floor", MinEnabledUnits))
		p.MaxUnits = MinEnabledUnits
		clamped = true
	}
	if p.Enabled && p.MinUnits < MinEnabledUnits {
		c.logger.Warn("Tip min units below the enabled floor, raising",
			zap.Uint64("requested", p.MinUnits),
			zap.Uint64("floor", MinEnabledUnits))
		p.MinUnits = MinEnabledUnits
		clamped = true
	}
	if p.MinUnits > p.MaxUnits {
		c.logger.Warn("Tip min units above max units, clamping",
			zap.Uint64("requested", p.MinUnits),
			zap.Uint64("max", p.MaxUnits))
		p.MinUnits = p.MaxUnits
		clamped = true
	}
	if p.ProfitMultiplier < 0 {
		p.ProfitMultiplier = 0
	}
	if clamped {
		c.metrics.Clamps.Inc()
	}

	c.mu.Lock()
	c.policy = p
	c.mu.Unlock()
	return p
}

// CalculateTip returns the tip for an expected profit and an urgency in
// [0, 1]. Out-of-range urgency is clamped.
func (c *Calculator) CalculateTip(expectedProfit int64, urgency float64) uint64 {
	p := c.Policy()
	if !p.Enabled {
		return 0
	}

	ceiling := p.MaxUnits
	if ceiling > GlobalHardCap {
		ceiling = GlobalHardCap
	}
	if expectedProfit <= 0 {
		return math.Clamp(p.MinUnits, 0, ceiling)
	}

	switch {
	case urgency < 0 || urgency != urgency:
		urgency = 0
	case urgency > 1:
		urgency = 1
	}

	raw := float64(expectedProfit) * p.ProfitMultiplier * (0.5 + urgency*1.5)
	tip := math.Clamp(math.FloorFloat(raw), p.MinUnits, ceiling)
	c.metrics.Computed.Observe(float64(tip))
	return tip
}

// IsCostEffective reports whether a medium-urgency tip stays under 20% of
// the expected profit
func (c *Calculator) IsCostEffective(expectedProfit int64) bool {
	if expectedProfit <= 0 {
		return false
	}
	tip := c.CalculateTip(expectedProfit, 0.5)
	// tip < profit*0.2 in integers; tip never exceeds the hard cap so 5*tip cannot overflow
	return 5*tip < uint64(expectedProfit)
}
