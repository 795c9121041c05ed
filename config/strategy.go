package config

import (
	"fmt"

	"github.com/michaelpento.lv/arbbot/tip"
	"github.com/michaelpento.lv/arbbot/types"
)

// Strategy holds the settings that may change while the bot runs
type Strategy struct {
	MinProfitThreshold float64    `yaml:"min_profit_threshold" json:"minProfitThreshold"` // fraction of input
	MaxSlippageBps     uint16     `yaml:"max_slippage_bps" json:"maxSlippageBps"`
	MinLegs            int        `yaml:"min_legs" json:"minLegs"`
	MaxLegs            int        `yaml:"max_legs" json:"maxLegs"`
	Tip                tip.Policy `yaml:"tip" json:"tip"`
}

func DefaultStrategy() Strategy {
	return Strategy{
		MinProfitThreshold: 0.003,
		MaxSlippageBps:     50,
		MinLegs:            3,
		MaxLegs:            3,
		Tip:                tip.DefaultPolicy(),
	}
}

// StrategyPatch is a partial update. Nil fields are left unchanged.
type StrategyPatch struct {
	MinProfitThreshold *float64  `json:"minProfitThreshold,omitempty"`
	MaxSlippageBps     *uint16   `json:"maxSlippageBps,omitempty"`
	MinLegs            *int      `json:"minLegs,omitempty"`
	MaxLegs            *int      `json:"maxLegs,omitempty"`
	Tip                *TipPatch `json:"tip,omitempty"`
}

type TipPatch struct {
	Enabled          *bool    `json:"enabled,omitempty"`
	MinUnits         *uint64  `json:"minUnits,omitempty"`
	MaxUnits         *uint64  `json:"maxUnits,omitempty"`
	ProfitMultiplier *float64 `json:"profitMultiplier,omitempty"`
}

// Validate rejects values outside their bounds. Tip unit bounds are not
// checked here; the tip calculator clamps them.
func (s Strategy) Validate() error {
	if s.MinProfitThreshold < 0 || s.MinProfitThreshold >= 1 || s.MinProfitThreshold != s.MinProfitThreshold {
		return fmt.Errorf("%w: min profit threshold %v outside [0, 1)", types.ErrConfigOutOfBounds, s.MinProfitThreshold)
	}
	if s.MaxSlippageBps > 10_000 {
		return fmt.Errorf("%w: max slippage %d bps above 10000", types.ErrConfigOutOfBounds, s.MaxSlippageBps)
	}
	if s.MinLegs < types.MinRouteLegs || s.MaxLegs > types.MaxRouteLegs || s.MinLegs > s.MaxLegs {
		return fmt.Errorf("%w: route legs [%d, %d] outside [%d, %d]",
			types.ErrConfigOutOfBounds, s.MinLegs, s.MaxLegs, types.MinRouteLegs, types.MaxRouteLegs)
	}
	if s.Tip.ProfitMultiplier < 0 || s.Tip.ProfitMultiplier > 1 || s.Tip.ProfitMultiplier != s.Tip.ProfitMultiplier {
		return fmt.Errorf("%w: tip profit multiplier %v outside [0, 1]", types.ErrConfigOutOfBounds, s.Tip.ProfitMultiplier)
	}
	return nil
}

// Apply returns a copy of s with the patch applied. The receiver is never
// modified, and a failing patch changes nothing.
func (s Strategy) Apply(p StrategyPatch) (Strategy, error) {
	next := s
	if p.MinProfitThreshold != nil {
		next.MinProfitThreshold = *p.MinProfitThreshold
	}
	if p.MaxSlippageBps != nil {
		next.MaxSlippageBps = *p.MaxSlippageBps
	}
	if p.MinLegs != nil {
		next.MinLegs = *p.MinLegs
	}
	if p.MaxLegs != nil {
		next.MaxLegs = *p.MaxLegs
	}
	if t := p.Tip; t != nil {
		if t.Enabled != nil {
			next.Tip.Enabled = *t.Enabled
		}
		if t.MinUnits != nil {
			next.Tip.MinUnits = *t.MinUnits
		}
		if t.MaxUnits != nil {
			next.Tip.MaxUnits = *t.MaxUnits
		}
		if t.ProfitMultiplier != nil {
			next.Tip.ProfitMultiplier = *t.ProfitMultiplier
		}
	}

	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}
