// Package arbitrage turns chained quotes into provider-specific
// opportunities and keeps the live ones
package arbitrage

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/math"
)

// Confidence penalties
const (
	depthPenalty    = 0.1 // per leg beyond two
	impactWeight    = 5.0
	maxImpactCost   = 0.5
	fallbackPenalty = 0.3
)

// Evaluator handles profitability checks
type Evaluator struct {
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Evaluate emits one opportunity per enabled provider that can fund the
// quote's input and leaves a net profit fraction of at least threshold.
// Every opportunity from one call shares the same timestamp. A route that
// does not return to its starting asset cannot repay the loan and yields nothing.
func (e *Evaluator) Evaluate(q *types.ChainedQuote, providers []registry.ProviderInfo, threshold float64) []*types.Opportunity {
	if q == nil || q.InAmount == 0 || len(q.Legs) == 0 || !q.Route.Closed() {
		return nil
	}

	createdAt := e.now()
	confidence := Confidence(q)

	var out []*types.Opportunity
	for _, p := range providers {
		if !p.Enabled || p.Liquidity < q.InAmount {
			continue
		}

		loanFee := flashloan.RepayFee(q.InAmount, p.FeeFraction)
		net := NetProfit(q.InAmount, q.OutAmount, loanFee)
		pct := float64(net) / float64(q.InAmount)
		if pct < threshold {
			continue
		}

		out = append(out, &types.Opportunity{
			ID:               e.newID(),
			Quote:            *q,
			ProviderID:       p.ID,
			ProviderFee:      p.FeeFraction,
			LoanFee:          loanFee,
			NetProfit:        net,
			NetProfitPercent: pct,
			Confidence:       confidence,
			CreatedAt:        createdAt,
		})
	}

	if len(out) > 0 {
		e.logger.Debug("Found arbitrage opportunity",
			zap.String("route", q.Route.Key()),
			zap.Int64("net_profit", out[0].NetProfit),
			zap.Int("providers", len(out)),
			zap.String("source", string(q.Source)))
	}
	return out
}

// NetProfit returns out - in - loanFee, saturating at the int64 range
func NetProfit(in, out, loanFee uint64) int64 {
	return math.Net(out, in, loanFee)
}

// Confidence scores a quote in [0, 1]: deeper routes, larger price impact
// and fallback estimates all lower it
func Confidence(q *types.ChainedQuote) float64 {
	c := 1.0
	if legs := len(q.Legs); legs > 2 {
		c -= depthPenalty * float64(legs-2)
	}
	impact := impactWeight * q.PriceImpact
	if impact > maxImpactCost {
		impact = maxImpactCost
	}
	if impact > 0 {
		c -= impact
	}
	if q.Source == types.SourceFallback {
		c -= fallbackPenalty
	}

	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
