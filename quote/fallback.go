package quote

import (
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/math"
)

const (
	DefaultFallbackFee = 0.003
	fallbackVenue      = "fallback"
)

// RateSource converts base units between assets
type RateSource interface {
	Rate(from, to types.Asset) (float64, bool)
}

// Fallback estimates a route locally when the aggregator cannot. Each leg
// converts at the snapshot rate when one is known (else 1:1) and loses a
// fixed fee.
type Fallback struct {
	fee   float64
	rates RateSource
}

// NewFallback creates an estimator. rates may be nil.
func NewFallback(fee float64, rates RateSource) *Fallback {
	return &Fallback{fee: fee, rates: rates}
}

// Estimate builds a fallback quote for a validated route
func (f *Fallback) Estimate(route types.Route, amount uint64) *types.ChainedQuote {
	legs := make([]types.LegQuote, 0, route.Legs())
	in := amount
	for i := 0; i < route.Legs(); i++ {
		from, to := route[i], route[i+1]
		converted := in
		if f.rates != nil {
			if r, ok := f.rates.Rate(from, to); ok {
				converted = math.FloorFloat(float64(in) * r)
			}
		}
		out, fee := math.Haircut(converted, f.fee)
		legs = append(legs, types.LegQuote{
			InputAsset:  from,
			OutputAsset: to,
			InAmount:    in,
			OutAmount:   out,
			FeeAmount:   fee,
			Venue:       fallbackVenue,
		})
		in = out
	}

	return &types.ChainedQuote{
		Route:     append(types.Route(nil), route...),
		Legs:      legs,
		InAmount:  amount,
		OutAmount: in,
		Source:    types.SourceFallback,
	}
}
