package types

import (
	"fmt"
	"strings"
	"time"
)

// Absolute route depth bounds, in legs. Runtime bounds must stay inside them.
const (
	MinRouteLegs = 2
	MaxRouteLegs = 7
)

// Asset identifies a token on the ledger (mint address or well-known symbol)
type Asset string

// Route represents an ordered conversion path between assets
type Route []Asset

// Legs returns the number of conversion steps in the route
func (r Route) Legs() int {
	if len(r) == 0 {
		return 0
	}
	return len(r) - 1
}

// Key returns the canonical cache key of the route
func (r Route) Key() string {
	parts := make([]string, len(r))
	for i, a := range r {
		parts[i] = string(a)
	}
	return strings.Join(parts, ">")
}

// Closed reports whether the route starts and ends on the same asset
func (r Route) Closed() bool {
	return len(r) > 1 && r[0] == r[len(r)-1]
}

// Validate checks the route against the configured depth bounds
func (r Route) Validate(minLegs, maxLegs int) error {
	legs := r.Legs()
	if legs < minLegs || legs > maxLegs {
		return fmt.Errorf("%w: %d legs outside [%d, %d]", ErrInvalidRoute, legs, minLegs, maxLegs)
	}
	for i := 0; i < len(r); i++ {
		if r[i] == "" {
			return fmt.Errorf("%w: empty asset at position %d", ErrInvalidRoute, i)
		}
		if i > 0 && r[i] == r[i-1] {
			return fmt.Errorf("%w: repeated asset %s at position %d", ErrInvalidRoute, r[i], i)
		}
	}
	return nil
}

// QuoteSource tags where a chained quote came from
type QuoteSource string

const (
	SourceAggregator QuoteSource = "aggregator"
	SourceFallback   QuoteSource = "fallback"
)

// LegQuote is the quote for a single conversion step
type LegQuote struct {
	InputAsset  Asset
	OutputAsset Asset
	InAmount    uint64
	OutAmount   uint64
	FeeAmount   uint64
	Venue       string
	PriceImpact float64 // fraction, 0.01 = 1%
}

// ChainedQuote is the cost estimate of a whole route
type ChainedQuote struct {
	Route       Route
	Legs        []LegQuote
	InAmount    uint64
	OutAmount   uint64
	Elapsed     time.Duration
	Source      QuoteSource
	PriceImpact float64 // sum of per-leg impacts
}

// Continuous reports whether every leg feeds the next one
func (q *ChainedQuote) Continuous() bool {
	for i := 0; i+1 < len(q.Legs); i++ {
		if q.Legs[i].OutputAsset != q.Legs[i+1].InputAsset {
			return false
		}
	}
	return true
}

// Opportunity is an accepted, provider-specific arbitrage candidate.
// It is never mutated after creation.
type Opportunity struct {
	ID               string
	Quote            ChainedQuote
	ProviderID       string
	ProviderFee      float64
	LoanFee          uint64
	NetProfit        int64
	NetProfitPercent float64
	Confidence       float64
	CreatedAt        time.Time
}

// RouteKey returns the cache key of the opportunity's route
func (o *Opportunity) RouteKey() string {
	return o.Quote.Route.Key()
}

// Age returns how old the opportunity is at the given instant
func (o *Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// BundleState is a state of the bundle confirmation state machine
type BundleState string

const (
	StateBuilt        BundleState = "BUILT"
	StateSubmitting   BundleState = "SUBMITTING"
	StateSubmitFailed BundleState = "SUBMIT_FAILED"
	StatePending      BundleState = "PENDING"
	StateLanded       BundleState = "LANDED"
	StateFailed       BundleState = "FAILED"
	StateDropped      BundleState = "DROPPED"
	StatePollTimeout  BundleState = "POLL_TIMEOUT"
)

// Terminal reports whether no further transition is possible
func (s BundleState) Terminal() bool {
	switch s {
	case StateSubmitFailed, StateLanded, StateFailed, StateDropped, StatePollTimeout:
		return true
	}
	return false
}

// BundleStatus is the externally visible outcome of a bundle
type BundleStatus struct {
	State    BundleState
	BundleID string
	Slot     uint64 // set only when LANDED
	Attempts int
	Reason   string
}
