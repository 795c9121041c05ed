package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

var errZeroOutput = errors.New("leg quoted zero output")

// Bounds are the runtime route and slippage limits
type Bounds struct {
	MinLegs        int
	MaxLegs        int
	MaxSlippageBps uint16
}

// Chainer requests the legs of a route one after another, feeding each
// leg's output into the next
type Chainer struct {
	aggregator      Aggregator
	fallback        *Fallback
	breaker         *CircuitBreaker
	timeout         time.Duration
	onlyDirect      bool
	fallbackEnabled bool

	mu     sync.RWMutex
	bounds Bounds

	metrics *metrics.QuoteMetrics
	logger  *zap.Logger
}

func NewChainer(
	agg Aggregator,
	fallback *Fallback,
	breaker *CircuitBreaker,
	cfg config.AggregatorConfig,
	bounds Bounds,
	m *metrics.QuoteMetrics,
	logger *zap.Logger,
) *Chainer {
	return &Chainer{
		aggregator:      agg,
		fallback:        fallback,
		breaker:         breaker,
		timeout:         cfg.Timeout,
		onlyDirect:      cfg.OnlyDirect,
		fallbackEnabled: cfg.FallbackEnabled,
		bounds:          bounds,
		metrics:         m,
		logger:          logger,
	}
}

// SetBounds replaces the runtime limits
func (c *Chainer) SetBounds(b Bounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = b
}

func (c *Chainer) Bounds() Bounds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bounds
}

// Chain quotes the whole route for amount of its first asset
func (c *Chainer) Chain(ctx context.Context, route types.Route, amount uint64) (*types.ChainedQuote, error) {
	bounds := c.Bounds()
	if err := route.Validate(bounds.MinLegs, bounds.MaxLegs); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: zero input amount", types.ErrInvalidRoute)
	}

	start := time.Now()
	defer func() {
		c.metrics.ChainLatency.Observe(time.Since(start).Seconds())
	}()

	var legErr error
	if c.breaker == nil || c.breaker.Allow() {
		legs, err := c.chainLegs(ctx, route, amount, bounds.MaxSlippageBps)
		if err == nil {
			return assemble(route, legs, amount, time.Since(start)), nil
		}
		legErr = err
	} else {
		legErr = errors.New("circuit breaker open")
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("chain %s: %w", route.Key(), ctx.Err())
	}
	if !c.fallbackEnabled || c.fallback == nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAggregatorUnavailable, legErr)
	}

	c.logger.Debug("Falling back to local estimate",
		zap.String("route", route.Key()),
		zap.Error(legErr))
	c.metrics.Fallbacks.Inc()

	q := c.fallback.Estimate(route, amount)
	q.Elapsed = time.Since(start)
	return q, nil
}

func (c *Chainer) chainLegs(ctx context.Context, route types.Route, amount uint64, slippage uint16) ([]types.LegQuote, error) {
	legs := make([]types.LegQuote, 0, route.Legs())
	in := amount
	for i := 0; i < route.Legs(); i++ {
		leg, err := c.quoteLeg(ctx, LegRequest{
			Input:          route[i],
			Output:         route[i+1],
			Amount:         in,
			MaxSlippageBps: slippage,
			OnlyDirect:     c.onlyDirect,
			Timeout:        c.timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("leg %d %s>%s: %w", i, route[i], route[i+1], err)
		}
		legs = append(legs, leg)
		in = leg.OutAmount
	}
	return legs, nil
}

func (c *Chainer) quoteLeg(ctx context.Context, req LegRequest) (types.LegQuote, error) {
	legCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	leg, err := c.aggregator.Quote(legCtx, req)
	c.metrics.Latency.Observe(time.Since(start).Seconds())
	if err == nil && leg.OutAmount == 0 {
		err = errZeroOutput
	}
	if err != nil {
		c.metrics.Requests.WithLabelValues("error").Inc()
		if c.breaker != nil && ctx.Err() == nil {
			c.breaker.RecordError(err)
		}
		return types.LegQuote{}, err
	}

	c.metrics.Requests.WithLabelValues("ok").Inc()
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	// the chain owns the leg's identity, whatever the aggregator echoed
	leg.InputAsset, leg.OutputAsset, leg.InAmount = req.Input, req.Output, req.Amount
	return leg, nil
}

func assemble(route types.Route, legs []types.LegQuote, amount uint64, elapsed time.Duration) *types.ChainedQuote {
	var impact float64
	for _, l := range legs {
		impact += l.PriceImpact
	}
	return &types.ChainedQuote{
		Route:       append(types.Route(nil), route...),
		Legs:        legs,
		InAmount:    amount,
		OutAmount:   legs[len(legs)-1].OutAmount,
		Elapsed:     elapsed,
		Source:      types.SourceAggregator,
		PriceImpact: impact,
	}
}
