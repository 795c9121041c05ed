package quote

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

// mockAggregator quotes every leg at a fixed ratio unless told to fail
type mockAggregator struct {
	ratio  map[string]float64
	impact float64
	fail   func(req LegRequest) error
	block  bool
	calls  atomic.Int32
}

func (m *mockAggregator) Quote(ctx context.Context, req LegRequest) (types.LegQuote, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return types.LegQuote{}, ctx.Err()
	}
	if m.fail != nil {
		if err := m.fail(req); err != nil {
			return types.LegQuote{}, err
		}
	}
	r, ok := m.ratio[string(req.Input)+">"+string(req.Output)]
	if !ok {
		r = 1
	}
	return types.LegQuote{
		OutAmount:   uint64(float64(req.Amount) * r),
		Venue:       "mock",
		PriceImpact: m.impact,
	}, nil
}

var triangle = types.Route{"SOL", "USDC", "USDT", "SOL"}

func newTestChainer(t *testing.T, agg Aggregator, mutate func(*config.AggregatorConfig)) (*Chainer, *metrics.Set) {
	cfg := testAggregatorConfig("http://unused")
	cfg.Timeout = 50 * time.Millisecond
	cfg.CircuitBreaker.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	set := metrics.NewSet(nil, "test")
	logger := zaptest.NewLogger(t)
	breaker := NewCircuitBreaker(cfg.CircuitBreaker, set.Quote.BreakerTrips, logger)
	c := NewChainer(agg, NewFallback(cfg.FallbackFee, nil), breaker, cfg,
		Bounds{MinLegs: 2, MaxLegs: 3, MaxSlippageBps: 50}, set.Quote, logger)
	return c, set
}

func TestChainContinuity(t *testing.T) {
	agg := &mockAggregator{
		ratio:  map[string]float64{"SOL>USDC": 150, "USDC>USDT": 1.001, "USDT>SOL": 1.0 / 149.5},
		impact: 0.001,
	}
	c, _ := newTestChainer(t, agg, nil)

	q, err := c.Chain(context.Background(), triangle, 1_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, types.SourceAggregator, q.Source)
	assert.True(t, q.Continuous())
	require.Len(t, q.Legs, 3)
	for i := 1; i < len(q.Legs); i++ {
		assert.Equal(t, q.Legs[i-1].OutAmount, q.Legs[i].InAmount)
		assert.Equal(t, q.Legs[i-1].OutputAsset, q.Legs[i].InputAsset)
	}
	assert.Equal(t, q.Legs[2].OutAmount, q.OutAmount)
	assert.Equal(t, uint64(1_000_000_000), q.InAmount)
	assert.InDelta(t, 0.003, q.PriceImpact, 1e-12)
	assert.Equal(t, int32(3), agg.calls.Load())
}

func TestChainInvalidRoute(t *testing.T) {
	agg := &mockAggregator{}
	c, _ := newTestChainer(t, agg, nil)

	for _, r := range []types.Route{
		{"SOL", "USDC"},
		{"SOL", "USDC", "USDC", "SOL"},
		{"SOL", "A", "B", "C", "SOL"},
	} {
		_, err := c.Chain(context.Background(), r, 1)
		assert.ErrorIs(t, err, types.ErrInvalidRoute)
	}
	_, err := c.Chain(context.Background(), triangle, 0)
	assert.ErrorIs(t, err, types.ErrInvalidRoute)

	assert.Equal(t, int32(0), agg.calls.Load())
}

func TestChainFallback(t *testing.T) {
	agg := &mockAggregator{fail: func(req LegRequest) error {
		if req.Input == "USDC" {
			return errors.New("upstream 502")
		}
		return nil
	}}
	c, set := newTestChainer(t, agg, nil)

	q, err := c.Chain(context.Background(), triangle, 1_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, types.SourceFallback, q.Source)
	require.Len(t, q.Legs, 3)
	assert.Equal(t, uint64(997_000_000), q.Legs[0].OutAmount)
	assert.Equal(t, uint64(3_000_000), q.Legs[0].FeeAmount)
	assert.Equal(t, uint64(991_026_973), q.OutAmount)
	assert.True(t, q.Continuous())
	assert.Equal(t, float64(1), testutil.ToFloat64(set.Quote.Fallbacks))
}

func TestChainFallbackDisabled(t *testing.T) {
	agg := &mockAggregator{fail: func(LegRequest) error { return errors.New("down") }}
	c, _ := newTestChainer(t, agg, func(cfg *config.AggregatorConfig) { cfg.FallbackEnabled = false })

	_, err := c.Chain(context.Background(), triangle, 1_000_000_000)
	assert.ErrorIs(t, err, types.ErrAggregatorUnavailable)
}

func TestChainLegTimeout(t *testing.T) {
	agg := &mockAggregator{block: true}
	c, _ := newTestChainer(t, agg, nil)

	start := time.Now()
	q, err := c.Chain(context.Background(), triangle, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, types.SourceFallback, q.Source)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestChainCancelled(t *testing.T) {
	agg := &mockAggregator{block: true}
	c, _ := newTestChainer(t, agg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Chain(ctx, triangle, 1_000_000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainZeroOutputFallsBack(t *testing.T) {
	agg := &mockAggregator{ratio: map[string]float64{"SOL>USDC": 0}}
	c, _ := newTestChainer(t, agg, nil)

	q, err := c.Chain(context.Background(), triangle, 1_000)
	require.NoError(t, err)
	assert.Equal(t, types.SourceFallback, q.Source)
}

func TestChainBreakerSkipsAggregator(t *testing.T) {
	agg := &mockAggregator{fail: func(LegRequest) error { return errors.New("down") }}
	c, set := newTestChainer(t, agg, func(cfg *config.AggregatorConfig) {
		cfg.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, ErrorThreshold: 2, CooldownPeriod: time.Hour}
	})

	for i := 0; i < 2; i++ {
		_, err := c.Chain(context.Background(), triangle, 1_000)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), agg.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(set.Quote.BreakerTrips))

	q, err := c.Chain(context.Background(), triangle, 1_000)
	require.NoError(t, err)
	assert.Equal(t, types.SourceFallback, q.Source)
	assert.Equal(t, int32(2), agg.calls.Load())
}

func TestSetBounds(t *testing.T) {
	c, _ := newTestChainer(t, &mockAggregator{}, nil)
	c.SetBounds(Bounds{MinLegs: 2, MaxLegs: 2, MaxSlippageBps: 10})

	_, err := c.Chain(context.Background(), triangle, 1)
	assert.ErrorIs(t, err, types.ErrInvalidRoute)
	assert.Equal(t, uint16(10), c.Bounds().MaxSlippageBps)
}
