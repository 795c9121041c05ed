package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michaelpento.lv/arbbot/types"
)

// TickResult summarises one scan
type TickResult struct {
	Routes        int
	Skipped       int
	Errors        int
	Opportunities int
	Stored        int
	Swept         int
	Elapsed       time.Duration
}

// NextDelay is how long to wait before the next tick. Overrunning ticks
// start the next one immediately and are never queued.
func NextDelay(period, elapsed time.Duration) time.Duration {
	if elapsed >= period {
		return 0
	}
	return period - elapsed
}

// Run scans every period until ctx is done, then waits for background
// executions and returns ctx's error
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("Starting scanner",
		zap.Duration("period", s.cfg.Period),
		zap.String("base", s.cfg.BaseAsset),
		zap.Strings("watch", s.cfg.WatchList),
		zap.Bool("auto_execute", s.cfg.AutoExecute.Enabled))
	defer s.wg.Wait()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		// a timer firing together with cancellation must not start a tick
		if err := ctx.Err(); err != nil {
			s.logger.Info("Scanner stopped")
			return err
		}

		res := s.Tick(ctx)
		if res.Elapsed > s.cfg.Period {
			s.deps.Metrics.Scanner.Overruns.Inc()
			s.logger.Warn("Scan tick overran its period",
				zap.Duration("elapsed", res.Elapsed),
				zap.Duration("period", s.cfg.Period))
		}
		if s.cfg.AutoExecute.Enabled && ctx.Err() == nil {
			s.AutoExecute(ctx)
		}
		timer.Reset(NextDelay(s.cfg.Period, res.Elapsed))
	}
}

// Tick runs one scan: refresh prices, quote and evaluate every route,
// upsert the results and sweep expired entries
func (s *Scanner) Tick(ctx context.Context) TickResult {
	start := s.now()
	m := s.deps.Metrics.Scanner
	m.Ticks.Inc()

	base := types.Asset(s.cfg.BaseAsset)
	watch := toAssets(s.cfg.WatchList)
	s.refreshPrices(ctx, append([]types.Asset{base}, watch...))

	strategy := s.GetConfig()
	providers := s.deps.Registry.Providers()

	var res TickResult
	var errCount, found, stored atomic.Int64

	routes := Routes(base, watch, strategy.MinLegs, strategy.MaxLegs)
	if limit := s.cfg.MaxRoutes; limit > 0 && len(routes) > limit {
		res.Skipped += len(routes) - limit
		routes = routes[:limit]
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, route := range routes {
		if !s.priced(route) {
			res.Skipped++
			continue
		}
		res.Routes++

		route := route
		g.Go(func() error {
			q, err := s.deps.Quoter.Chain(ctx, route, s.cfg.StartAmount)
			if err != nil {
				errCount.Add(1)
				m.RouteErrors.Inc()
				s.logger.Debug("Route quote failed", zap.String("route", route.Key()), zap.Error(err))
				return nil
			}
			m.RoutesEvaluated.Inc()

			for _, opp := range s.deps.Evaluator.Evaluate(q, providers, strategy.MinProfitThreshold) {
				found.Add(1)
				if s.deps.Cache.Upsert(opp) {
					stored.Add(1)
					s.recordOpportunity(ctx, opp)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Errors = int(errCount.Load())
	res.Opportunities = int(found.Load())
	res.Stored = int(stored.Load())
	res.Swept = s.deps.Cache.Sweep()
	res.Elapsed = s.now().Sub(start)

	m.Opportunities.Add(float64(res.Opportunities))
	m.CacheEvictions.Add(float64(res.Swept))
	m.CacheSize.Set(float64(s.deps.Cache.Len()))
	m.TickDuration.Observe(res.Elapsed.Seconds())

	s.logger.Debug("Scan tick complete",
		zap.Int("routes", res.Routes),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
		zap.Int("opportunities", res.Opportunities),
		zap.Int("swept", res.Swept),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

func (s *Scanner) refreshPrices(ctx context.Context, ids []types.Asset) {
	if s.deps.Prices == nil {
		return
	}
	if err := s.deps.Prices.Refresh(ctx, ids); err != nil {
		s.deps.Metrics.Scanner.PriceRefreshErrors.Inc()
		s.logger.Warn("Price refresh failed", zap.Error(err))
	}
}

// priced drops routes through assets the price feed does not know. With no
// base price at all the feed is considered down and nothing is dropped.
func (s *Scanner) priced(route types.Route) bool {
	if s.deps.Prices == nil || len(route) == 0 || !s.deps.Prices.Has(route[0]) {
		return true
	}
	return s.deps.Prices.Has(route...)
}
