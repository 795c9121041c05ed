package scanner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/quote"
	"github.com/michaelpento.lv/arbbot/types"
)

// GetConfig returns the current runtime strategy
func (s *Scanner) GetConfig() config.Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy
}

// UpdateConfig validates and applies patch atomically. On error the
// previous strategy stays in force and is returned. Tip bounds above the
// hard cap are clamped, not rejected.
func (s *Scanner) UpdateConfig(patch config.StrategyPatch) (config.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.strategy.Apply(patch)
	if err == nil {
		err = checkReach(s.cfg, next)
	}
	if err != nil {
		s.logger.Warn("Rejected strategy update", zap.Error(err))
		return s.strategy, err
	}
	s.strategy = s.applyStrategy(next)

	s.logger.Info("Strategy updated",
		zap.Float64("min_profit_threshold", s.strategy.MinProfitThreshold),
		zap.Uint16("max_slippage_bps", s.strategy.MaxSlippageBps),
		zap.Int("min_legs", s.strategy.MinLegs),
		zap.Int("max_legs", s.strategy.MaxLegs),
		zap.Uint64("tip_max_units", s.strategy.Tip.MaxUnits))
	return s.strategy, nil
}

// applyStrategy pushes st into the collaborators and returns it with the
// tip policy as the calculator accepted it
func (s *Scanner) applyStrategy(st config.Strategy) config.Strategy {
	st.Tip = s.deps.Tips.SetPolicy(st.Tip)
	s.deps.Quoter.SetBounds(quote.Bounds{
		MinLegs:        st.MinLegs,
		MaxLegs:        st.MaxLegs,
		MaxSlippageBps: st.MaxSlippageBps,
	})
	if s.deps.Builder != nil {
		s.deps.Builder.SetMaxSlippage(st.MaxSlippageBps)
	}
	return st
}

// checkReach rejects depth bounds that no route over the watch list can
// meet: a route of n legs visits n-1 distinct watched assets
func checkReach(cfg config.ScannerConfig, st config.Strategy) error {
	have := len(watchAssets(types.Asset(cfg.BaseAsset), toAssets(cfg.WatchList)))
	if st.MinLegs-1 > have {
		return fmt.Errorf("%w: min legs %d needs %d distinct watched assets, have %d",
			types.ErrConfigOutOfBounds, st.MinLegs, st.MinLegs-1, have)
	}
	return nil
}
