package scanner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/bundle"
	"github.com/michaelpento.lv/arbbot/types"
)

// SignatureFeeLamports is the base fee of the single payer signature
const SignatureFeeLamports uint64 = 5_000

// ExecuteOpportunity tips, builds, optionally simulates and submits the
// cached opportunity id, then waits for its outcome. Failures before
// submission leave the state at BUILT with a reason.
func (s *Scanner) ExecuteOpportunity(ctx context.Context, id string, urgency float64) (types.BundleStatus, error) {
	m := s.deps.Metrics.Execution
	status := types.BundleStatus{State: types.StateBuilt}

	opp, ok := s.deps.Cache.Get(id)
	if !ok {
		return s.reject(status, fmt.Errorf("%w: %s", types.ErrOpportunityNotFound, id))
	}
	if !s.claim(id) {
		return s.reject(status, fmt.Errorf("%w: %s", types.ErrExecutionInFlight, id))
	}
	defer s.release(id)

	if s.deps.Builder == nil || s.deps.Submitter == nil || s.deps.Ledger == nil || s.deps.Signer == nil {
		return s.reject(status, errors.New("execution path not configured"))
	}

	m.Attempts.Inc()
	started := s.now()

	if !s.deps.Tips.IsCostEffective(opp.NetProfit) {
		return s.reject(status, fmt.Errorf("%w: profit %d", types.ErrNotCostEffective, opp.NetProfit))
	}
	tipLamports := s.deps.Tips.CalculateTip(opp.NetProfit, urgency)

	if err := s.checkBalance(ctx, tipLamports); err != nil {
		return s.reject(status, err)
	}

	anchor, err := s.deps.Ledger.LatestAnchor(ctx)
	if err != nil {
		return s.reject(status, fmt.Errorf("failed to fetch recency anchor: %w", err))
	}

	b, err := s.deps.Builder.Build(opp, tipLamports, bundle.SignerContext{Signer: s.deps.Signer, Anchor: anchor})
	if err != nil {
		return s.reject(status, fmt.Errorf("failed to build bundle: %w", err))
	}

	if s.deps.Simulator != nil {
		if _, err := s.deps.Simulator.Simulate(ctx, b); err != nil {
			return s.reject(status, err)
		}
	}

	status, err = s.deps.Submitter.Submit(ctx, b)
	elapsed := s.now().Sub(started)

	m.Outcomes.WithLabelValues(string(status.State)).Inc()
	m.TipLamports.Observe(float64(tipLamports))
	m.PollAttempts.Observe(float64(status.Attempts))
	m.Duration.Observe(elapsed.Seconds())
	if status.State == types.StateLanded {
		m.ProfitTotal.Add(float64(opp.NetProfit))
	}
	// anything the relay accepted must not be sent again
	if status.State != types.StateSubmitFailed {
		s.deps.Cache.Remove(opp.ID)
	}
	s.recordExecution(ctx, audit.NewExecution(opp, status, tipLamports, started, elapsed))

	fields := []zap.Field{
		zap.String("opportunity", opp.ID),
		zap.String("route", opp.RouteKey()),
		zap.String("bundle", status.BundleID),
		zap.String("state", string(status.State)),
		zap.Uint64("tip", tipLamports),
		zap.Int64("net_profit", opp.NetProfit),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		s.logger.Warn("Execution did not settle", append(fields, zap.Error(err))...)
		return status, err
	}
	s.logger.Info("Execution settled", fields...)
	return status, nil
}

func (s *Scanner) reject(status types.BundleStatus, err error) (types.BundleStatus, error) {
	status.Reason = types.Reason(err)
	s.deps.Metrics.Execution.Rejected.WithLabelValues(status.Reason).Inc()
	s.logger.Debug("Execution rejected", zap.String("reason", status.Reason), zap.Error(err))
	return status, err
}

// checkBalance requires the payer to cover the tip and the signature fee.
// The loan itself is repaid inside the transaction.
func (s *Scanner) checkBalance(ctx context.Context, tipLamports uint64) error {
	payer := s.deps.Signer.PublicKey()
	balance, err := s.deps.Ledger.Balance(ctx, payer)
	if err != nil {
		return fmt.Errorf("failed to fetch payer balance: %w", err)
	}
	if need := tipLamports + SignatureFeeLamports; balance < need {
		return fmt.Errorf("%w: %s holds %d, needs %d", types.ErrInsufficientBalance, payer, balance, need)
	}
	return nil
}

func (s *Scanner) claim(id string) bool {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	if _, busy := s.executing[id]; busy {
		return false
	}
	s.executing[id] = struct{}{}
	return true
}

func (s *Scanner) release(id string) {
	s.execMu.Lock()
	delete(s.executing, id)
	s.execMu.Unlock()
}

// AutoExecute starts executing the best live opportunity above the
// confidence floor in the background. At most one automatic execution runs
// at a time; it reports whether one was started.
func (s *Scanner) AutoExecute(ctx context.Context) bool {
	if !s.autoBusy.CompareAndSwap(false, true) {
		return false
	}

	var best *types.Opportunity
	for _, opp := range s.deps.Cache.List() {
		if opp.Confidence >= s.cfg.AutoExecute.MinConfidence && s.deps.Tips.IsCostEffective(opp.NetProfit) {
			best = opp
			break
		}
	}
	if best == nil {
		s.autoBusy.Store(false)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.autoBusy.Store(false)

		status, err := s.ExecuteOpportunity(ctx, best.ID, s.cfg.AutoExecute.Urgency)
		if err != nil {
			s.logger.Info("Auto execution finished without landing",
				zap.String("opportunity", best.ID),
				zap.String("reason", status.Reason),
				zap.Error(err))
		}
	}()
	return true
}
