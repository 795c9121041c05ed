// Package scanner drives the periodic route scan and executes opportunities
// on demand
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/bundle"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/ledger"
	"github.com/michaelpento.lv/arbbot/quote"
	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/simulator"
	"github.com/michaelpento.lv/arbbot/strategies/arbitrage"
	"github.com/michaelpento.lv/arbbot/tip"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

const auditTimeout = 2 * time.Second

// Quoter prices routes
type Quoter interface {
	Chain(ctx context.Context, route types.Route, amount uint64) (*types.ChainedQuote, error)
	SetBounds(b quote.Bounds)
}

// Prices keeps the snapshot prices used to pre-filter pairs
type Prices interface {
	Refresh(ctx context.Context, ids []types.Asset) error
	Has(assets ...types.Asset) bool
}

// Ledger provides the recency anchor of new transactions and the payer's balance
type Ledger interface {
	LatestAnchor(ctx context.Context) (ledger.Anchor, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Simulator dry-runs a bundle before submission
type Simulator interface {
	Simulate(ctx context.Context, b *bundle.Bundle) (*simulator.SimulationResult, error)
}

// Submitter sends a bundle and follows it to an outcome
type Submitter interface {
	Submit(ctx context.Context, b *bundle.Bundle) (types.BundleStatus, error)
}

// Deps are the collaborators of a Scanner. Prices, Simulator and Audit
// are optional.
type Deps struct {
	Registry  *registry.Registry
	Quoter    Quoter
	Prices    Prices
	Evaluator *arbitrage.Evaluator
	Cache     *arbitrage.Cache
	Tips      *tip.Calculator
	Builder   *bundle.Builder
	Ledger    Ledger
	Signer    bundle.Signer
	Simulator Simulator
	Submitter Submitter
	Audit     audit.Sink
	Metrics   *metrics.Set
	Logger    *zap.Logger
}

// Scanner owns the scan loop, the runtime strategy and the execution path
type Scanner struct {
	cfg  config.ScannerConfig
	deps Deps
	now  func() time.Time

	mu       sync.RWMutex
	strategy config.Strategy

	execMu    sync.Mutex
	executing map[string]struct{}

	autoBusy atomic.Bool
	wg       sync.WaitGroup

	logger *zap.Logger
}

// New wires a scanner and pushes the initial strategy into the quoter,
// tip calculator and builder
func New(cfg config.ScannerConfig, strategy config.Strategy, deps Deps) (*Scanner, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Quoter == nil:
		return nil, errors.New("quoter is required")
	case deps.Evaluator == nil || deps.Cache == nil:
		return nil, errors.New("evaluator and cache are required")
	case deps.Tips == nil:
		return nil, errors.New("tip calculator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if err := checkReach(cfg, strategy); err != nil {
		return nil, err
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Scanner{
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
		executing: make(map[string]struct{}),
		logger:    deps.Logger.Named("scanner"),
	}
	s.strategy = s.applyStrategy(strategy)
	return s, nil
}

// ListOpportunities returns the live opportunities, most profitable first
func (s *Scanner) ListOpportunities() []*types.Opportunity {
	return s.deps.Cache.List()
}

// Wait blocks until background executions have finished
func (s *Scanner) Wait() {
	s.wg.Wait()
}

func (s *Scanner) recordOpportunity(ctx context.Context, opp *types.Opportunity) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()
	if err := s.deps.Audit.RecordOpportunity(ctx, opp); err != nil {
		s.logger.Warn("Failed to audit opportunity", zap.String("id", opp.ID), zap.Error(err))
	}
}

func (s *Scanner) recordExecution(ctx context.Context, exec audit.Execution) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.deps.Audit.RecordExecution(ctx, exec); err != nil {
		s.logger.Warn("Failed to audit execution", zap.String("opportunity", exec.OpportunityID), zap.Error(err))
	}
}
