package simulator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/bundle"
	"github.com/michaelpento.lv/arbbot/ledger"
	"github.com/michaelpento.lv/arbbot/types"
)

// maxLogLines bounds how many program log lines are carried in an error
const maxLogLines = 12

// SimulationResult is the outcome of simulating every transaction of a
// bundle
type SimulationResult struct {
	Success       bool
	UnitsConsumed uint64
	Logs          []string
	Error         interface{}
}

// Simulator dry-runs bundles against the ledger before submission
type Simulator struct {
	ledger  ledger.RPC
	timeout time.Duration
	logger  *zap.Logger
}

// NewSimulator creates a new bundle simulator
func NewSimulator(rpc ledger.RPC, timeout time.Duration, logger *zap.Logger) *Simulator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Simulator{
		ledger:  rpc,
		timeout: timeout,
		logger:  logger,
	}
}

// Simulate runs each transaction of b in order and stops at the first
// failure, which is reported as ErrSimulationFailed carrying the ledger
// error and program logs
func (s *Simulator) Simulate(ctx context.Context, b *bundle.Bundle) (*SimulationResult, error) {
	if b == nil || len(b.Transactions) == 0 {
		return nil, fmt.Errorf("%w: nothing to simulate", types.ErrEmptyInstructionSet)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &SimulationResult{Success: true}
	for i, tx := range b.Transactions {
		res, err := s.ledger.SimulateTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to simulate transaction %d: %w", i, err)
		}

		result.UnitsConsumed += res.UnitsConsumed
		result.Logs = append(result.Logs, res.Logs...)

		if res.Failed() {
			result.Success = false
			result.Error = res.Err
			s.logger.Warn("Bundle simulation failed",
				zap.String("opportunity", b.OpportunityID),
				zap.Int("transaction", i),
				zap.Any("error", res.Err),
				zap.Strings("logs", tail(res.Logs, maxLogLines)))
			return result, fmt.Errorf("%w: transaction %d: %v; logs: %s",
				types.ErrSimulationFailed, i, res.Err, strings.Join(tail(res.Logs, maxLogLines), " | "))
		}
	}

	s.logger.Debug("Bundle simulated",
		zap.String("opportunity", b.OpportunityID),
		zap.Uint64("units", result.UnitsConsumed))
	return result, nil
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
