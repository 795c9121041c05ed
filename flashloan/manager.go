package flashloan

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
)

// Manager coordinates flash-loan instruction encoding across providers.
// Choosing the provider is the evaluator's job: the manager encodes the loan
// for whichever provider the opportunity carries.
type Manager struct {
	registry *registry.Registry
	encoder  Encoder
	metrics  *metrics.LoanMetrics
	logger   *zap.Logger
}

// NewManager creates a manager over the registry using the generic
// ProgramEncoder
func NewManager(reg *registry.Registry, m *metrics.LoanMetrics, logger *zap.Logger) *Manager {
	return &Manager{
		registry: reg,
		encoder:  NewProgramEncoder(),
		metrics:  m,
		logger:   logger,
	}
}

// Instructions encodes the borrow and repay pair for the given provider
func (m *Manager) Instructions(providerID string, payer solana.PublicKey, amount uint64, borrowIndex uint8) (borrow, repay solana.Instruction, err error) {
	provider, ok := m.registry.Provider(providerID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown provider %s", ErrNoProvider, providerID)
	}
	if !provider.Enabled {
		return nil, nil, fmt.Errorf("%w: provider %s disabled", ErrNoProvider, providerID)
	}

	req := LoanRequest{
		Provider:    provider,
		Payer:       payer,
		Amount:      amount,
		BorrowIndex: borrowIndex,
	}
	if borrow, err = m.encoder.Borrow(req); err != nil {
		return nil, nil, fmt.Errorf("failed to encode borrow: %w", err)
	}
	if repay, err = m.encoder.Repay(req); err != nil {
		return nil, nil, fmt.Errorf("failed to encode repay: %w", err)
	}

	m.metrics.Encoded.Inc()
	m.metrics.ProviderSelections.WithLabelValues(providerID).Inc()
	m.logger.Debug("Encoded flash loan",
		zap.String("provider", providerID),
		zap.Uint64("amount", amount),
		zap.Uint64("fee", req.Fee()))
	return borrow, repay, nil
}
