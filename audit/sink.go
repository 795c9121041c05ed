// Package audit records opportunities and execution outcomes outside the
// process
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/michaelpento.lv/arbbot/types"
)

// Execution is the audit record of one ExecuteOpportunity call
type Execution struct {
	OpportunityID string            `json:"opportunity_id" db:"opportunity_id"`
	BundleID      string            `json:"bundle_id" db:"bundle_id"`
	ProviderID    string            `json:"provider_id" db:"provider_id"`
	Route         string            `json:"route" db:"route"`
	State         types.BundleState `json:"state" db:"state"`
	Reason        string            `json:"reason" db:"reason"`
	Slot          int64             `json:"slot" db:"slot"`
	Attempts      int               `json:"attempts" db:"attempts"`
	TipLamports   int64             `json:"tip_lamports" db:"tip_lamports"`
	NetProfit     int64             `json:"net_profit" db:"net_profit"`
	StartedAt     time.Time         `json:"started_at" db:"started_at"`
	DurationMs    int64             `json:"duration_ms" db:"duration_ms"`
}

// NewExecution builds the record for opp from the submission outcome
func NewExecution(opp *types.Opportunity, status types.BundleStatus, tip uint64, started time.Time, elapsed time.Duration) Execution {
	return Execution{
		OpportunityID: opp.ID,
		BundleID:      status.BundleID,
		ProviderID:    opp.ProviderID,
		Route:         opp.RouteKey(),
		State:         status.State,
		Reason:        status.Reason,
		Slot:          clampInt64(status.Slot),
		Attempts:      status.Attempts,
		TipLamports:   clampInt64(tip),
		NetProfit:     opp.NetProfit,
		StartedAt:     started.UTC(),
		DurationMs:    elapsed.Milliseconds(),
	}
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

// Sink receives audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordOpportunity(ctx context.Context, opp *types.Opportunity) error
	RecordExecution(ctx context.Context, exec Execution) error
	Close() error
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) RecordOpportunity(context.Context, *types.Opportunity) error { return nil }
func (NopSink) RecordExecution(context.Context, Execution) error            { return nil }
func (NopSink) Close() error                                                { return nil }

// MultiSink fans records out to every sink and joins their errors
type MultiSink []Sink

func (m MultiSink) RecordOpportunity(ctx context.Context, opp *types.Opportunity) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordOpportunity(ctx, opp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) RecordExecution(ctx context.Context, exec Execution) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordExecution(ctx, exec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
