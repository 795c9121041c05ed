package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/jito"
	"github.com/michaelpento.lv/arbbot/types"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 30
	defaultRequestTimeout  = 5 * time.Second
)

// Relay is the bundle relay the submitter talks to
type Relay interface {
	SendBundle(ctx context.Context, txs []string) (string, error)
	BundleStatus(ctx context.Context, bundleID string) (*jito.BundleStatus, error)
}

// Submitter sends bundles once and polls the relay until they settle
type Submitter struct {
	relay       Relay
	clock       Clock
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger
}

func NewSubmitter(relay Relay, cfg config.RelayConfig, clock Clock, logger *zap.Logger) *Submitter {
	s := &Submitter{
		relay:       relay,
		clock:       clock,
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxPollAttempts,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxPollAttempts
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}
	return s
}

// Submit sends the bundle and waits for its outcome. Relay-reported
// outcomes (landed, failed, dropped) return a nil error; submission
// failures and an exhausted poll budget return the matching sentinel.
func (s *Submitter) Submit(ctx context.Context, b *Bundle) (types.BundleStatus, error) {
	tracker := NewTracker()
	status := types.BundleStatus{State: tracker.State()}
	if b == nil || len(b.Transactions) == 0 {
		return status, fmt.Errorf("%w: nothing to submit", types.ErrEmptyInstructionSet)
	}

	s.advance(tracker, types.StateSubmitting)
	id, err := s.send(ctx, b)
	if err != nil {
		s.advance(tracker, types.StateSubmitFailed)
		status.State = tracker.State()
		status.Reason = types.Reason(err)
		s.logger.Warn("Bundle submission failed",
			zap.String("opportunity", b.OpportunityID),
			zap.Error(err))
		return status, err
	}
	if err := b.assignID(id); err != nil {
		return status, err
	}
	s.advance(tracker, types.StatePending)
	status.BundleID = id
	status.State = tracker.State()

	s.logger.Info("Bundle submitted",
		zap.String("bundle", id),
		zap.String("opportunity", b.OpportunityID),
		zap.Uint64("tip", b.TipLamports))

	for status.Attempts < s.maxAttempts {
		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			return s.timedOut(tracker, status, err)
		}
		status.Attempts++

		st, err := s.poll(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return s.timedOut(tracker, status, ctx.Err())
			}
			s.logger.Debug("Bundle status poll failed",
				zap.String("bundle", id),
				zap.Int("attempt", status.Attempts),
				zap.Error(err))
			continue
		}

		next, reason := Classify(st)
		if next == types.StatePending {
			continue
		}
		s.advance(tracker, next)
		status.State = tracker.State()
		status.Reason = reason
		if next == types.StateLanded {
			status.Slot = st.Slot
		}
		s.logger.Info("Bundle settled",
			zap.String("bundle", id),
			zap.String("state", string(status.State)),
			zap.Uint64("slot", status.Slot),
			zap.Int("attempts", status.Attempts))
		return status, nil
	}

	return s.timedOut(tracker, status, fmt.Errorf("no outcome after %d polls", status.Attempts))
}

func (s *Submitter) send(ctx context.Context, b *Bundle) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.relay.SendBundle(sendCtx, b.Transactions)
	if err != nil {
		if errors.Is(err, types.ErrRelayRejected) || errors.Is(err, types.ErrSubmitFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", types.ErrSubmitFailed, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: relay returned empty bundle id", types.ErrSubmitFailed)
	}
	return id, nil
}

func (s *Submitter) poll(ctx context.Context, id string) (*jito.BundleStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.relay.BundleStatus(pollCtx, id)
}

func (s *Submitter) timedOut(tracker *Tracker, status types.BundleStatus, cause error) (types.BundleStatus, error) {
	s.advance(tracker, types.StatePollTimeout)
	status.State = tracker.State()
	status.Reason = types.Reason(types.ErrPollTimeout)
	s.logger.Warn("Bundle outcome unknown",
		zap.String("bundle", status.BundleID),
		zap.Int("attempts", status.Attempts),
		zap.Error(cause))
	return status, fmt.Errorf("%w: %v", types.ErrPollTimeout, cause)
}

func (s *Submitter) advance(t *Tracker, next types.BundleState) {
	if _, err := t.Transition(next); err != nil {
		s.logger.Error("Bundle state machine violation", zap.Error(err))
	}
}

// Classify maps a relay status onto the state machine. Unknown or
// unsettled statuses stay PENDING; landing requires a slot.
func Classify(st *jito.BundleStatus) (types.BundleState, string) {
	if st == nil {
		return types.StatePending, ""
	}
	if st.ExecutionFailed() {
		return types.StateFailed, "EXECUTION_FAILED"
	}
	switch strings.ToLower(st.ConfirmationStatus) {
	case "failed":
		return types.StateFailed, "EXECUTION_FAILED"
	case "invalid", "dropped":
		return types.StateDropped, "BUNDLE_DROPPED"
	case "processed", "confirmed", "finalized", "landed":
		if st.Slot > 0 {
			return types.StateLanded, ""
		}
	}
	return types.StatePending, ""
}
