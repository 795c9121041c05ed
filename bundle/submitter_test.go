package bundle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/jito"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/testutils"
)

func testBundle() *Bundle {
	return &Bundle{OpportunityID: "opp-1", Transactions: []string{"AQID"}}
}

func newTestSubmitter(t *testing.T, relay Relay, clock Clock) *Submitter {
	return NewSubmitter(relay, config.RelayConfig{}, clock, zaptest.NewLogger(t))
}

func TestSubmitLanded(t *testing.T) {
	relay := &testutils.Relay{Statuses: []*jito.BundleStatus{
		nil,
		{ConfirmationStatus: "processed"},
		{ConfirmationStatus: "confirmed", Slot: 312_000_000},
	}}
	clock := &testutils.Clock{}
	b := testBundle()

	status, err := newTestSubmitter(t, relay, clock).Submit(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, types.StateLanded, status.State)
	assert.Equal(t, uint64(312_000_000), status.Slot)
	assert.Equal(t, 3, status.Attempts)
	assert.Equal(t, "bundle-1", status.BundleID)
	assert.Equal(t, "bundle-1", b.ID())
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clock.Slept)
}

func TestSubmitRelayOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status *jito.BundleStatus
		want   types.BundleState
		reason string
	}{
		{"failed", &jito.BundleStatus{ConfirmationStatus: "Failed"}, types.StateFailed, "EXECUTION_FAILED"},
		{"execution error", &jito.BundleStatus{ConfirmationStatus: "confirmed", Slot: 9, Err: []byte(`{"InstructionError":[2,"Custom"]}`)}, types.StateFailed, "EXECUTION_FAILED"},
		{"invalid", &jito.BundleStatus{ConfirmationStatus: "invalid"}, types.StateDropped, "BUNDLE_DROPPED"},
		{"dropped", &jito.BundleStatus{ConfirmationStatus: "dropped"}, types.StateDropped, "BUNDLE_DROPPED"},
		{"landed", &jito.BundleStatus{ConfirmationStatus: "landed", Slot: 5}, types.StateLanded, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &testutils.Relay{Statuses: []*jito.BundleStatus{tt.status}}
			status, err := newTestSubmitter(t, relay, &testutils.Clock{}).Submit(context.Background(), testBundle())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status.State)
			assert.Equal(t, tt.reason, status.Reason)
			assert.Equal(t, 1, status.Attempts)
		})
	}
}

func TestSubmitFailures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		relay := &testutils.Relay{SendErr: errors.New("connection refused")}
		status, err := newTestSubmitter(t, relay, &testutils.Clock{}).Submit(context.Background(), testBundle())
		require.ErrorIs(t, err, types.ErrSubmitFailed)
		assert.Equal(t, types.StateSubmitFailed, status.State)
		assert.Equal(t, "SUBMIT_FAILED", status.Reason)
		assert.Equal(t, 0, relay.Polls)
	})

	t.Run("rejected", func(t *testing.T) {
		relay := &testutils.Relay{SendErr: fmt.Errorf("%w: bundle too large", types.ErrRelayRejected)}
		status, err := newTestSubmitter(t, relay, &testutils.Clock{}).Submit(context.Background(), testBundle())
		require.ErrorIs(t, err, types.ErrRelayRejected)
		assert.NotErrorIs(t, err, types.ErrSubmitFailed)
		assert.Equal(t, types.StateSubmitFailed, status.State)
		assert.Equal(t, "RELAY_REJECTED", status.Reason)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := newTestSubmitter(t, &testutils.Relay{}, &testutils.Clock{}).Submit(context.Background(), &Bundle{})
		assert.ErrorIs(t, err, types.ErrEmptyInstructionSet)
	})
}

func TestSubmitPollTimeout(t *testing.T) {
	relay := &testutils.Relay{Statuses: []*jito.BundleStatus{{ConfirmationStatus: "processed"}}}
	clock := &testutils.Clock{}

	status, err := newTestSubmitter(t, relay, clock).Submit(context.Background(), testBundle())
	require.ErrorIs(t, err, types.ErrPollTimeout)
	assert.Equal(t, types.StatePollTimeout, status.State)
	assert.Equal(t, DefaultMaxPollAttempts, status.Attempts)
	assert.Equal(t, DefaultMaxPollAttempts, relay.Polls)
	assert.Equal(t, "POLL_TIMEOUT", status.Reason)
}

func TestSubmitPollErrorsCountAsAttempts(t *testing.T) {
	relay := &testutils.Relay{StatusFn: func(poll int) (*jito.BundleStatus, error) {
		if poll < 2 {
			return nil, errors.New("502 bad gateway")
		}
		return &jito.BundleStatus{ConfirmationStatus: "finalized", Slot: 77}, nil
	}}

	status, err := newTestSubmitter(t, relay, &testutils.Clock{}).Submit(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, types.StateLanded, status.State)
	assert.Equal(t, 3, status.Attempts)
}

func TestSubmitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := &testutils.Relay{}
	clock := &testutils.Clock{Cancel: cancel, After: 2}

	status, err := newTestSubmitter(t, relay, clock).Submit(ctx, testBundle())
	require.ErrorIs(t, err, types.ErrPollTimeout)
	assert.Equal(t, types.StatePollTimeout, status.State)
	assert.Equal(t, 2, status.Attempts)
	assert.Equal(t, 3, clock.Sleeps())
}

func TestClassify(t *testing.T) {
	state, _ := Classify(nil)
	assert.Equal(t, types.StatePending, state)

	state, _ = Classify(&jito.BundleStatus{ConfirmationStatus: "confirmed"})
	assert.Equal(t, types.StatePending, state, "landing needs a slot")

	state, _ = Classify(&jito.BundleStatus{ConfirmationStatus: "pending"})
	assert.Equal(t, types.StatePending, state)

	state, _ = Classify(&jito.BundleStatus{ConfirmationStatus: "something-new", Slot: 4})
	assert.Equal(t, types.StatePending, state)
}

func TestRealClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealClock().Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, RealClock().Sleep(context.Background(), time.Millisecond))
}
