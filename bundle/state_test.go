package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbbot/types"
)

func TestTrackerForwardOnly(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, types.StateBuilt, tr.State())

	_, err := tr.Transition(types.StateLanded)
	require.ErrorIs(t, err, ErrIllegalTransition)

	for _, s := range []types.BundleState{types.StateSubmitting, types.StatePending, types.StateLanded} {
		ok, err := tr.Transition(s)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// duplicate and conflicting terminal signals are ignored
	ok, err := tr.Transition(types.StateLanded)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = tr.Transition(types.StateDropped)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, types.StateLanded, tr.State())
	assert.Equal(t, []types.BundleState{types.StateBuilt, types.StateSubmitting, types.StatePending, types.StateLanded}, tr.History())
}

func TestTrackerNoBackwards(t *testing.T) {
	tr := NewTracker()
	_, err := tr.Transition(types.StateSubmitting)
	require.NoError(t, err)

	_, err = tr.Transition(types.StateBuilt)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = tr.Transition(types.StatePollTimeout)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	ok, err := tr.Transition(types.StateSubmitFailed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, tr.State().Terminal())
}
