package bundle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/michaelpento.lv/arbbot/types"
)

var ErrIllegalTransition = errors.New("illegal bundle state transition")

var transitions = map[types.BundleState][]types.BundleState{
	types.StateBuilt:      {types.StateSubmitting},
	types.StateSubmitting: {types.StateSubmitFailed, types.StatePending},
	types.StatePending:    {types.StateLanded, types.StateFailed, types.StateDropped, types.StatePollTimeout},
}

// Tracker holds the state of one bundle. States only move forward; once
// terminal, further signals are ignored.
type Tracker struct {
	mu      sync.Mutex
	state   types.BundleState
	history []types.BundleState
}

func NewTracker() *Tracker {
	return &Tracker{
		state:   types.StateBuilt,
		history: []types.BundleState{types.StateBuilt},
	}
}

func (t *Tracker) State() types.BundleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns every state visited, in order
func (t *Tracker) History() []types.BundleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.BundleState(nil), t.history...)
}

// Transition moves to next. It reports false without error when the
// bundle is already terminal.
func (t *Tracker) Transition(next types.BundleState) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return false, nil
	}
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			t.state = next
			t.history = append(t.history, next)
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.state, next)
}
