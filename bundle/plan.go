package bundle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ErrInvalidPlan = errors.New("bundle step plan out of order")

// StepKind orders the instructions of an atomic arbitrage
type StepKind int

const (
	StepBorrow StepKind = iota
	StepLeg
	StepRepay
	StepTip
)

func (k StepKind) String() string {
	switch k {
	case StepBorrow:
		return "borrow"
	case StepLeg:
		return "leg"
	case StepRepay:
		return "repay"
	case StepTip:
		return "tip"
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// Step is one instruction of the bundle transaction. Leg is the route
// position for leg steps and -1 otherwise.
type Step struct {
	Kind        StepKind
	Leg         int
	Instruction solana.Instruction
}

// Plan is the ordered step list of a bundle
type Plan []Step

// Validate enforces borrow < legs < repay < tip. Legs must follow route
// order, borrow, legs and repay must be present and the tip, if any, must
// be the single last step.
func (p Plan) Validate() error {
	var counts [StepTip + 1]int
	prevKind := StepBorrow
	prevLeg := -1

	for i, s := range p {
		if s.Kind < StepBorrow || s.Kind > StepTip {
			return fmt.Errorf("%w: unknown step kind at %d", ErrInvalidPlan, i)
		}
		if s.Instruction == nil {
			return fmt.Errorf("%w: %s step %d has no instruction", ErrInvalidPlan, s.Kind, i)
		}
		if s.Kind < prevKind {
			return fmt.Errorf("%w: %s step %d after %s", ErrInvalidPlan, s.Kind, i, prevKind)
		}
		if s.Kind == StepLeg {
			if s.Leg <= prevLeg {
				return fmt.Errorf("%w: leg %d at step %d follows leg %d", ErrInvalidPlan, s.Leg, i, prevLeg)
			}
			prevLeg = s.Leg
		}
		prevKind = s.Kind
		counts[s.Kind]++
	}

	switch {
	case counts[StepBorrow] == 0:
		return fmt.Errorf("%w: missing borrow", ErrInvalidPlan)
	case counts[StepLeg] == 0:
		return fmt.Errorf("%w: missing legs", ErrInvalidPlan)
	case counts[StepRepay] == 0:
		return fmt.Errorf("%w: missing repay", ErrInvalidPlan)
	case counts[StepTip] > 1:
		return fmt.Errorf("%w: %d tip transfers", ErrInvalidPlan, counts[StepTip])
	}
	return nil
}

// Instructions flattens the plan in order
func (p Plan) Instructions() []solana.Instruction {
	out := make([]solana.Instruction, len(p))
	for i, s := range p {
		out[i] = s.Instruction
	}
	return out
}

// Kinds returns the step kinds in order
func (p Plan) Kinds() []StepKind {
	out := make([]StepKind, len(p))
	for i, s := range p {
		out[i] = s.Kind
	}
	return out
}
