package bundle

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(kind StepKind, leg int) Step {
	return Step{Kind: kind, Leg: leg, Instruction: solana.NewInstruction(solana.SystemProgramID, nil, []byte{byte(kind)})}
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{"full", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepLeg, 1), step(StepRepay, -1), step(StepTip, -1)}, false},
		{"no tip", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepRepay, -1)}, false},
		{"skipped leg", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepLeg, 2), step(StepRepay, -1)}, false},
		{"empty", Plan{}, true},
		{"no borrow", Plan{step(StepLeg, 0), step(StepRepay, -1)}, true},
		{"no legs", Plan{step(StepBorrow, -1), step(StepRepay, -1), step(StepTip, -1)}, true},
		{"no repay", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepTip, -1)}, true},
		{"repay before leg", Plan{step(StepBorrow, -1), step(StepRepay, -1), step(StepLeg, 0)}, true},
		{"tip before repay", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepTip, -1), step(StepRepay, -1)}, true},
		{"legs reversed", Plan{step(StepBorrow, -1), step(StepLeg, 1), step(StepLeg, 0), step(StepRepay, -1)}, true},
		{"two tips", Plan{step(StepBorrow, -1), step(StepLeg, 0), step(StepRepay, -1), step(StepTip, -1), step(StepTip, -1)}, true},
		{"nil instruction", Plan{step(StepBorrow, -1), {Kind: StepLeg, Leg: 0}, step(StepRepay, -1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPlan)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStepKindString(t *testing.T) {
	assert.Equal(t, "borrow", StepBorrow.String())
	assert.Equal(t, "tip", StepTip.String())
	assert.Equal(t, "step(9)", StepKind(9).String())
}
