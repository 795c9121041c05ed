package flashloan

import (
	"github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/registry"
)

// Encoder turns a loan request into the provider's borrow and repay
// instructions
type Encoder interface {
	Borrow(req LoanRequest) (solana.Instruction, error)
	Repay(req LoanRequest) (solana.Instruction, error)
}

// LoanRequest contains the parameters for one flash loan inside a bundle
type LoanRequest struct {
	Provider    registry.ProviderInfo
	Payer       solana.PublicKey
	Amount      uint64 // principal, in base units
	BorrowIndex uint8  // position of the borrow instruction in the transaction
}

// Fee returns the provider fee owed on the principal, rounded up
func (r LoanRequest) Fee() uint64 {
	return RepayFee(r.Amount, r.Provider.FeeFraction)
}
