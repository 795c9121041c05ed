package flashloan

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/utils/math"
)

var (
	ErrNoProvider     = errors.New("no eligible flash-loan provider")
	ErrInvalidRequest = errors.New("invalid flash-loan request")
)

// Default instruction tags of the lending programs in the built-in catalogue
const (
	DefaultBorrowTag byte = 19
	DefaultRepayTag  byte = 20
)

// RepayFee returns ceil(amount * feeFraction)
func RepayFee(amount uint64, feeFraction float64) uint64 {
	return math.MulFractionCeil(amount, feeFraction)
}

// ProgramEncoder encodes borrow/repay for lending programs that take
// [tag | u64 amount] and an optional pool account. Repay carries the
// principal plus fee and the index of the matching borrow.
type ProgramEncoder struct {
	BorrowTag byte
	RepayTag  byte
}

// NewProgramEncoder returns an encoder with the default tags
func NewProgramEncoder() *ProgramEncoder {
	return &ProgramEncoder{BorrowTag: DefaultBorrowTag, RepayTag: DefaultRepayTag}
}

func (e *ProgramEncoder) Borrow(req LoanRequest) (solana.Instruction, error) {
	program, accounts, err := e.accounts(req)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 9)
	data[0] = e.BorrowTag
	binary.LittleEndian.PutUint64(data[1:], req.Amount)
	return solana.NewInstruction(program, accounts, data), nil
}

func (e *ProgramEncoder) Repay(req LoanRequest) (solana.Instruction, error) {
	program, accounts, err := e.accounts(req)
	if err != nil {
		return nil, err
	}
	fee := req.Fee()
	if fee > gomath.MaxUint64-req.Amount {
		return nil, fmt.Errorf("%w: repay amount overflows", ErrInvalidRequest)
	}
	data := make([]byte, 10)
	data[0] = e.RepayTag
	binary.LittleEndian.PutUint64(data[1:9], req.Amount+fee)
	data[9] = req.BorrowIndex
	return solana.NewInstruction(program, accounts, data), nil
}

func (e *ProgramEncoder) accounts(req LoanRequest) (solana.PublicKey, solana.AccountMetaSlice, error) {
	if req.Amount == 0 {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: zero amount", ErrInvalidRequest)
	}
	if req.Payer.IsZero() {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: missing payer", ErrInvalidRequest)
	}
	program, err := solana.PublicKeyFromBase58(req.Provider.ProgramID)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: provider %s program id: %v", ErrInvalidRequest, req.Provider.ID, err)
	}

	accounts := solana.AccountMetaSlice{solana.NewAccountMeta(req.Payer, true, true)}
	if req.Provider.PoolAccount != "" {
		pool, err := solana.PublicKeyFromBase58(req.Provider.PoolAccount)
		if err != nil {
			return solana.PublicKey{}, nil, fmt.Errorf("%w: provider %s pool account: %v", ErrInvalidRequest, req.Provider.ID, err)
		}
		accounts = append(accounts, solana.NewAccountMeta(pool, true, false))
	}
	return program, accounts, nil
}
