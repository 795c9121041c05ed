package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/math"
)

// DefaultRouterProgram is the swap router the default leg encoder targets
var DefaultRouterProgram = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

const routeSwapTag byte = 0xE5

// LegEncoder turns a quoted conversion step into an instruction. A nil
// instruction with a nil error means the leg needs no on-chain action.
type LegEncoder interface {
	EncodeLeg(leg types.LegQuote, payer solana.PublicKey, maxSlippageBps uint16) (solana.Instruction, error)
}

// RouterEncoder encodes legs for a router program taking
// [tag | u64 in | u64 minOut | u16 slippageBps] with the payer and both
// mints as accounts
type RouterEncoder struct {
	Program solana.PublicKey
}

func NewRouterEncoder() *RouterEncoder {
	return &RouterEncoder{Program: DefaultRouterProgram}
}

func (e *RouterEncoder) EncodeLeg(leg types.LegQuote, payer solana.PublicKey, maxSlippageBps uint16) (solana.Instruction, error) {
	if leg.InAmount == 0 {
		return nil, nil
	}
	if maxSlippageBps > 10_000 {
		return nil, fmt.Errorf("slippage %d bps above 100%%", maxSlippageBps)
	}
	in, err := solana.PublicKeyFromBase58(string(leg.InputAsset))
	if err != nil {
		return nil, fmt.Errorf("leg input %s is not a mint: %w", leg.InputAsset, err)
	}
	out, err := solana.PublicKeyFromBase58(string(leg.OutputAsset))
	if err != nil {
		return nil, fmt.Errorf("leg output %s is not a mint: %w", leg.OutputAsset, err)
	}

	data := make([]byte, 19)
	data[0] = routeSwapTag
	binary.LittleEndian.PutUint64(data[1:9], leg.InAmount)
	binary.LittleEndian.PutUint64(data[9:17], MinOut(leg.OutAmount, maxSlippageBps))
	binary.LittleEndian.PutUint16(data[17:19], maxSlippageBps)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(in, false, false),
		solana.NewAccountMeta(out, false, false),
	}
	return solana.NewInstruction(e.Program, accounts, data), nil
}

// MinOut is the least output a leg may yield under the slippage bound
func MinOut(quoted uint64, slippageBps uint16) uint64 {
	return quoted - math.MulFractionCeil(quoted, float64(slippageBps)/10_000)
}
