package bundle

import (
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
	"github.com/michaelpento.lv/arbbot/utils/testutils"
)

func newTestBuilder(t *testing.T) (*Builder, registry.RelayEndpoint) {
	t.Helper()
	reg := registry.Default()
	relay, ok := reg.Relay("jito-mainnet")
	require.True(t, ok)

	loans := flashloan.NewManager(reg, metrics.NewSet(nil, "test").Loans, zaptest.NewLogger(t))
	b, err := NewBuilder(loans, nil, relay, 50, zaptest.NewLogger(t))
	require.NoError(t, err)
	return b, relay
}

func decodeTx(t *testing.T, b64 string) *solana.Transaction {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func TestBuild(t *testing.T) {
	builder, relay := newTestBuilder(t)
	signer := testutils.NewSigner(t)
	opp := testutils.Opportunity("opp-1", "solend", time.Now())

	b, err := builder.Build(opp, 25_000, SignerContext{Signer: signer, Anchor: testutils.Anchor()})
	require.NoError(t, err)

	assert.Equal(t, []StepKind{StepBorrow, StepLeg, StepLeg, StepLeg, StepRepay, StepTip}, b.Plan.Kinds())
	for i, step := range b.Plan[1:4] {
		assert.Equal(t, i, step.Leg)
	}
	assert.Equal(t, "opp-1", b.OpportunityID)
	assert.Equal(t, "", b.ID())
	assert.Equal(t, uint64(25_000), b.TipLamports)
	assert.Equal(t, relay.TipAccounts[0], b.TipAccount.String())
	require.Len(t, b.Transactions, 1)

	tx := decodeTx(t, b.Transactions[0])
	require.Len(t, tx.Message.Instructions, 6)
	assert.Equal(t, signer.PublicKey(), tx.Message.AccountKeys[0], "fee payer first")
	assert.Equal(t, testutils.Anchor().Blockhash, tx.Message.RecentBlockhash)
	assert.Equal(t, b.Signature, tx.Signatures[0])
	require.NoError(t, tx.VerifySignatures())

	program := func(i int) solana.PublicKey {
		return tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
	}
	solend := solana.MustPublicKeyFromBase58("So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo")
	assert.Equal(t, solend, program(0))
	for i := 1; i <= 3; i++ {
		assert.Equal(t, DefaultRouterProgram, program(i))
	}
	assert.Equal(t, solend, program(4))
	assert.Equal(t, solana.SystemProgramID, program(5))

	borrow := tx.Message.Instructions[0].Data
	assert.Equal(t, flashloan.DefaultBorrowTag, borrow[0])
	assert.Equal(t, opp.Quote.InAmount, binary.LittleEndian.Uint64(borrow[1:9]))

	repay := tx.Message.Instructions[4].Data
	assert.Equal(t, opp.Quote.InAmount+500_000, binary.LittleEndian.Uint64(repay[1:9]))
	assert.Equal(t, byte(0), repay[9], "repay points at the borrow")
}

func TestBuildWithoutTip(t *testing.T) {
	builder, _ := newTestBuilder(t)
	opp := testutils.Opportunity("opp-1", "solend", time.Now())

	b, err := builder.Build(opp, 0, SignerContext{Signer: testutils.NewSigner(t), Anchor: testutils.Anchor()})
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepBorrow, StepLeg, StepLeg, StepLeg, StepRepay}, b.Plan.Kinds())
	assert.True(t, b.TipAccount.IsZero())
}

func TestBuildTipRoundRobin(t *testing.T) {
	builder, relay := newTestBuilder(t)
	sc := SignerContext{Signer: testutils.NewSigner(t), Anchor: testutils.Anchor()}

	n := len(relay.TipAccounts) + 2
	for i := 0; i < n; i++ {
		b, err := builder.Build(testutils.Opportunity("opp", "solend", time.Now()), 10_000, sc)
		require.NoError(t, err)
		assert.Equal(t, relay.TipAccounts[i%len(relay.TipAccounts)], b.TipAccount.String())
	}
}

func TestBuildErrors(t *testing.T) {
	builder, _ := newTestBuilder(t)
	sc := SignerContext{Signer: testutils.NewSigner(t), Anchor: testutils.Anchor()}

	t.Run("no legs", func(t *testing.T) {
		opp := testutils.Opportunity("opp", "solend", time.Now())
		opp.Quote.Legs = nil
		_, err := builder.Build(opp, 10_000, sc)
		assert.ErrorIs(t, err, types.ErrEmptyInstructionSet)
	})

	t.Run("zero amount legs", func(t *testing.T) {
		opp := testutils.Opportunity("opp", "solend", time.Now())
		for i := range opp.Quote.Legs {
			opp.Quote.Legs[i].InAmount = 0
		}
		_, err := builder.Build(opp, 10_000, sc)
		assert.ErrorIs(t, err, types.ErrEmptyInstructionSet)
	})

	t.Run("symbol instead of mint", func(t *testing.T) {
		opp := testutils.Opportunity("opp", "solend", time.Now())
		opp.Quote.Legs[1].InputAsset = "USDC"
		_, err := builder.Build(opp, 10_000, sc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leg 1")
	})

	t.Run("disabled provider", func(t *testing.T) {
		_, err := builder.Build(testutils.Opportunity("opp", "kamino", time.Now()), 10_000, sc)
		assert.ErrorIs(t, err, flashloan.ErrNoProvider)
	})

	t.Run("missing anchor", func(t *testing.T) {
		_, err := builder.Build(testutils.Opportunity("opp", "solend", time.Now()), 10_000, SignerContext{Signer: sc.Signer})
		assert.Error(t, err)
	})
}

// bulkyLegs pads every leg instruction with size bytes of data
type bulkyLegs struct{ size int }

func (e bulkyLegs) EncodeLeg(leg types.LegQuote, payer solana.PublicKey, _ uint16) (solana.Instruction, error) {
	return solana.NewInstruction(DefaultRouterProgram,
		solana.AccountMetaSlice{solana.Meta(payer).SIGNER().WRITE()},
		make([]byte, e.size)), nil
}

func TestBuildTransactionTooLarge(t *testing.T) {
	reg := registry.Default()
	relay, ok := reg.Relay("jito-mainnet")
	require.True(t, ok)
	loans := flashloan.NewManager(reg, metrics.NewSet(nil, "test").Loans, zaptest.NewLogger(t))
	sc := SignerContext{Signer: testutils.NewSigner(t), Anchor: testutils.Anchor()}

	// three legs of 400 bytes each cannot share a packet with the loan pair
	big, err := NewBuilder(loans, bulkyLegs{size: 400}, relay, 50, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = big.Build(testutils.Opportunity("opp", "solend", time.Now()), 10_000, sc)
	require.ErrorIs(t, err, types.ErrTransactionTooLarge)
	assert.Equal(t, "TRANSACTION_TOO_LARGE", types.Reason(err))

	b, err := big.Build(testutils.Opportunity("opp", "solend", time.Now()), 0, sc)
	assert.ErrorIs(t, err, types.ErrTransactionTooLarge)
	assert.Nil(t, b)

	// the rejected builds left the tip rotation where it was
	big.legs = bulkyLegs{size: 8}
	b, err = big.Build(testutils.Opportunity("opp", "solend", time.Now()), 10_000, sc)
	require.NoError(t, err)
	assert.Equal(t, relay.TipAccounts[0], b.TipAccount.String())

	raw, err := base64.StdEncoding.DecodeString(b.Transactions[0])
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), MaxTransactionSize)
}

func TestRouterEncoder(t *testing.T) {
	enc := NewRouterEncoder()
	payer := testutils.NewSigner(t).PublicKey()
	leg := types.LegQuote{InputAsset: testutils.SOL, OutputAsset: testutils.USDC, InAmount: 1_000_000_000, OutAmount: 150_000_000}

	ix, err := enc.EncodeLeg(leg, payer, 50)
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint64(149_250_000), binary.LittleEndian.Uint64(data[9:17]))
	assert.Equal(t, uint16(50), binary.LittleEndian.Uint16(data[17:19]))
	require.Len(t, ix.Accounts(), 3)
	assert.True(t, ix.Accounts()[0].IsSigner)

	_, err = enc.EncodeLeg(leg, payer, 10_001)
	assert.Error(t, err)
}

func TestMinOut(t *testing.T) {
	assert.Equal(t, uint64(995_000), MinOut(1_000_000, 50))
	assert.Equal(t, uint64(1_000_000), MinOut(1_000_000, 0))
	assert.Equal(t, uint64(0), MinOut(1_000_000, 10_000))
	assert.Equal(t, uint64(998), MinOut(999, 1), "rounds the bound down")
}
