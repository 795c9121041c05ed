package bundle

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/ledger"
	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/types"
)

// borrow is always the first instruction of the transaction
const borrowIndex = 0

// MaxTransactionSize is the largest serialized transaction a validator accepts
const MaxTransactionSize = 1232

// Signer signs for the fee payer
type Signer interface {
	PublicKey() solana.PublicKey
	KeyFor(pub solana.PublicKey) *solana.PrivateKey
}

// SignerContext carries what a build needs from the ledger side: the payer
// and the recency anchor the transaction references
type SignerContext struct {
	Signer Signer
	Anchor ledger.Anchor
}

// Builder assembles one signed transaction per opportunity:
// borrow, legs in route order, repay, tip transfer
type Builder struct {
	loans       *flashloan.Manager
	legs        LegEncoder
	tipAccounts []solana.PublicKey
	now         func() time.Time
	logger      *zap.Logger

	mu       sync.Mutex
	next     uint64
	slippage uint16
}

// NewBuilder creates a builder tipping on the relay's accounts
func NewBuilder(loans *flashloan.Manager, legs LegEncoder, relay registry.RelayEndpoint, maxSlippageBps uint16, logger *zap.Logger) (*Builder, error) {
	if loans == nil {
		return nil, errors.New("flash-loan manager is required")
	}
	if legs == nil {
		legs = NewRouterEncoder()
	}
	if len(relay.TipAccounts) == 0 {
		return nil, fmt.Errorf("relay %s has no tip accounts", relay.Name)
	}

	accounts := make([]solana.PublicKey, 0, len(relay.TipAccounts))
	for _, a := range relay.TipAccounts {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("relay %s tip account %s: %w", relay.Name, a, err)
		}
		accounts = append(accounts, pk)
	}

	return &Builder{
		loans:       loans,
		legs:        legs,
		tipAccounts: accounts,
		now:         time.Now,
		logger:      logger,
		slippage:    maxSlippageBps,
	}, nil
}

// SetMaxSlippage changes the slippage bound used for future builds
func (b *Builder) SetMaxSlippage(bps uint16) {
	b.mu.Lock()
	b.slippage = bps
	b.mu.Unlock()
}

func (b *Builder) maxSlippage() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slippage
}

// peekTipAccount returns the next round-robin tip account and its sequence
// number without moving the rotation
func (b *Builder) peekTipAccount() (solana.PublicKey, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tipAccounts[b.next%uint64(len(b.tipAccounts))], b.next
}

// commitTipAccount moves the rotation past seq once a bundle using it was built
func (b *Builder) commitTipAccount(seq uint64) {
	b.mu.Lock()
	if b.next == seq {
		b.next++
	}
	b.mu.Unlock()
}

// Build encodes, orders and signs the bundle for opp. A zero tip omits the
// transfer step. A transaction that would not fit in one packet is rejected
// and does not use up a tip account.
func (b *Builder) Build(opp *types.Opportunity, tipLamports uint64, sc SignerContext) (*Bundle, error) {
	if opp == nil {
		return nil, errors.New("opportunity is required")
	}
	if sc.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if sc.Anchor.Blockhash.IsZero() {
		return nil, errors.New("recency anchor is required")
	}
	payer := sc.Signer.PublicKey()

	legSteps, err := b.legSteps(opp, payer)
	if err != nil {
		return nil, err
	}

	borrow, repay, err := b.loans.Instructions(opp.ProviderID, payer, opp.Quote.InAmount, borrowIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flash loan: %w", err)
	}

	plan := make(Plan, 0, len(legSteps)+3)
	plan = append(plan, Step{Kind: StepBorrow, Leg: -1, Instruction: borrow})
	plan = append(plan, legSteps...)
	plan = append(plan, Step{Kind: StepRepay, Leg: -1, Instruction: repay})

	var (
		tipAccount solana.PublicKey
		tipSeq     uint64
	)
	if tipLamports > 0 {
		tipAccount, tipSeq = b.peekTipAccount()
		transfer := system.NewTransferInstruction(tipLamports, payer, tipAccount).Build()
		plan = append(plan, Step{Kind: StepTip, Leg: -1, Instruction: transfer})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(plan.Instructions(), sc.Anchor.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}
	sigs, err := tx.Sign(sc.Signer.KeyFor)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	if len(raw) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes over %d for opportunity %s",
			types.ErrTransactionTooLarge, len(raw), MaxTransactionSize, opp.ID)
	}
	if tipLamports > 0 {
		b.commitTipAccount(tipSeq)
	}

	bundle := &Bundle{
		OpportunityID: opp.ID,
		Transactions:  []string{base64.StdEncoding.EncodeToString(raw)},
		Plan:          plan,
		TipAccount:    tipAccount,
		TipLamports:   tipLamports,
		Anchor:        sc.Anchor,
		CreatedAt:     b.now(),
	}
	if len(sigs) > 0 {
		bundle.Signature = sigs[0]
	}

	b.logger.Debug("Built bundle",
		zap.String("opportunity", opp.ID),
		zap.String("provider", opp.ProviderID),
		zap.Int("steps", len(plan)),
		zap.Int("size", len(raw)),
		zap.Uint64("tip", tipLamports),
		zap.Stringer("signature", bundle.Signature))
	return bundle, nil
}

func (b *Builder) legSteps(opp *types.Opportunity, payer solana.PublicKey) ([]Step, error) {
	slippage := b.maxSlippage()
	steps := make([]Step, 0, len(opp.Quote.Legs))
	for i, leg := range opp.Quote.Legs {
		ix, err := b.legs.EncodeLeg(leg, payer, slippage)
		if err != nil {
			return nil, fmt.Errorf("failed to encode leg %d (%s>%s): %w", i, leg.InputAsset, leg.OutputAsset, err)
		}
		if ix == nil {
			continue
		}
		steps = append(steps, Step{Kind: StepLeg, Leg: i, Instruction: ix})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: opportunity %s", types.ErrEmptyInstructionSet, opp.ID)
	}
	return steps, nil
}
