// Package testutils holds fixtures shared by package tests
package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbbot/jito"
	"github.com/michaelpento.lv/arbbot/ledger"
	"github.com/michaelpento.lv/arbbot/types"
)

// Well-known mints
const (
	SOL  types.Asset = "So11111111111111111111111111111111111111112"
	USDC types.Asset = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDT types.Asset = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// TestBlockhash is a valid 32-byte base58 hash
const TestBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"

// NewSigner creates a random fee payer
func NewSigner(t *testing.T) *ledger.Signer {
	t.Helper()
	s, err := ledger.GenerateSigner()
	require.NoError(t, err)
	return s
}

// Anchor returns a fixed recency anchor
func Anchor() ledger.Anchor {
	return ledger.Anchor{
		Blockhash:            solana.MustHashFromBase58(TestBlockhash),
		LastValidBlockHeight: 300_000_150,
		Slot:                 310_000_000,
	}
}

// Quote builds a continuous aggregator quote over route where outs[i] is
// the output of leg i
func Quote(route types.Route, in uint64, outs ...uint64) types.ChainedQuote {
	q := types.ChainedQuote{
		Route:    route,
		InAmount: in,
		Source:   types.SourceAggregator,
	}
	amount := in
	for i := 0; i+1 < len(route) && i < len(outs); i++ {
		q.Legs = append(q.Legs, types.LegQuote{
			InputAsset:  route[i],
			OutputAsset: route[i+1],
			InAmount:    amount,
			OutAmount:   outs[i],
			Venue:       "test",
		})
		amount = outs[i]
	}
	q.OutAmount = amount
	return q
}

// Opportunity returns a profitable triangle opportunity on provider
func Opportunity(id, provider string, created time.Time) *types.Opportunity {
	q := Quote(types.Route{SOL, USDC, USDT, SOL}, 1_000_000_000, 150_000_000, 150_100_000, 1_020_000_000)
	return &types.Opportunity{
		ID:               id,
		Quote:            q,
		ProviderID:       provider,
		ProviderFee:      0.0005,
		LoanFee:          500_000,
		NetProfit:        19_500_000,
		NetProfitPercent: 0.0195,
		Confidence:       0.9,
		CreatedAt:        created,
	}
}

// Relay is a scriptable bundle relay. Statuses are handed out one per
// poll; the last one repeats.
type Relay struct {
	mu       sync.Mutex
	SendErr  error
	StatusFn func(poll int) (*jito.BundleStatus, error)
	Statuses []*jito.BundleStatus
	Sent     [][]string
	Polls    int
}

func (r *Relay) SendBundle(_ context.Context, txs []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return "", r.SendErr
	}
	r.Sent = append(r.Sent, txs)
	return fmt.Sprintf("bundle-%d", len(r.Sent)), nil
}

func (r *Relay) BundleStatus(_ context.Context, _ string) (*jito.BundleStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll := r.Polls
	r.Polls++
	if r.StatusFn != nil {
		return r.StatusFn(poll)
	}
	if len(r.Statuses) == 0 {
		return nil, nil
	}
	if poll >= len(r.Statuses) {
		poll = len(r.Statuses) - 1
	}
	return r.Statuses[poll], nil
}

// SentCount returns how many bundles were accepted
func (r *Relay) SentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sent)
}

// Clock records sleeps without waiting. It honours cancellation.
type Clock struct {
	mu     sync.Mutex
	Slept  []time.Duration
	Cancel context.CancelFunc // called on every sleep past the first After
	After  int
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.Slept = append(c.Slept, d)
	n := len(c.Slept)
	c.mu.Unlock()

	if c.Cancel != nil && n > c.After {
		c.Cancel()
	}
	return ctx.Err()
}

// Sleeps returns the number of recorded sleeps
func (c *Clock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Slept)
}
