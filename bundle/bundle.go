// Package bundle turns opportunities into signed atomic bundles and follows
// them through the relay until they settle
package bundle

import (
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/ledger"
)

// Bundle is a signed, relay-ready transaction group. The relay id is
// unknown until submission and is assigned exactly once.
type Bundle struct {
	OpportunityID string
	Transactions  []string // base64 wire transactions
	Signature     solana.Signature
	Plan          Plan
	TipAccount    solana.PublicKey
	TipLamports   uint64
	Anchor        ledger.Anchor
	CreatedAt     time.Time

	mu sync.Mutex
	id string
}

// ID returns the relay-assigned id, or "" before submission
func (b *Bundle) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

func (b *Bundle) assignID(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id != "" {
		return fmt.Errorf("bundle already has id %s", b.id)
	}
	b.id = id
	return nil
}
