package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/michaelpento.lv/arbbot/config"
)

var ErrInvalidKey = errors.New("invalid private key")

// Signer holds the fee payer keypair
type Signer struct {
	key solana.PrivateKey
}

// NewSigner parses a base58 encoded 64-byte keypair
func NewSigner(base58Key string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(base58Key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKey, len(key))
	}
	return &Signer{key: key}, nil
}

// LoadSigner reads the key from the named environment variable. The value is
// either a base58 keypair or the path of a solana-keygen JSON file.
func LoadSigner(envKey string) (*Signer, error) {
	value, err := config.GetRequiredEnv(envKey)
	if err != nil {
		return nil, err
	}
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, ".json") {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &Signer{key: key}, nil
	}
	return NewSigner(value)
}

// GenerateSigner creates a fresh random keypair
func GenerateSigner() (*Signer, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// KeyFor is a transaction signing getter: it only knows the payer key
func (s *Signer) KeyFor(pub solana.PublicKey) *solana.PrivateKey {
	if pub.Equals(s.key.PublicKey()) {
		return &s.key
	}
	return nil
}

// Base58 returns the keypair in the form NewSigner accepts
func (s *Signer) Base58() string {
	return s.key.String()
}
