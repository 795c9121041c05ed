// Package registry holds the immutable catalogue of flash-loan providers and
// relay endpoints the bot may use.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"
)

var ErrInvalidRegistry = errors.New("invalid registry")

// ProviderInfo describes a flash-loan source
type ProviderInfo struct {
	ID          string  `yaml:"id"`
	Label       string  `yaml:"label"`
	FeeFraction float64 `yaml:"fee_fraction"`
	Liquidity   uint64  `yaml:"liquidity"` // estimate, in base units of the borrowed asset
	Enabled     bool    `yaml:"enabled"`
	ProgramID   string  `yaml:"program_id"`
	PoolAccount string  `yaml:"pool_account"`
}

// RelayEndpoint describes a bundle relay and the accounts it accepts tips on
type RelayEndpoint struct {
	Name        string   `yaml:"name"`
	BaseURL     string   `yaml:"base_url"`
	TipAccounts []string `yaml:"tip_accounts"`
}

// Registry is populated once at startup and never mutated afterwards.
// Accessors hand out copies.
type Registry struct {
	providers []ProviderInfo
	byID      map[string]int
	relays    []RelayEndpoint
	byName    map[string]int
}

// New validates and freezes a provider and relay catalogue
func New(providers []ProviderInfo, relays []RelayEndpoint) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]int, len(providers)),
		byName: make(map[string]int, len(relays)),
	}

	for _, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: provider without id", ErrInvalidRegistry)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %s", ErrInvalidRegistry, p.ID)
		}
		if p.FeeFraction < 0 || p.FeeFraction >= 1 {
			return nil, fmt.Errorf("%w: provider %s fee %v outside [0, 1)", ErrInvalidRegistry, p.ID, p.FeeFraction)
		}
		if p.Enabled && p.ProgramID == "" {
			return nil, fmt.Errorf("%w: provider %s has no program id", ErrInvalidRegistry, p.ID)
		}
		r.byID[p.ID] = len(r.providers)
		r.providers = append(r.providers, p)
	}

	for _, e := range relays {
		if e.Name == "" || e.BaseURL == "" {
			return nil, fmt.Errorf("%w: relay requires name and base_url", ErrInvalidRegistry)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate relay %s", ErrInvalidRegistry, e.Name)
		}
		if len(e.TipAccounts) == 0 {
			return nil, fmt.Errorf("%w: relay %s has no tip accounts", ErrInvalidRegistry, e.Name)
		}
		e.TipAccounts = append([]string(nil), e.TipAccounts...)
		r.byName[e.Name] = len(r.relays)
		r.relays = append(r.relays, e)
	}

	return r, nil
}

type registryFile struct {
	Providers []ProviderInfo  `yaml:"providers"`
	Relays    []RelayEndpoint `yaml:"relays"`
}

// Load parses a registry from a YAML file
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode registry file: %w", err)
	}

	return New(file.Providers, file.Relays)
}

// Providers returns every registered provider, enabled or not
func (r *Registry) Providers() []ProviderInfo {
	return append([]ProviderInfo(nil), r.providers...)
}

// Provider looks up a provider by id
func (r *Registry) Provider(id string) (ProviderInfo, bool) {
	i, ok := r.byID[id]
	if !ok {
		return ProviderInfo{}, false
	}
	return r.providers[i], true
}

// Eligible returns the enabled providers able to lend amount, cheapest first
func (r *Registry) Eligible(amount uint64) []ProviderInfo {
	var out []ProviderInfo
	for _, p := range r.providers {
		if p.Enabled && p.Liquidity >= amount {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FeeFraction < out[j].FeeFraction
	})
	return out
}

// Relays returns every registered relay endpoint
func (r *Registry) Relays() []RelayEndpoint {
	out := make([]RelayEndpoint, len(r.relays))
	for i, e := range r.relays {
		e.TipAccounts = append([]string(nil), e.TipAccounts...)
		out[i] = e
	}
	return out
}

// Relay looks up a relay endpoint by name
func (r *Registry) Relay(name string) (RelayEndpoint, bool) {
	i, ok := r.byName[name]
	if !ok {
		return RelayEndpoint{}, false
	}
	e := r.relays[i]
	e.TipAccounts = append([]string(nil), e.TipAccounts...)
	return e, true
}
