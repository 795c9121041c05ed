package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviders() []ProviderInfo {
	return []ProviderInfo{
		{ID: "pricey", FeeFraction: 0.002, Liquidity: 1_000, Enabled: true, ProgramID: "p1"},
		{ID: "cheap", FeeFraction: 0.0005, Liquidity: 1_000, Enabled: true, ProgramID: "p2"},
		{ID: "shallow", FeeFraction: 0.0001, Liquidity: 10, Enabled: true, ProgramID: "p3"},
		{ID: "off", FeeFraction: 0, Liquidity: 1_000_000, Enabled: false},
	}
}

func TestRegistry(t *testing.T) {
	reg, err := New(testProviders(), []RelayEndpoint{
		{Name: "relay", BaseURL: "http://relay", TipAccounts: []string{"a", "b"}},
	})
	require.NoError(t, err)

	t.Run("Eligible", func(t *testing.T) {
		eligible := reg.Eligible(500)
		require.Len(t, eligible, 2)
		assert.Equal(t, "cheap", eligible[0].ID)
		assert.Equal(t, "pricey", eligible[1].ID)

		assert.Len(t, reg.Eligible(5), 3)
		assert.Empty(t, reg.Eligible(10_000))
	})

	t.Run("Provider", func(t *testing.T) {
		p, ok := reg.Provider("off")
		require.True(t, ok)
		assert.False(t, p.Enabled)

		_, ok = reg.Provider("missing")
		assert.False(t, ok)
	})

	t.Run("CopiesAreIsolated", func(t *testing.T) {
		providers := reg.Providers()
		providers[0].FeeFraction = 0.5

		p, _ := reg.Provider("pricey")
		assert.Equal(t, 0.002, p.FeeFraction)

		relay, ok := reg.Relay("relay")
		require.True(t, ok)
		relay.TipAccounts[0] = "mutated"

		again, _ := reg.Relay("relay")
		assert.Equal(t, "a", again.TipAccounts[0])
		assert.Len(t, reg.Relays(), 1)
	})
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name      string
		providers []ProviderInfo
		relays    []RelayEndpoint
	}{
		{"missing id", []ProviderInfo{{FeeFraction: 0.1}}, nil},
		{"duplicate id", []ProviderInfo{{ID: "a", ProgramID: "x"}, {ID: "a", ProgramID: "x"}}, nil},
		{"fee too high", []ProviderInfo{{ID: "a", FeeFraction: 1, ProgramID: "x"}}, nil},
		{"enabled without program", []ProviderInfo{{ID: "a", Enabled: true}}, nil},
		{"relay without url", nil, []RelayEndpoint{{Name: "r", TipAccounts: []string{"a"}}}},
		{"relay without tips", nil, []RelayEndpoint{{Name: "r", BaseURL: "http://r"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.providers, tt.relays)
			require.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - id: solend
    label: Solend
    fee_fraction: 0.0005
    liquidity: 1000000
    enabled: true
    program_id: So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo
relays:
  - name: jito
    base_url: https://mainnet.block-engine.jito.wtf/api/v1
    tip_accounts:
      - 96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5
`), 0o600))

	reg, err := Load(path)
	require.NoError(t, err)

	p, ok := reg.Provider("solend")
	require.True(t, ok)
	assert.Equal(t, 0.0005, p.FeeFraction)
	assert.Equal(t, uint64(1_000_000), p.Liquidity)

	relay, ok := reg.Relay("jito")
	require.True(t, ok)
	assert.Len(t, relay.TipAccounts, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	reg := Default()
	assert.NotEmpty(t, reg.Eligible(1_000_000_000))
	relay, ok := reg.Relay("jito-mainnet")
	require.True(t, ok)
	assert.Len(t, relay.TipAccounts, 8)
}
