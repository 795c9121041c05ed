package registry

// Jito block-engine tip accounts
var jitoTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// Default returns the built-in catalogue
func Default() *Registry {
	r, err := New(
		[]ProviderInfo{
			{
				ID:          "solend",
				Label:       "Solend",
				FeeFraction: 0.0005,
				Liquidity:   50_000_000_000_000,
				Enabled:     true,
				ProgramID:   "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo",
				PoolAccount: "4UpD2fh7xH3VP9QQaXtsS1YY3bxzWhtfpks7FatyKvdY",
			},
			{
				ID:          "port",
				Label:       "Port Finance",
				FeeFraction: 0.0009,
				Liquidity:   20_000_000_000_000,
				Enabled:     true,
				ProgramID:   "Port7uDYB3wk6GJAw4KT1WpTeMtSu9bTcChBHkX2LfR",
			},
			{
				ID:          "kamino",
				Label:       "Kamino Lend",
				FeeFraction: 0.001,
				Liquidity:   80_000_000_000_000,
				Enabled:     false,
				ProgramID:   "KLend2g3cP87fffoy8q1mQqGKjrxjC8boSyAYavgmjD",
				PoolAccount: "7u3HeHxYDLhnCoErrtycNokbQYbWGzLs6JSDqGAv5PfF",
			},
		},
		[]RelayEndpoint{
			{Name: "jito-mainnet", BaseURL: "https://mainnet.block-engine.jito.wtf/api/v1", TipAccounts: jitoTipAccounts},
			{Name: "jito-amsterdam", BaseURL: "https://amsterdam.mainnet.block-engine.jito.wtf/api/v1", TipAccounts: jitoTipAccounts},
			{Name: "jito-ny", BaseURL: "https://ny.mainnet.block-engine.jito.wtf/api/v1", TipAccounts: jitoTipAccounts},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
