package config

// Dex defines network endpoints and defaults for decentralized execution.
type Dex struct {
	Chain         string `yaml:"chain"` // e.g. "solana"
	RpcURL        string `yaml:"rpc_url"`
	Commitment    string `yaml:"commitment"`   // processed|confirmed|finalized
	JupiterBase   string `yaml:"jupiter_base"` // https://quote-api.jup.ag
	QuoteMint     string `yaml:"quote_mint"`
	QuoteDecimals int    `yaml:"quote_decimals"`
	SlippageBps   int    `yaml:"slippage_bps"`
}

// Wallet stores signing material. SOLANA_PRIVATE_KEY_BASE58 takes precedence over the file.
type Wallet struct {
	PrivateKeyBase58 string `yaml:"private_key_base58,omitempty"`
}
