package config

import "time"

// Scanner defaults.
const (
	DefaultConfirmations = 3
	DefaultBatchSize     = 1
	DefaultStartHeight   = 0
)

// BIP-32 derivation path constants. Purpose 86 per BIP-86 (taproot); coin
// type follows SLIP-44 (0 mainnet, 1 testnet/signet/regtest).
const (
	BIP86Purpose    = 86
	BTCCoinType     = 0
	BTCTestCoinType = 1
)

// Pagination.
const (
	DefaultPage     = 1
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Server.
const (
	DefaultAPIListen  = ":8080"
	ServerReadTimeout  = 15 * time.Second
	ServerWriteTimeout = 30 * time.Second
	ServerIdleTimeout  = 60 * time.Second
	ShutdownGrace      = 10 * time.Second
)

// Logging.
const (
	DefaultLogDir  = "./logs"
	LogFilePattern = "brc721d-%s-%s.log" // YYYY-MM-DD, level
	LogMaxAgeDays  = 30
)

// Store.
const (
	DefaultDataDir      = "./data"
	SqliteBusyTimeoutMS = 5000
)

// Node RPC resilience.
const (
	RPCRequestTimeout       = 30 * time.Second
	RPCCircuitFailThreshold = 5
	RPCCircuitCooldown      = 30 * time.Second
	WaitForNewBlockTimeout  = 60 * time.Second
	RPCRateLimitPerSecond   = 10
)

// TxBuilder.
const (
	DefaultFeeRateSatPerVByte = 10
	DustThresholdSats         = 546
	FeeEstimateConfTarget     = 6
)
