package config

import "errors"

// Sentinel errors for internal use.
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Error codes — shared with API responses.
const (
	ErrorInvalidConfig      = "ERROR_INVALID_CONFIG"
	ErrorDatabase           = "ERROR_DATABASE"
	ErrorNotFound           = "ERROR_NOT_FOUND"
	ErrorRPCUnavailable     = "ERROR_RPC_UNAVAILABLE"
	ErrorTxBuildFailed      = "ERROR_TX_BUILD_FAILED"
	ErrorTxSignFailed       = "ERROR_TX_SIGN_FAILED"
	ErrorTxBroadcastFailed  = "ERROR_TX_BROADCAST_FAILED"
	ErrorInvalidAddress     = "ERROR_INVALID_ADDRESS"
	ErrorFeeEstimateFailed  = "ERROR_FEE_ESTIMATE_FAILED"
	ErrorInsufficientUTXO   = "ERROR_INSUFFICIENT_UTXO"
	ErrorTxTooLarge         = "ERROR_TX_TOO_LARGE"
	ErrorDustOutput         = "ERROR_DUST_OUTPUT"
)
