package wallet

import "errors"

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrDerivation      = errors.New("key derivation failed")
	ErrWalletLocked    = errors.New("wallet keystore is locked")
	ErrAddressNotOurs  = errors.New("address not derivable from this keystore within the gap limit")
)
