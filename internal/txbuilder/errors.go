package txbuilder

import "errors"

var (
	ErrLockedOutpoint      = errors.New("txbuilder: outpoint lock/unlock failed")
	ErrFundingFailed       = errors.New("txbuilder: PSBT funding failed")
	ErrSigningIncomplete   = errors.New("txbuilder: one or more PSBT inputs could not be signed")
	ErrBroadcastFailed     = errors.New("txbuilder: broadcast failed")
	ErrInvalidOperation    = errors.New("txbuilder: invalid operation parameters")
)
