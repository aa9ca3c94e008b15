package parser

import "errors"

// Fail-fast errors: the enclosing block transaction is rolled back and the
// indexing process halts. These indicate a broken invariant, not a
// malformed individual message.
var (
	ErrOrphanDetected      = errors.New("parser: orphan detected")
	ErrDuplicateSlot       = errors.New("parser: duplicate slot assignment within transaction")
	ErrMixOverflow         = errors.New("parser: mix index arithmetic overflow")
)

// Skip-and-log errors: only the offending transaction is skipped; the block
// continues.
var (
	ErrMalformedEnvelope       = errors.New("parser: malformed envelope")
	ErrCollectionNotFound      = errors.New("parser: collection not found")
	ErrTokenAlreadyRegistered  = errors.New("parser: token already registered")
	ErrOwnershipOutputMissing  = errors.New("parser: ownership output missing or is op_return")
	ErrOwnershipProofUnavailable = errors.New("parser: could not derive owner h160 from input")
	ErrMixUnknownUTXO          = errors.New("parser: mix references unknown or already-spent utxo")
	ErrMixOutputMissing        = errors.New("parser: mix output missing or is op_return")
)
