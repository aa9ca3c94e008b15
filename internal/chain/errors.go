package chain

import "errors"

// ErrOrphanDetected is raised when a fetched block's prev_hash does not
// match the tip Store already committed. This is a fail-fast condition: the
// caller must not attempt automatic rollback or reorg handling.
var ErrOrphanDetected = errors.New("chain: orphan detected, prev_hash does not match committed tip")

// ErrHashMismatch is raised when get_block_hash(h) and get_block(hash)
// disagree on the block's own hash. Treated as a fatal bug, not a transient
// RPC failure.
var ErrHashMismatch = errors.New("chain: block hash mismatch between get_block_hash and get_block")

// ErrCircuitOpen is returned by NodeRPC calls while the circuit breaker is
// tripped.
var ErrCircuitOpen = errors.New("chain: circuit open, node calls suspended")

// ErrRPCTransient wraps node errors the caller should retry with backoff:
// timeouts, connection resets, 5xx, and JSON-RPC "in warmup" conditions.
var ErrRPCTransient = errors.New("chain: transient rpc error")

// ErrRPCPermanent wraps node errors that are not expected to resolve by
// retrying (bad auth, malformed request, node misconfiguration).
var ErrRPCPermanent = errors.New("chain: permanent rpc error")
