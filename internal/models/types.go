// Package models holds the plain, JSON-tagged domain types shared between
// Store, the indexing pipeline, and the HTTP read API — mirroring the
// teacher's flat internal/models/types.go convention of exported structs
// with json tags and a standard API response envelope.
package models

import (
	"fmt"
	"math/big"

	"github.com/brc721/indexer/internal/codec"
)

// NetworkMode represents mainnet or testnet/signet/regtest operation.
type NetworkMode string

const (
	NetworkMainnet NetworkMode = "mainnet"
	NetworkTestnet NetworkMode = "testnet"
	NetworkSignet  NetworkMode = "signet"
	NetworkRegtest NetworkMode = "regtest"
)

// CollectionKey uniquely identifies a collection by the Bitcoin transaction
// that registered it.
type CollectionKey struct {
	BlockHeight uint64 `json:"blockHeight"`
	TxIndex     uint32 `json:"txIndex"`
}

// String renders the key in its canonical "<height>:<index>" form.
func (k CollectionKey) String() string {
	return fmt.Sprintf("%d:%d", k.BlockHeight, k.TxIndex)
}

// Collection is created by RegisterCollection and never mutated or deleted.
type Collection struct {
	Key            CollectionKey `json:"key"`
	EVMAddress     [20]byte      `json:"evmAddress"`
	Rebaseable     bool          `json:"rebaseable"`
	InsertedAtUnix int64         `json:"insertedAt"`
}

// OwnershipUtxo is a live assertion that a Bitcoin outpoint carries ownership
// of some slots of a collection.
type OwnershipUtxo struct {
	RegTxid        string        `json:"regTxid"`
	RegVout        uint32        `json:"regVout"`
	CollectionKey  CollectionKey `json:"collectionKey"`
	BaseH160       codec.H160    `json:"baseH160"`
	OwnerH160      codec.H160    `json:"ownerH160"`
	CreatedHeight  uint64        `json:"createdHeight"`
	CreatedTxIndex uint32        `json:"createdTxIndex"`
	SpentTxid      *string       `json:"spentTxid,omitempty"`
	SpentHeight    *uint64       `json:"spentHeight,omitempty"`
	SpentTxIndex   *uint32       `json:"spentTxIndex,omitempty"`
}

// IsSpent reports whether the UTXO has been marked spent.
func (u OwnershipUtxo) IsSpent() bool {
	return u.SpentTxid != nil
}

// OwnershipRange is one contiguous, inclusive run of slots carried by an
// OwnershipUtxo.
type OwnershipRange struct {
	RegTxid       string        `json:"regTxid"`
	RegVout       uint32        `json:"regVout"`
	CollectionKey CollectionKey `json:"collectionKey"`
	BaseH160      codec.H160    `json:"baseH160"`
	SlotStart     *big.Int      `json:"slotStart"`
	SlotEnd       *big.Int      `json:"slotEnd"`
}

// ChainTip is the last block successfully folded into Store. Singleton.
type ChainTip struct {
	Height      uint64 `json:"height"`
	Hash        string `json:"hash"`
	UpdatedUnix int64  `json:"updatedAt"`
}

// TokenOwnerResult is the ReadAPI's token_owner response: either the token's
// embedded initial owner, or a live registered owner with provenance.
type TokenOwnerResult struct {
	IsInitialOwner bool       `json:"isInitialOwner"`
	H160           codec.H160 `json:"h160"`
	RegTxid        string     `json:"regTxid,omitempty"`
	RegVout        uint32     `json:"regVout,omitempty"`
	CreatedHeight  uint64     `json:"createdHeight,omitempty"`
	CreatedTxIndex uint32     `json:"createdTxIndex,omitempty"`
}

// AssetGroup bundles an OwnershipUtxo with its coalesced slot ranges, the
// shape returned by address_assets and utxo_assets.
type AssetGroup struct {
	Utxo   OwnershipUtxo    `json:"utxo"`
	Ranges []OwnershipRange `json:"ranges"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains pagination and execution metadata.
type APIMeta struct {
	Page          int   `json:"page,omitempty"`
	PageSize      int   `json:"pageSize,omitempty"`
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail carries a machine-matchable code alongside the message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
