// Package store defines the transactional persistence interface shared by
// the Parser (writer) and the ReadAPI (reader), plus two implementations:
// sqlite (modernc.org/sqlite, WAL mode) and memstore (in-memory, for tests).
package store

import (
	"context"
	"errors"
	"math/big"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
)

// ErrNotFound is returned by read operations that find nothing.
var ErrNotFound = errors.New("store: not found")

// Store is the narrow capability set the Parser and ReadAPI depend on. A
// single implementation backs both; tests use memstore, which satisfies the
// same contract.
type Store interface {
	Reader
	// BeginTx opens a write transaction; all writes inside the callback
	// commit atomically, or none do if the callback returns an error or the
	// underlying write panics.
	BeginTx(ctx context.Context, fn func(WriteTx) error) error
	Close() error
}

// Reader is the non-transactional, snapshot-consistent read side.
type Reader interface {
	LoadTip(ctx context.Context) (*models.ChainTip, error)
	LoadCollection(ctx context.Context, key models.CollectionKey) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]models.Collection, error)
	ListUnspentOwnershipUtxosByOwner(ctx context.Context, owner codec.H160) ([]models.OwnershipUtxo, error)
	ListUnspentOwnershipUtxosByOutpoint(ctx context.Context, txid string, vout uint32) ([]models.OwnershipUtxo, error)
	ListOwnershipRanges(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160) ([]models.OwnershipRange, error)
	FindUnspentOwnershipUtxoForSlot(ctx context.Context, collection models.CollectionKey, base codec.H160, slot *big.Int) (*models.OwnershipUtxo, error)
}

// WriteTx is the write side, available only inside BeginTx's callback.
type WriteTx interface {
	SaveTip(ctx context.Context, height uint64, hash string) error
	SaveCollection(ctx context.Context, key models.CollectionKey, evmAddress [20]byte, rebaseable bool) error
	SaveOwnershipUtxo(ctx context.Context, u models.OwnershipUtxo) error
	SaveOwnershipRange(ctx context.Context, r models.OwnershipRange) error
	MarkOwnershipUtxoSpent(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160, spentTxid string, spentHeight uint64, spentTxIndex uint32) error
}
