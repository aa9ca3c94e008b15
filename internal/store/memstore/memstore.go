// Package memstore is an in-memory implementation of store.Store, used by
// parser and ReadAPI unit tests in place of the sqlite-backed store.
package memstore

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

type utxoKey struct {
	regTxid    string
	regVout    uint32
	collection models.CollectionKey
	base       codec.H160
}

// Store is a mutex-guarded, non-durable store.Store.
type Store struct {
	mu sync.Mutex

	tip         *models.ChainTip
	collections map[models.CollectionKey]models.Collection
	utxos       map[utxoKey]models.OwnershipUtxo
	ranges      map[utxoKey][]models.OwnershipRange
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[models.CollectionKey]models.Collection),
		utxos:       make(map[utxoKey]models.OwnershipUtxo),
		ranges:      make(map[utxoKey][]models.OwnershipRange),
	}
}

// Close is a no-op; memstore holds no external resources.
func (s *Store) Close() error { return nil }

// snapshot is a deep-enough copy to roll back to if a BeginTx callback fails.
type snapshot struct {
	tip         *models.ChainTip
	collections map[models.CollectionKey]models.Collection
	utxos       map[utxoKey]models.OwnershipUtxo
	ranges      map[utxoKey][]models.OwnershipRange
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		tip:         s.tip,
		collections: make(map[models.CollectionKey]models.Collection, len(s.collections)),
		utxos:       make(map[utxoKey]models.OwnershipUtxo, len(s.utxos)),
		ranges:      make(map[utxoKey][]models.OwnershipRange, len(s.ranges)),
	}
	for k, v := range s.collections {
		snap.collections[k] = v
	}
	for k, v := range s.utxos {
		snap.utxos[k] = v
	}
	for k, v := range s.ranges {
		cp := make([]models.OwnershipRange, len(v))
		copy(cp, v)
		snap.ranges[k] = cp
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.tip = snap.tip
	s.collections = snap.collections
	s.utxos = snap.utxos
	s.ranges = snap.ranges
}

// BeginTx runs fn against this Store directly, guarded by the store's mutex,
// rolling back to a pre-call snapshot if fn returns an error or panics. This mirrors
// the all-or-nothing per-block commit the sqlite implementation provides via
// a real database/sql transaction.
func (s *Store) BeginTx(ctx context.Context, fn func(store.WriteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
	}()
	if err := fn((*writeTx)(s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type writeTx Store

func (w *writeTx) SaveTip(ctx context.Context, height uint64, hash string) error {
	s := (*Store)(w)
	s.tip = &models.ChainTip{Height: height, Hash: hash}
	return nil
}

func (w *writeTx) SaveCollection(ctx context.Context, key models.CollectionKey, evmAddress [20]byte, rebaseable bool) error {
	s := (*Store)(w)
	if _, exists := s.collections[key]; exists {
		return nil
	}
	s.collections[key] = models.Collection{
		Key:        key,
		EVMAddress: evmAddress,
		Rebaseable: rebaseable,
	}
	return nil
}

func (w *writeTx) SaveOwnershipUtxo(ctx context.Context, u models.OwnershipUtxo) error {
	s := (*Store)(w)
	k := utxoKey{regTxid: u.RegTxid, regVout: u.RegVout, collection: u.CollectionKey, base: u.BaseH160}
	s.utxos[k] = u
	return nil
}

func (w *writeTx) SaveOwnershipRange(ctx context.Context, r models.OwnershipRange) error {
	s := (*Store)(w)
	k := utxoKey{regTxid: r.RegTxid, regVout: r.RegVout, collection: r.CollectionKey, base: r.BaseH160}
	s.ranges[k] = append(s.ranges[k], r)
	return nil
}

func (w *writeTx) MarkOwnershipUtxoSpent(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160, spentTxid string, spentHeight uint64, spentTxIndex uint32) error {
	s := (*Store)(w)
	k := utxoKey{regTxid: regTxid, regVout: regVout, collection: collection, base: base}
	u, ok := s.utxos[k]
	if !ok {
		return store.ErrNotFound
	}
	txid := spentTxid
	height := spentHeight
	txIndex := spentTxIndex
	u.SpentTxid = &txid
	u.SpentHeight = &height
	u.SpentTxIndex = &txIndex
	s.utxos[k] = u
	return nil
}

// --- Reader ---

func (s *Store) LoadTip(ctx context.Context) (*models.ChainTip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tip == nil {
		return nil, store.ErrNotFound
	}
	tip := *s.tip
	return &tip, nil
}

func (s *Store) LoadCollection(ctx context.Context, key models.CollectionKey) (*models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.BlockHeight != out[j].Key.BlockHeight {
			return out[i].Key.BlockHeight < out[j].Key.BlockHeight
		}
		return out[i].Key.TxIndex < out[j].Key.TxIndex
	})
	return out, nil
}

func (s *Store) ListUnspentOwnershipUtxosByOwner(ctx context.Context, owner codec.H160) ([]models.OwnershipUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OwnershipUtxo
	for _, u := range s.utxos {
		if u.OwnerH160 == owner && !u.IsSpent() {
			out = append(out, u)
		}
	}
	sortUtxos(out)
	return out, nil
}

func (s *Store) ListUnspentOwnershipUtxosByOutpoint(ctx context.Context, txid string, vout uint32) ([]models.OwnershipUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OwnershipUtxo
	for _, u := range s.utxos {
		if u.RegTxid == txid && u.RegVout == vout && !u.IsSpent() {
			out = append(out, u)
		}
	}
	sortUtxos(out)
	return out, nil
}

func (s *Store) ListOwnershipRanges(ctx context.Context, regTxid string, regVout uint32, collection models.CollectionKey, base codec.H160) ([]models.OwnershipRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := utxoKey{regTxid: regTxid, regVout: regVout, collection: collection, base: base}
	src := s.ranges[k]
	out := make([]models.OwnershipRange, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) FindUnspentOwnershipUtxoForSlot(ctx context.Context, collection models.CollectionKey, base codec.H160, slot *big.Int) (*models.OwnershipUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, u := range s.utxos {
		if k.collection != collection || k.base != base || u.IsSpent() {
			continue
		}
		for _, r := range s.ranges[k] {
			if slot.Cmp(r.SlotStart) >= 0 && slot.Cmp(r.SlotEnd) <= 0 {
				found := u
				return &found, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func sortUtxos(u []models.OwnershipUtxo) {
	sort.Slice(u, func(i, j int) bool {
		if u[i].RegTxid != u[j].RegTxid {
			return u[i].RegTxid < u[j].RegTxid
		}
		return u[i].RegVout < u[j].RegVout
	})
}
