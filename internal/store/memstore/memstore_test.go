package memstore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

func TestBeginTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	key := models.CollectionKey{BlockHeight: 1, TxIndex: 0}
	err := s.BeginTx(ctx, func(w store.WriteTx) error {
		if err := w.SaveCollection(ctx, key, [20]byte{1}, false); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from BeginTx")
	}
	if _, err := s.LoadCollection(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("collection should not have been committed, got err=%v", err)
	}
}

func TestSaveAndSpendOwnershipUtxo(t *testing.T) {
	s := New()
	ctx := context.Background()
	collection := models.CollectionKey{BlockHeight: 10, TxIndex: 0}
	var base, owner codec.H160
	copy(owner[:], []byte{0xaa})

	u := models.OwnershipUtxo{
		RegTxid:       "txid1",
		RegVout:       0,
		CollectionKey: collection,
		BaseH160:      base,
		OwnerH160:     owner,
	}
	r := models.OwnershipRange{
		RegTxid: "txid1", RegVout: 0, CollectionKey: collection, BaseH160: base,
		SlotStart: big.NewInt(0), SlotEnd: big.NewInt(9),
	}

	err := s.BeginTx(ctx, func(w store.WriteTx) error {
		if err := w.SaveOwnershipUtxo(ctx, u); err != nil {
			return err
		}
		return w.SaveOwnershipRange(ctx, r)
	})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	got, err := s.ListUnspentOwnershipUtxosByOwner(ctx, owner)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListUnspentOwnershipUtxosByOwner: got=%v err=%v", got, err)
	}

	found, err := s.FindUnspentOwnershipUtxoForSlot(ctx, collection, base, big.NewInt(5))
	if err != nil {
		t.Fatalf("FindUnspentOwnershipUtxoForSlot: %v", err)
	}
	if found.RegTxid != "txid1" {
		t.Errorf("found = %+v", found)
	}

	err = s.BeginTx(ctx, func(w store.WriteTx) error {
		return w.MarkOwnershipUtxoSpent(ctx, "txid1", 0, collection, base, "txid2", 11, 0)
	})
	if err != nil {
		t.Fatalf("mark spent: %v", err)
	}

	got, err = s.ListUnspentOwnershipUtxosByOwner(ctx, owner)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no unspent utxos after spend, got %v", got)
	}

	if _, err := s.FindUnspentOwnershipUtxoForSlot(ctx, collection, base, big.NewInt(5)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after spend, got %v", err)
	}
}
