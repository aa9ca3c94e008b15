package parser

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// applyRegisterOwnership derives the registering owner from the transaction's
// first input and, for each group, assigns its slot ranges to the output at
// vout = group_index + 1. A duplicate (collection, owner, slot) within the
// same transaction is fail-fast (ErrDuplicateSlot); every other rejection is
// skip-and-log and returned as one of the sentinel errors in errors.go.
func applyRegisterOwnership(
	ctx context.Context,
	wtx store.WriteTx,
	r store.Reader,
	msg codec.RegisterOwnership,
	tx *wire.MsgTx,
	txid string,
	height uint64,
	txIndex uint32,
) error {
	collectionKey := models.CollectionKey{BlockHeight: msg.CollectionHeight, TxIndex: msg.CollectionTxIndex}

	if _, err := r.LoadCollection(ctx, collectionKey); err != nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionKey)
	}

	owner, err := DeriveInputOwnerH160(tx)
	if err != nil {
		return err
	}

	type slotKey struct {
		owner codec.H160
		slot  string
	}
	seen := make(map[slotKey]struct{})

	type pendingRange struct {
		vout      uint32
		slotStart *big.Int
		slotEnd   *big.Int
	}
	var pending []pendingRange

	for gi, group := range msg.Groups {
		vout := uint32(gi + 1)
		if int(vout) >= len(tx.TxOut) {
			return fmt.Errorf("%w: vout=%d available=%d", ErrOwnershipOutputMissing, vout, len(tx.TxOut))
		}
		out := tx.TxOut[vout]
		if txscript.GetScriptClass(out.PkScript) == txscript.NullDataTy {
			return fmt.Errorf("%w: vout=%d is op_return", ErrOwnershipOutputMissing, vout)
		}

		for _, item := range group.Items {
			start, end := item.Start, item.SlotEnd()
			for slot := new(big.Int).Set(start); slot.Cmp(end) <= 0; slot.Add(slot, big.NewInt(1)) {
				key := slotKey{owner: owner, slot: slot.String()}
				if _, dup := seen[key]; dup {
					return fmt.Errorf("%w: collection=%s owner=%s slot=%s", ErrDuplicateSlot, collectionKey, owner, slot)
				}
				seen[key] = struct{}{}

				existing, err := r.FindUnspentOwnershipUtxoForSlot(ctx, collectionKey, owner, slot)
				if err == nil && existing != nil {
					return fmt.Errorf("%w: collection=%s owner=%s slot=%s", ErrTokenAlreadyRegistered, collectionKey, owner, slot)
				}
			}

			pending = append(pending, pendingRange{vout: vout, slotStart: start, slotEnd: end})
		}
	}

	byVout := make(map[uint32]bool)
	for _, p := range pending {
		if !byVout[p.vout] {
			byVout[p.vout] = true
			u := models.OwnershipUtxo{
				RegTxid:        txid,
				RegVout:        p.vout,
				CollectionKey:  collectionKey,
				BaseH160:       owner,
				OwnerH160:      owner,
				CreatedHeight:  height,
				CreatedTxIndex: txIndex,
			}
			if err := wtx.SaveOwnershipUtxo(ctx, u); err != nil {
				return err
			}
		}
		rng := models.OwnershipRange{
			RegTxid:       txid,
			RegVout:       p.vout,
			CollectionKey: collectionKey,
			BaseH160:      owner,
			SlotStart:     p.slotStart,
			SlotEnd:       p.slotEnd,
		}
		if err := wtx.SaveOwnershipRange(ctx, rng); err != nil {
			return err
		}
	}

	slog.Info("ownership registered", "txid", txid, "collection", collectionKey, "owner", owner, "groups", len(msg.Groups))
	return nil
}
