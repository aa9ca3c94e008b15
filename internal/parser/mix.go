package parser

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// tokenInputSegment is one matched input's ownership assertion, placed at a
// contiguous position in the logical [0, total_tokens) index space formed by
// concatenating every input's slot ranges in input order.
type tokenInputSegment struct {
	collection models.CollectionKey
	base       codec.H160
	slotStart  *big.Int
	indexStart *big.Int
	indexEnd   *big.Int
}

type explicitRange struct {
	start       *big.Int
	end         *big.Int
	outputIndex int
}

type outputSlice struct {
	collection models.CollectionKey
	base       codec.H160
	slotStart  *big.Int
	slotEnd    *big.Int
}

// applyMix rewraps ownership of a Mix transaction's consumed OwnershipUtxos
// into its outputs, per the payload's explicit ranges and single complement
// output. Ported directly from the reference indexer's segment-slicing walk.
func applyMix(
	ctx context.Context,
	wtx store.WriteTx,
	r store.Reader,
	msg codec.Mix,
	tx *wire.MsgTx,
	txid string,
	height uint64,
	txIndex uint32,
) error {
	if err := msg.ValidateBasic(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var segments []tokenInputSegment
	var consumed []models.OwnershipUtxo
	cursor := big.NewInt(0)

	for _, in := range tx.TxIn {
		prevTxid := in.PreviousOutPoint.Hash.String()
		prevVout := in.PreviousOutPoint.Index

		utxos, err := r.ListUnspentOwnershipUtxosByOutpoint(ctx, prevTxid, prevVout)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMixUnknownUTXO, err)
		}
		if len(utxos) == 0 {
			return fmt.Errorf("%w: %s:%d", ErrMixUnknownUTXO, prevTxid, prevVout)
		}

		for _, u := range utxos {
			ranges, err := r.ListOwnershipRanges(ctx, u.RegTxid, u.RegVout, u.CollectionKey, u.BaseH160)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMixUnknownUTXO, err)
			}
			sort.Slice(ranges, func(i, j int) bool { return ranges[i].SlotStart.Cmp(ranges[j].SlotStart) < 0 })

			for _, rg := range ranges {
				length := new(big.Int).Sub(rg.SlotEnd, rg.SlotStart)
				length.Add(length, big.NewInt(1))

				indexStart := new(big.Int).Set(cursor)
				indexEnd := new(big.Int).Add(indexStart, length)

				segments = append(segments, tokenInputSegment{
					collection: u.CollectionKey,
					base:       u.BaseH160,
					slotStart:  new(big.Int).Set(rg.SlotStart),
					indexStart: indexStart,
					indexEnd:   indexEnd,
				})
				cursor = indexEnd
			}
			consumed = append(consumed, u)
		}
	}

	totalTokens := cursor
	if err := msg.ValidateTokenCount(totalTokens); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	outputCount := len(msg.Outputs)
	for oi := 0; oi < outputCount; oi++ {
		vout := uint32(oi + 1)
		if int(vout) >= len(tx.TxOut) {
			return fmt.Errorf("%w: vout=%d", ErrMixOutputMissing, vout)
		}
		if txscript.GetScriptClass(tx.TxOut[vout].PkScript) == txscript.NullDataTy {
			return fmt.Errorf("%w: vout=%d is op_return", ErrMixOutputMissing, vout)
		}
	}

	complementIndex := -1
	var explicit []explicitRange
	for oi, out := range msg.Outputs {
		if out.IsComplement {
			complementIndex = oi
			continue
		}
		for _, rg := range out.Ranges {
			explicit = append(explicit, explicitRange{start: rg.Start, end: rg.End, outputIndex: oi})
		}
	}
	sort.Slice(explicit, func(i, j int) bool {
		if explicit[i].start.Cmp(explicit[j].start) != 0 {
			return explicit[i].start.Cmp(explicit[j].start) < 0
		}
		return explicit[i].end.Cmp(explicit[j].end) < 0
	})

	assignments := make([][]outputSlice, outputCount)
	rangeIdx := 0

	for _, seg := range segments {
		segCursor := new(big.Int).Set(seg.indexStart)
		for segCursor.Cmp(seg.indexEnd) < 0 {
			for rangeIdx < len(explicit) && segCursor.Cmp(explicit[rangeIdx].end) >= 0 {
				rangeIdx++
			}

			var sliceEnd *big.Int
			var outputIndex int
			if rangeIdx < len(explicit) && segCursor.Cmp(explicit[rangeIdx].start) >= 0 {
				sliceEnd = minBig(seg.indexEnd, explicit[rangeIdx].end)
				outputIndex = explicit[rangeIdx].outputIndex
			} else if rangeIdx < len(explicit) {
				sliceEnd = minBig(seg.indexEnd, explicit[rangeIdx].start)
				outputIndex = complementIndex
			} else {
				sliceEnd = seg.indexEnd
				outputIndex = complementIndex
			}

			if sliceEnd.Cmp(segCursor) <= 0 {
				return fmt.Errorf("%w: slice did not advance", ErrMixOverflow)
			}

			offset := new(big.Int).Sub(segCursor, seg.indexStart)
			sliceLen := new(big.Int).Sub(sliceEnd, segCursor)
			slotStart := new(big.Int).Add(seg.slotStart, offset)
			slotEnd := new(big.Int).Add(slotStart, sliceLen)
			slotEnd.Sub(slotEnd, big.NewInt(1))

			assignments[outputIndex] = appendSlice(assignments[outputIndex], seg.collection, seg.base, slotStart, slotEnd)

			segCursor = sliceEnd
		}
	}

	for oi, slices := range assignments {
		if len(slices) == 0 {
			continue
		}
		vout := uint32(oi + 1)
		owner := DeriveOutputH160(tx.TxOut[vout].PkScript)

		savedGroup := make(map[string]bool)
		for _, s := range slices {
			groupKey := fmt.Sprintf("%s|%s", s.collection, s.base)
			if !savedGroup[groupKey] {
				savedGroup[groupKey] = true
				u := models.OwnershipUtxo{
					RegTxid:        txid,
					RegVout:        vout,
					CollectionKey:  s.collection,
					BaseH160:       s.base,
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
				RegVout:       vout,
				CollectionKey: s.collection,
				BaseH160:      s.base,
				SlotStart:     s.slotStart,
				SlotEnd:       s.slotEnd,
			}
			if err := wtx.SaveOwnershipRange(ctx, rng); err != nil {
				return err
			}
		}
	}

	for _, u := range consumed {
		if err := wtx.MarkOwnershipUtxoSpent(ctx, u.RegTxid, u.RegVout, u.CollectionKey, u.BaseH160, txid, height, txIndex); err != nil {
			return err
		}
	}

	slog.Info("mix indexed", "txid", txid, "inputs", len(consumed), "outputs", outputCount, "totalTokens", totalTokens)
	return nil
}

// appendSlice coalesces a new [slotStart, slotEnd] run into the previous
// slice when it is contiguous and shares the same (collection, base).
func appendSlice(slices []outputSlice, collection models.CollectionKey, base codec.H160, slotStart, slotEnd *big.Int) []outputSlice {
	if n := len(slices); n > 0 {
		last := &slices[n-1]
		if last.collection == collection && last.base == base {
			next := new(big.Int).Add(last.slotEnd, big.NewInt(1))
			if next.Cmp(slotStart) == 0 {
				last.slotEnd = slotEnd
				return slices
			}
		}
	}
	return append(slices, outputSlice{collection: collection, base: base, slotStart: slotStart, slotEnd: slotEnd})
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
