// Package parser folds scanned blocks into Store: one Store transaction per
// block, dispatching each transaction's protocol envelope (if any) to the
// command-specific applier and enforcing the fail-fast/skip-and-log split.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/chain"
	"github.com/brc721/indexer/internal/codec"
	"github.com/brc721/indexer/internal/models"
	"github.com/brc721/indexer/internal/store"
)

// Parser applies scanned blocks to Store.
type Parser struct {
	store store.Store
}

// New creates a Parser writing to the given Store.
func New(s store.Store) *Parser {
	return &Parser{store: s}
}

// ProcessBlock applies one block inside a single Store transaction. A
// returned error means the transaction rolled back and the block was not
// committed — the caller should treat this as fatal for the indexing task,
// per the fail-fast design (chain continuity, storage I/O, and duplicate
// slot assignment are never silently recovered from).
func (p *Parser) ProcessBlock(ctx context.Context, height uint64, hash string, block *wire.MsgBlock) error {
	return p.store.BeginTx(ctx, func(wtx store.WriteTx) error {
		if err := p.checkContinuity(ctx, block, height); err != nil {
			return err
		}

		for txIndex, tx := range block.Transactions {
			if err := p.processTx(ctx, wtx, tx, height, uint32(txIndex)); err != nil {
				if isFailFast(err) {
					return fmt.Errorf("tx %d in block %d: %w", txIndex, height, err)
				}
				slog.Warn("skipping transaction", "height", height, "txIndex", txIndex, "error", err)
			}
		}

		return wtx.SaveTip(ctx, height, hash)
	})
}

func (p *Parser) checkContinuity(ctx context.Context, block *wire.MsgBlock, height uint64) error {
	tip, err := p.store.LoadTip(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	prevHash := block.Header.PrevBlock.String()
	if prevHash != tip.Hash {
		return fmt.Errorf("%w: height=%d observed_parent=%s expected_parent=%s", ErrOrphanDetected, height, prevHash, tip.Hash)
	}
	if tip.Height+1 != height {
		return fmt.Errorf("%w: height=%d tip_height=%d", chain.ErrOrphanDetected, height, tip.Height)
	}
	return nil
}

// processTx parses the transaction's envelope (if any) and dispatches by
// command. It returns nil for transactions that carry no envelope at all.
func (p *Parser) processTx(ctx context.Context, wtx store.WriteTx, tx *wire.MsgTx, height uint64, txIndex uint32) error {
	if len(tx.TxOut) == 0 {
		return nil
	}

	payload, err := codec.ExtractEnvelopePayload(tx.TxOut[0].PkScript)
	if err != nil {
		if errors.Is(err, codec.ErrNotProtocolScript) || errors.Is(err, codec.ErrScriptTooShort) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	msg, err := codec.DecodePayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	txid := tx.TxHash().String()

	switch m := msg.(type) {
	case codec.RegisterCollection:
		key := models.CollectionKey{BlockHeight: height, TxIndex: txIndex}
		return applyRegisterCollection(ctx, wtx, m, key)
	case codec.RegisterOwnership:
		return applyRegisterOwnership(ctx, wtx, p.store, m, tx, txid, height, txIndex)
	case codec.Mix:
		return applyMix(ctx, wtx, p.store, m, tx, txid, height, txIndex)
	default:
		return fmt.Errorf("%w: unhandled message type %T", ErrMalformedEnvelope, msg)
	}
}

// isFailFast reports whether err must abort the whole block rather than
// just the offending transaction: anything that is not one of the
// skip-and-log sentinels in errors.go, storage errors included, is fatal.
func isFailFast(err error) bool {
	return !(errors.Is(err, ErrMalformedEnvelope) ||
		errors.Is(err, ErrCollectionNotFound) ||
		errors.Is(err, ErrTokenAlreadyRegistered) ||
		errors.Is(err, ErrOwnershipOutputMissing) ||
		errors.Is(err, ErrOwnershipProofUnavailable) ||
		errors.Is(err, ErrMixUnknownUTXO) ||
		errors.Is(err, ErrMixOutputMissing))
}
