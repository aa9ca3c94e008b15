package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/codec"
)

// signAndFinalize decodes the node-funded PSBT, patches vout=0's
// scriptPubKey to the exact protocol envelope (when payload is non-empty —
// the node's output template only knows a generic OP_RETURN data carrier,
// not our leading opcode tag), signs every input with the descriptor
// wallet's taproot key-path keys, and returns the raw signed transaction as
// hex ready for sendrawtransaction. This bypasses psbt.Finalizer/Extractor
// entirely: the package is used only to decode the node's response
// (Packet.UnsignedTx, Packet.Inputs[i].WitnessUtxo), and signing/
// serialization are done directly, mirroring the way the codebase already
// signs manually rather than trusting a library's finalize step.
func (b *Builder) signAndFinalize(psbtB64 string, payload []byte) (string, error) {
	pkt, err := decodePSBT(psbtB64)
	if err != nil {
		return "", err
	}

	tx := pkt.UnsignedTx
	if len(payload) > 0 {
		if len(tx.TxOut) == 0 {
			return "", fmt.Errorf("%w: funded psbt has no outputs for envelope", ErrFundingFailed)
		}
		envelopeScript, err := codec.BuildEnvelopeScript(payload)
		if err != nil {
			return "", fmt.Errorf("%w: build envelope script: %v", ErrInvalidOperation, err)
		}
		tx.TxOut[0].PkScript = envelopeScript
		tx.TxOut[0].Value = 0
	}

	if err := b.keys.Unlock(); err != nil {
		return "", fmt.Errorf("%w: unlock keystore: %v", ErrSigningIncomplete, err)
	}
	defer b.keys.Lock()

	prevOutFetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			return "", fmt.Errorf("%w: input %d missing witness utxo", ErrSigningIncomplete, i)
		}
		prevOutFetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
	}
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	for i, in := range pkt.Inputs {
		keychain, index, err := b.keys.ResolveScript(in.WitnessUtxo.PkScript)
		if err != nil {
			return "", fmt.Errorf("%w: resolve signing key for input %d: %v", ErrSigningIncomplete, i, err)
		}

		privKey, err := b.keys.DeriveKey(keychain, index)
		if err != nil {
			return "", fmt.Errorf("%w: derive signing key for input %d: %v", ErrSigningIncomplete, i, err)
		}

		witness, err := txscript.TaprootWitnessSignature(
			tx,
			sigHashes,
			i,
			in.WitnessUtxo.Value,
			in.WitnessUtxo.PkScript,
			txscript.SigHashDefault,
			privKey,
		)
		privKey.Zero()
		if err != nil {
			return "", fmt.Errorf("%w: sign input %d: %v", ErrSigningIncomplete, i, err)
		}

		tx.TxIn[i].Witness = witness
	}

	return serializeTx(tx)
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("%w: serialize signed tx: %v", ErrSigningIncomplete, err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
