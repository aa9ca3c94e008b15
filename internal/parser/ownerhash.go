package parser

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/brc721/indexer/internal/codec"
)

// DeriveInputOwnerH160 derives the owner_h160 asserted by a transaction's
// first input. The preferred source is the last element of its witness
// stack, used when it parses as a public key (as it does for a standard
// P2WPKH spend; a taproot key-path spend carries only a signature there, so
// it yields no key); script_sig is tried as a fallback for legacy inputs.
func DeriveInputOwnerH160(tx *wire.MsgTx) (codec.H160, error) {
	if len(tx.TxIn) == 0 {
		return codec.H160{}, ErrOwnershipProofUnavailable
	}
	input := tx.TxIn[0]

	if pub, ok := pubkeyFromWitness(input.Witness); ok {
		return hash160(pub), nil
	}
	if pub, ok := pubkeyFromScriptSig(input.SignatureScript); ok {
		return hash160(pub), nil
	}
	return codec.H160{}, ErrOwnershipProofUnavailable
}

func pubkeyFromWitness(witness wire.TxWitness) ([]byte, bool) {
	if len(witness) == 0 {
		return nil, false
	}
	last := witness[len(witness)-1]
	if _, err := btcec.ParsePubKey(last); err != nil {
		return nil, false
	}
	return last, true
}

func pubkeyFromScriptSig(script []byte) ([]byte, bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	var last []byte
	for tokenizer.Next() {
		data := tokenizer.Data()
		if data == nil {
			continue
		}
		if _, err := btcec.ParsePubKey(data); err == nil {
			last = data
		}
	}
	if last == nil {
		return nil, false
	}
	return last, true
}

func hash160(pubkey []byte) codec.H160 {
	var h codec.H160
	copy(h[:], btcutil.Hash160(pubkey))
	return h
}

// DeriveOutputH160 is the deterministic projection used to assign ownership
// from an output's script_pubkey: the 20-byte witness program for a
// witness-v0 P2WPKH output, the embedded hash for a legacy P2PKH output, and
// RIPEMD160(SHA256(script)) of the raw script for anything else — applied
// identically whether indexing a new owner or looking one up later.
func DeriveOutputH160(script []byte) codec.H160 {
	var h codec.H160
	// The address constructors need network params; the hashes read back
	// from them are the same on every network.
	if class, addrs, _, err := txscript.ExtractPkScriptAddrs(script, &chaincfg.MainNetParams); err == nil && len(addrs) == 1 {
		switch class {
		case txscript.WitnessV0PubKeyHashTy:
			if a, ok := addrs[0].(*btcutil.AddressWitnessPubKeyHash); ok {
				copy(h[:], a.Hash160()[:])
				return h
			}
		case txscript.PubKeyHashTy:
			if a, ok := addrs[0].(*btcutil.AddressPubKeyHash); ok {
				copy(h[:], a.Hash160()[:])
				return h
			}
		}
	}
	copy(h[:], btcutil.Hash160(script))
	return h
}
