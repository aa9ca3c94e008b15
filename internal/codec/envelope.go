package codec

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ProtocolOpcode is the single opcode distinguishing a protocol envelope
// from any other OP_RETURN output. Chosen once; must match on encode and
// decode. 0x5f is OP_15 (historically referred to as OP_PUSHNUM_15).
const ProtocolOpcode = txscript.OP_15

// BuildEnvelopeScript constructs the scriptPubKey for vout=0 of a protocol
// transaction: OP_RETURN <ProtocolOpcode> PUSH(payload).
func BuildEnvelopeScript(payload []byte) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_RETURN)
	b.AddOp(ProtocolOpcode)
	b.AddData(payload)
	return b.Script()
}

// BuildEnvelopeTxOut wraps BuildEnvelopeScript into a zero-value TxOut, the
// canonical shape of a protocol envelope output.
func BuildEnvelopeTxOut(payload []byte) (*wire.TxOut, error) {
	script, err := BuildEnvelopeScript(payload)
	if err != nil {
		return nil, fmt.Errorf("build envelope script: %w", err)
	}
	return wire.NewTxOut(0, script), nil
}

// ExtractEnvelopePayload inspects a scriptPubKey and, if it has the exact
// shape OP_RETURN <ProtocolOpcode> PUSH(payload), returns the pushed payload.
// A script shorter than 3 bytes returns ErrScriptTooShort; any other shape
// (including a generic OP_RETURN) returns ErrNotProtocolScript.
func ExtractEnvelopePayload(script []byte) ([]byte, error) {
	if len(script) < 3 {
		return nil, ErrScriptTooShort
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, ErrNotProtocolScript
	}
	if !tokenizer.Next() || tokenizer.Opcode() != ProtocolOpcode {
		return nil, ErrNotProtocolScript
	}
	if !tokenizer.Next() {
		return nil, ErrNotProtocolScript
	}
	payload := tokenizer.Data()
	if payload == nil {
		return nil, ErrNotProtocolScript
	}

	// No further instructions are permitted after the payload push.
	if tokenizer.Next() {
		return nil, ErrNotProtocolScript
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotProtocolScript, err)
	}

	return payload, nil
}
