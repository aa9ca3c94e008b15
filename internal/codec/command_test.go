package codec

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
)

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex %q: %v", s, err)
	}
	return b
}

func TestS1RegisterCollectionNoRebase(t *testing.T) {
	payload := mustDecodeHex(t, "00ffff0123ffffffffffffffffffffffff3210ffff00")

	msg, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	rc, ok := msg.(RegisterCollection)
	if !ok {
		t.Fatalf("got %T, want RegisterCollection", msg)
	}
	if rc.Rebaseable {
		t.Errorf("Rebaseable = true, want false")
	}
	wantAddr := mustDecodeHex(t, "ffff0123ffffffffffffffffffffffff3210ffff")
	if !bytesEqual(rc.EVMAddress[:], wantAddr) {
		t.Errorf("EVMAddress = % x, want % x", rc.EVMAddress, wantAddr)
	}

	// Round trip.
	encoded, err := EncodePayload(rc)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	if !bytesEqual(encoded, payload) {
		t.Errorf("EncodePayload = % x, want % x", encoded, payload)
	}
}

func TestS1FullEnvelopeScriptShape(t *testing.T) {
	wantScript := mustDecodeHex(t, "6a5f1600ffff0123ffffffffffffffffffffffff3210ffff00")
	payload := mustDecodeHex(t, "00ffff0123ffffffffffffffffffffffff3210ffff00")

	script, err := BuildEnvelopeScript(payload)
	if err != nil {
		t.Fatalf("BuildEnvelopeScript: %v", err)
	}
	if !bytesEqual(script, wantScript) {
		t.Errorf("BuildEnvelopeScript = % x, want % x", script, wantScript)
	}

	extracted, err := ExtractEnvelopePayload(wantScript)
	if err != nil {
		t.Fatalf("ExtractEnvelopePayload: %v", err)
	}
	if !bytesEqual(extracted, payload) {
		t.Errorf("ExtractEnvelopePayload = % x, want % x", extracted, payload)
	}
}

func TestS2RegisterCollectionRebaseableAndInvalidFlag(t *testing.T) {
	payload := mustDecodeHex(t, "00ffff0123ffffffffffffffffffffffff3210ffff01")
	msg, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	rc := msg.(RegisterCollection)
	if !rc.Rebaseable {
		t.Errorf("Rebaseable = false, want true")
	}

	badPayload := mustDecodeHex(t, "00ffff0123ffffffffffffffffffffffff3210ffff02")
	if _, err := DecodePayload(badPayload); !errors.Is(err, ErrInvalidRebaseFlag) {
		t.Errorf("DecodePayload(flag=2) error = %v, want ErrInvalidRebaseFlag", err)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	if _, err := DecodePayload([]byte{0xff}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("DecodePayload(0xff) error = %v, want ErrUnknownCommand", err)
	}
}

func TestS4RegisterOwnershipHappyPath(t *testing.T) {
	msg := RegisterOwnership{
		CollectionHeight:  840000,
		CollectionTxIndex: 2,
		Groups: []OwnershipGroup{
			{Items: []SlotItem{RangeSlot(big.NewInt(0), big.NewInt(9))}},
		},
	}

	encoded, err := EncodePayload(msg)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	got, ok := decoded.(RegisterOwnership)
	if !ok {
		t.Fatalf("got %T, want RegisterOwnership", decoded)
	}
	if got.CollectionHeight != 840000 || got.CollectionTxIndex != 2 {
		t.Fatalf("got height=%d txIndex=%d", got.CollectionHeight, got.CollectionTxIndex)
	}
	if len(got.Groups) != 1 || len(got.Groups[0].Items) != 1 {
		t.Fatalf("got groups=%+v", got.Groups)
	}
	item := got.Groups[0].Items[0]
	if !item.IsRange || item.Start.Cmp(big.NewInt(0)) != 0 || item.SlotEnd().Cmp(big.NewInt(9)) != 0 {
		t.Errorf("got item=%+v, want range [0,9]", item)
	}
}

func TestRegisterOwnershipRejectsEqualEndpointsAsRange(t *testing.T) {
	msg := RegisterOwnership{
		CollectionHeight:  1,
		CollectionTxIndex: 0,
		Groups: []OwnershipGroup{
			{Items: []SlotItem{RangeSlot(big.NewInt(5), big.NewInt(5))}},
		},
	}
	if _, err := msg.Encode(); !errors.Is(err, ErrInvalidSlotRange) {
		t.Errorf("Encode() error = %v, want ErrInvalidSlotRange", err)
	}
}

func TestRegisterOwnershipRejectsZeroGroups(t *testing.T) {
	msg := RegisterOwnership{CollectionHeight: 1, CollectionTxIndex: 0}
	if _, err := msg.Encode(); !errors.Is(err, ErrInvalidGroupCount) {
		t.Errorf("Encode() error = %v, want ErrInvalidGroupCount", err)
	}
}

func TestS6MixRewrapWithComplement(t *testing.T) {
	// output_count=2, output 0 ranges [0,2) explicit, output 1 complement.
	msg := Mix{
		Outputs: []MixOutput{
			{Ranges: []MixRange{{Start: big.NewInt(0), End: big.NewInt(2)}}},
			{IsComplement: true},
		},
	}

	encoded, err := EncodePayload(msg)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	got := decoded.(Mix)
	if len(got.Outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(got.Outputs))
	}
	if got.Outputs[0].IsComplement || len(got.Outputs[0].Ranges) != 1 {
		t.Errorf("output 0 = %+v", got.Outputs[0])
	}
	if !got.Outputs[1].IsComplement {
		t.Errorf("output 1 is not complement")
	}

	if err := got.ValidateTokenCount(big.NewInt(6)); err != nil {
		t.Errorf("ValidateTokenCount(6): %v", err)
	}
	if err := got.ValidateTokenCount(big.NewInt(1)); err == nil {
		t.Errorf("ValidateTokenCount(1) should fail, max explicit end is 2")
	}
}

func TestMixRejectsOverlappingRanges(t *testing.T) {
	msg := Mix{
		Outputs: []MixOutput{
			{Ranges: []MixRange{{Start: big.NewInt(0), End: big.NewInt(5)}}},
			{Ranges: []MixRange{{Start: big.NewInt(3), End: big.NewInt(8)}}},
			{IsComplement: true},
		},
	}
	if err := msg.ValidateBasic(); !errors.Is(err, ErrInvalidSlotRange) {
		t.Errorf("ValidateBasic() error = %v, want ErrInvalidSlotRange", err)
	}
}

func TestMixRejectsMissingOrMultipleComplements(t *testing.T) {
	noComplement := Mix{Outputs: []MixOutput{
		{Ranges: []MixRange{{Start: big.NewInt(0), End: big.NewInt(1)}}},
		{Ranges: []MixRange{{Start: big.NewInt(1), End: big.NewInt(2)}}},
	}}
	if err := noComplement.ValidateBasic(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("no-complement ValidateBasic() error = %v, want ErrInvalidPayload", err)
	}

	twoComplements := Mix{Outputs: []MixOutput{{IsComplement: true}, {IsComplement: true}}}
	if err := twoComplements.ValidateBasic(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("two-complement ValidateBasic() error = %v, want ErrInvalidPayload", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	var owner H160
	copy(owner[:], mustDecodeHex(t, "ffff0123ffffffffffffffffffffffff3210ffff"))

	tok, err := NewBrc721Token(big.NewInt(5), owner)
	if err != nil {
		t.Fatalf("NewBrc721Token: %v", err)
	}

	b := tok.ToBytes()
	back, err := TokenFromBytes(b[:])
	if err != nil {
		t.Fatalf("TokenFromBytes: %v", err)
	}
	if back.Slot.Cmp(tok.Slot) != 0 || back.InitOwnerH160 != tok.InitOwnerH160 {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, tok)
	}
}
