package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// SlotBits is the width of the slot portion of a Brc721Token.
const SlotBits = 96

// AddressBits is the width of the h160 address portion of a Brc721Token.
const AddressBits = 160

// H160Size is the byte length of an h160 address.
const H160Size = AddressBits / 8

// MaxSlot is the largest representable slot number, 2^96 - 1.
var MaxSlot = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), SlotBits), big.NewInt(1))

// H160 is a 20-byte address-like hash (RIPEMD160(SHA256(x)) or an EVM address).
type H160 [H160Size]byte

// String renders the address as 0x-prefixed hex.
func (h H160) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Brc721Token is the 256-bit composite token identifier: a 96-bit slot
// number concatenated with a 160-bit initial-owner address.
type Brc721Token struct {
	Slot        *big.Int
	InitOwnerH160 H160
}

// NewBrc721Token validates slot and constructs a token.
func NewBrc721Token(slot *big.Int, owner H160) (Brc721Token, error) {
	if slot.Sign() < 0 || slot.Cmp(MaxSlot) > 0 {
		return Brc721Token{}, fmt.Errorf("%w: slot %s", ErrInvalidSlotNumber, slot)
	}
	return Brc721Token{Slot: new(big.Int).Set(slot), InitOwnerH160: owner}, nil
}

// ToU256 returns (slot << 160) | address as a big.Int.
func (t Brc721Token) ToU256() *big.Int {
	v := new(big.Int).Lsh(t.Slot, AddressBits)
	v.Or(v, new(big.Int).SetBytes(t.InitOwnerH160[:]))
	return v
}

// ToBytes renders the token as 32 big-endian bytes.
func (t Brc721Token) ToBytes() [32]byte {
	var out [32]byte
	u := t.ToU256()
	b := u.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// TokenFromBytes parses a 32-byte big-endian value into a Brc721Token.
func TokenFromBytes(b []byte) (Brc721Token, error) {
	if len(b) != 32 {
		return Brc721Token{}, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidTokenBytes, len(b))
	}
	u := new(big.Int).SetBytes(b)
	return tokenFromU256(u), nil
}

// TokenFromU256 splits a 256-bit composite back into slot + address.
func TokenFromU256(u *big.Int) Brc721Token {
	return tokenFromU256(u)
}

func tokenFromU256(u *big.Int) Brc721Token {
	mask160 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), AddressBits), big.NewInt(1))
	addrInt := new(big.Int).And(u, mask160)
	slot := new(big.Int).Rsh(u, AddressBits)

	var h H160
	addrBytes := addrInt.Bytes()
	copy(h[H160Size-len(addrBytes):], addrBytes)

	return Brc721Token{Slot: slot, InitOwnerH160: h}
}

// Decimal renders the token ID as its decimal string form, per the read API.
func (t Brc721Token) Decimal() string {
	return t.ToU256().String()
}
