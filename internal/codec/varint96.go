package codec

import "math/big"

// MaxVarInt96Bytes is the maximum number of bytes a VarInt96 may occupy on
// the wire. A 96-bit value needs at most ceil(96/7) = 14 groups.
const MaxVarInt96Bytes = 14

// maxVarInt96Value is 2^96 - 1, the largest value VarInt96 can represent.
var maxVarInt96Value = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))

// MaxVarInt96Value returns 2^96 - 1.
func MaxVarInt96Value() *big.Int {
	return new(big.Int).Set(maxVarInt96Value)
}

// EncodeVarInt96 emits the minimal LEB128 encoding of v: 7-bit groups,
// low-order group first, continuation bit 0x80 set on every group but the
// last. It never emits a trailing zero continuation group.
func EncodeVarInt96(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 || v.Cmp(maxVarInt96Value) > 0 {
		return nil, ErrVarIntOutOfRange
	}
	if v.Sign() == 0 {
		return []byte{0x00}, nil
	}

	n := new(big.Int).Set(v)
	mask := big.NewInt(0x7f)
	group := new(big.Int)
	out := make([]byte, 0, MaxVarInt96Bytes)
	for n.Sign() > 0 {
		group.And(n, mask)
		b := byte(group.Uint64())
		n.Rsh(n, 7)
		if n.Sign() > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out, nil
}

// EncodeVarInt96Uint64 is a convenience wrapper for values that fit in a uint64.
func EncodeVarInt96Uint64(v uint64) ([]byte, error) {
	return EncodeVarInt96(new(big.Int).SetUint64(v))
}

// DecodeVarInt96 reads a VarInt96 from the front of data, returning the
// decoded value and the number of bytes consumed. It enforces: at most 14
// bytes, a clear continuation bit on the final byte, no non-minimal trailing
// zero group, and no value exceeding 2^96-1.
func DecodeVarInt96(data []byte) (*big.Int, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrVarIntEmpty
	}

	result := new(big.Int)
	term := new(big.Int)
	shift := uint(0)

	limit := len(data)
	if limit > MaxVarInt96Bytes {
		limit = MaxVarInt96Bytes
	}

	for i := 0; i < limit; i++ {
		b := data[i]
		group := uint64(b & 0x7f)
		continues := b&0x80 != 0

		term.SetUint64(group)
		term.Lsh(term, shift)
		result.Or(result, term)
		shift += 7

		if !continues {
			consumed := i + 1
			if consumed > 1 && group == 0 {
				return nil, 0, ErrVarIntNonMinimal
			}
			if result.Cmp(maxVarInt96Value) > 0 {
				return nil, 0, ErrVarIntOverflow
			}
			return result, consumed, nil
		}
	}

	if len(data) > MaxVarInt96Bytes {
		return nil, 0, ErrVarIntTooLong
	}
	return nil, 0, ErrVarIntUnterminated
}

// SizeVarInt96 returns len(encode(v)); it fails under the same conditions as
// EncodeVarInt96.
func SizeVarInt96(v *big.Int) (int, error) {
	b, err := EncodeVarInt96(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// FitsUint64 reports whether v can be represented as a uint64.
func FitsUint64(v *big.Int) bool {
	return v.Sign() >= 0 && v.BitLen() <= 64
}

// FitsUint32 reports whether v can be represented as a uint32.
func FitsUint32(v *big.Int) bool {
	return v.Sign() >= 0 && v.BitLen() <= 32
}
