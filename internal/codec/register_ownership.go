package codec

import (
	"fmt"
	"math/big"
)

// slotRangeTag values within a RegisterOwnership group item.
const (
	slotTagSingle byte = 0x00
	slotTagRange  byte = 0x01
)

// SlotItem is one entry of an ownership group: either a single slot or an
// inclusive [start, end] range (start < end; equal endpoints must use the
// single-slot form).
type SlotItem struct {
	IsRange bool
	Start   *big.Int
	End     *big.Int // only meaningful when IsRange
}

// SingleSlot builds a single-slot item.
func SingleSlot(slot *big.Int) SlotItem {
	return SlotItem{IsRange: false, Start: slot}
}

// RangeSlot builds an inclusive-range item. Callers must ensure start < end;
// Encode re-validates this.
func RangeSlot(start, end *big.Int) SlotItem {
	return SlotItem{IsRange: true, Start: start, End: end}
}

// SlotEnd returns the inclusive end of the item's slot range (== Start for a
// single slot).
func (s SlotItem) SlotEnd() *big.Int {
	if s.IsRange {
		return s.End
	}
	return s.Start
}

// OwnershipGroup is one registration group, assigned to Bitcoin output
// vout = (group ordinal) + 1.
type OwnershipGroup struct {
	Items []SlotItem
}

// RegisterOwnership issues or transfers ownership of slot ranges within an
// existing collection.
type RegisterOwnership struct {
	CollectionHeight  uint64
	CollectionTxIndex uint32
	Groups            []OwnershipGroup
}

// Command implements Message.
func (RegisterOwnership) Command() Command { return CommandRegisterOwnership }

// Encode renders the variable-length body.
func (r RegisterOwnership) Encode() ([]byte, error) {
	if len(r.Groups) == 0 {
		return nil, fmt.Errorf("%w: 0", ErrInvalidGroupCount)
	}

	var out []byte

	heightBytes, err := EncodeVarInt96Uint64(r.CollectionHeight)
	if err != nil {
		return nil, fmt.Errorf("encode collection height: %w", err)
	}
	out = append(out, heightBytes...)

	txIndexBytes, err := EncodeVarInt96Uint64(uint64(r.CollectionTxIndex))
	if err != nil {
		return nil, fmt.Errorf("encode collection tx index: %w", err)
	}
	out = append(out, txIndexBytes...)

	groupCountBytes, err := EncodeVarInt96Uint64(uint64(len(r.Groups)))
	if err != nil {
		return nil, fmt.Errorf("encode group count: %w", err)
	}
	out = append(out, groupCountBytes...)

	for gi, group := range r.Groups {
		if len(group.Items) == 0 || len(group.Items) > 255 {
			return nil, fmt.Errorf("%w: group %d has %d items", ErrInvalidRangeCount, gi, len(group.Items))
		}
		out = append(out, byte(len(group.Items)))

		for _, item := range group.Items {
			if item.IsRange {
				if item.Start.Cmp(item.End) >= 0 {
					return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidSlotRange, item.Start, item.End)
				}
				startBytes, err := EncodeVarInt96(item.Start)
				if err != nil {
					return nil, fmt.Errorf("encode range start: %w", err)
				}
				endBytes, err := EncodeVarInt96(item.End)
				if err != nil {
					return nil, fmt.Errorf("encode range end: %w", err)
				}
				out = append(out, slotTagRange)
				out = append(out, startBytes...)
				out = append(out, endBytes...)
			} else {
				slotBytes, err := EncodeVarInt96(item.Start)
				if err != nil {
					return nil, fmt.Errorf("encode slot: %w", err)
				}
				out = append(out, slotTagSingle)
				out = append(out, slotBytes...)
			}
		}
	}

	return out, nil
}

// DecodeRegisterOwnership parses the body following the command tag.
func DecodeRegisterOwnership(body []byte) (RegisterOwnership, error) {
	cursor := 0

	height, n, err := DecodeVarInt96(body[cursor:])
	if err != nil {
		return RegisterOwnership{}, fmt.Errorf("decode collection height: %w", err)
	}
	cursor += n
	if !FitsUint64(height) {
		return RegisterOwnership{}, fmt.Errorf("%w: collection height overflows u64", ErrInvalidPayload)
	}

	txIndex, n, err := DecodeVarInt96(body[cursor:])
	if err != nil {
		return RegisterOwnership{}, fmt.Errorf("decode collection tx index: %w", err)
	}
	cursor += n
	if !FitsUint32(txIndex) {
		return RegisterOwnership{}, fmt.Errorf("%w: collection tx index overflows u32", ErrInvalidPayload)
	}

	groupCount, n, err := DecodeVarInt96(body[cursor:])
	if err != nil {
		return RegisterOwnership{}, fmt.Errorf("decode group count: %w", err)
	}
	cursor += n
	if groupCount.Sign() == 0 || !FitsUint64(groupCount) {
		return RegisterOwnership{}, fmt.Errorf("%w: %s", ErrInvalidGroupCount, groupCount)
	}

	groups := make([]OwnershipGroup, 0, groupCount.Uint64())
	for g := uint64(0); g < groupCount.Uint64(); g++ {
		if cursor >= len(body) {
			return RegisterOwnership{}, fmt.Errorf("%w: truncated before range_count of group %d", ErrInvalidPayload, g)
		}
		rangeCount := int(body[cursor])
		cursor++
		if rangeCount == 0 {
			return RegisterOwnership{}, fmt.Errorf("%w: group %d has 0 ranges", ErrInvalidRangeCount, g)
		}

		items := make([]SlotItem, 0, rangeCount)
		for i := 0; i < rangeCount; i++ {
			if cursor >= len(body) {
				return RegisterOwnership{}, fmt.Errorf("%w: truncated inside group %d item %d", ErrInvalidPayload, g, i)
			}
			tag := body[cursor]
			cursor++

			switch tag {
			case slotTagSingle:
				slot, n, err := DecodeVarInt96(body[cursor:])
				if err != nil {
					return RegisterOwnership{}, fmt.Errorf("decode single slot (group %d item %d): %w", g, i, err)
				}
				cursor += n
				items = append(items, SingleSlot(slot))
			case slotTagRange:
				start, n, err := DecodeVarInt96(body[cursor:])
				if err != nil {
					return RegisterOwnership{}, fmt.Errorf("decode range start (group %d item %d): %w", g, i, err)
				}
				cursor += n
				end, n, err := DecodeVarInt96(body[cursor:])
				if err != nil {
					return RegisterOwnership{}, fmt.Errorf("decode range end (group %d item %d): %w", g, i, err)
				}
				cursor += n
				if start.Cmp(end) >= 0 {
					return RegisterOwnership{}, fmt.Errorf("%w: start=%s end=%s (group %d item %d)",
						ErrInvalidSlotRange, start, end, g, i)
				}
				items = append(items, RangeSlot(start, end))
			default:
				return RegisterOwnership{}, fmt.Errorf("%w: unknown slot item tag 0x%02x", ErrInvalidPayload, tag)
			}
		}

		groups = append(groups, OwnershipGroup{Items: items})
	}

	if cursor != len(body) {
		return RegisterOwnership{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, len(body)-cursor)
	}

	return RegisterOwnership{
		CollectionHeight:  height.Uint64(),
		CollectionTxIndex: uint32(txIndex.Uint64()),
		Groups:            groups,
	}, nil
}
