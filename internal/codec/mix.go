package codec

import (
	"fmt"
	"math/big"
	"sort"
)

// MixRange is a half-open index range [Start, End) into the logical token
// index space formed by concatenating a Mix transaction's input slot ranges.
type MixRange struct {
	Start *big.Int
	End   *big.Int
}

// MixOutput is one output slot of a Mix transaction: either a set of
// explicit half-open ranges, or the single complement output (IsComplement
// true, Ranges empty) that receives every index not explicitly claimed.
type MixOutput struct {
	IsComplement bool
	Ranges       []MixRange
}

// Mix rewraps ownership across a transaction's inputs into its outputs,
// optionally reshuffling slot ranges between outputs.
type Mix struct {
	Outputs []MixOutput
}

// Command implements Message.
func (Mix) Command() Command { return CommandMix }

// Encode renders the variable-length body.
func (m Mix) Encode() ([]byte, error) {
	if err := m.ValidateBasic(); err != nil {
		return nil, err
	}

	var out []byte

	countBytes, err := EncodeVarInt96Uint64(uint64(len(m.Outputs)))
	if err != nil {
		return nil, fmt.Errorf("encode output count: %w", err)
	}
	out = append(out, countBytes...)

	for oi, output := range m.Outputs {
		if output.IsComplement {
			zero, _ := EncodeVarInt96Uint64(0)
			out = append(out, zero...)
			continue
		}

		rangeCountBytes, err := EncodeVarInt96Uint64(uint64(len(output.Ranges)))
		if err != nil {
			return nil, fmt.Errorf("encode range count for output %d: %w", oi, err)
		}
		out = append(out, rangeCountBytes...)

		for ri, r := range output.Ranges {
			if r.Start.Cmp(r.End) >= 0 {
				return nil, fmt.Errorf("%w: output %d range %d start=%s end=%s",
					ErrInvalidSlotRange, oi, ri, r.Start, r.End)
			}
			startBytes, err := EncodeVarInt96(r.Start)
			if err != nil {
				return nil, fmt.Errorf("encode range start: %w", err)
			}
			endBytes, err := EncodeVarInt96(r.End)
			if err != nil {
				return nil, fmt.Errorf("encode range end: %w", err)
			}
			out = append(out, startBytes...)
			out = append(out, endBytes...)
		}
	}

	return out, nil
}

// DecodeMix parses the body following the command tag.
func DecodeMix(body []byte) (Mix, error) {
	cursor := 0

	outputCount, n, err := DecodeVarInt96(body[cursor:])
	if err != nil {
		return Mix{}, fmt.Errorf("decode output count: %w", err)
	}
	cursor += n
	if !FitsUint64(outputCount) || outputCount.Uint64() < 2 {
		return Mix{}, fmt.Errorf("%w: output_count=%s, must be >= 2", ErrInvalidPayload, outputCount)
	}

	outputs := make([]MixOutput, 0, outputCount.Uint64())
	for o := uint64(0); o < outputCount.Uint64(); o++ {
		rangeCount, n, err := DecodeVarInt96(body[cursor:])
		if err != nil {
			return Mix{}, fmt.Errorf("decode range count for output %d: %w", o, err)
		}
		cursor += n

		if rangeCount.Sign() == 0 {
			outputs = append(outputs, MixOutput{IsComplement: true})
			continue
		}
		if !FitsUint64(rangeCount) {
			return Mix{}, fmt.Errorf("%w: output %d range_count=%s", ErrInvalidRangeCount, o, rangeCount)
		}

		ranges := make([]MixRange, 0, rangeCount.Uint64())
		for i := uint64(0); i < rangeCount.Uint64(); i++ {
			start, n, err := DecodeVarInt96(body[cursor:])
			if err != nil {
				return Mix{}, fmt.Errorf("decode range start (output %d range %d): %w", o, i, err)
			}
			cursor += n
			end, n, err := DecodeVarInt96(body[cursor:])
			if err != nil {
				return Mix{}, fmt.Errorf("decode range end (output %d range %d): %w", o, i, err)
			}
			cursor += n
			if start.Cmp(end) >= 0 {
				return Mix{}, fmt.Errorf("%w: output %d range %d start=%s end=%s",
					ErrInvalidSlotRange, o, i, start, end)
			}
			ranges = append(ranges, MixRange{Start: start, End: end})
		}

		outputs = append(outputs, MixOutput{Ranges: ranges})
	}

	if cursor != len(body) {
		return Mix{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, len(body)-cursor)
	}

	mix := Mix{Outputs: outputs}
	if err := mix.ValidateBasic(); err != nil {
		return Mix{}, err
	}
	return mix, nil
}

// ValidateBasic checks the shape rules that don't require knowledge of the
// actual token count: >= 2 outputs, exactly one complement, and pairwise
// non-overlapping explicit ranges once sorted.
func (m Mix) ValidateBasic() error {
	if len(m.Outputs) < 2 {
		return fmt.Errorf("%w: %d outputs, need >= 2", ErrInvalidPayload, len(m.Outputs))
	}

	complementCount := 0
	var sorted []MixRange
	for _, o := range m.Outputs {
		if o.IsComplement {
			complementCount++
			continue
		}
		sorted = append(sorted, o.Ranges...)
	}
	if complementCount != 1 {
		return fmt.Errorf("%w: expected exactly one complement output, got %d", ErrInvalidPayload, complementCount)
	}

	sort.Slice(sorted, func(i, j int) bool {
		c := sorted[i].Start.Cmp(sorted[j].Start)
		if c != 0 {
			return c < 0
		}
		return sorted[i].End.Cmp(sorted[j].End) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start.Cmp(sorted[i-1].End) < 0 {
			return fmt.Errorf("%w: overlapping ranges [%s,%s) and [%s,%s)",
				ErrInvalidSlotRange, sorted[i-1].Start, sorted[i-1].End, sorted[i].Start, sorted[i].End)
		}
	}

	return nil
}

// MaxExplicitEnd returns the largest explicit range end across all outputs,
// or nil if there are no explicit ranges.
func (m Mix) MaxExplicitEnd() *big.Int {
	var max *big.Int
	for _, o := range m.Outputs {
		for _, r := range o.Ranges {
			if max == nil || r.End.Cmp(max) > 0 {
				max = r.End
			}
		}
	}
	return max
}

// ValidateTokenCount checks the payload's explicit ranges fit within the
// logical index space formed by totalTokens input slots.
func (m Mix) ValidateTokenCount(totalTokens *big.Int) error {
	maxEnd := m.MaxExplicitEnd()
	if maxEnd == nil {
		return nil
	}
	if maxEnd.Cmp(totalTokens) > 0 {
		return fmt.Errorf("%w: max explicit end %s exceeds total token count %s",
			ErrInvalidSlotRange, maxEnd, totalTokens)
	}
	return nil
}
