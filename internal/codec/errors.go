package codec

import "errors"

// Sentinel errors for the wire codec. Wrapped with %w at each call site so
// callers can match with errors.Is while still getting a descriptive message.
var (
	ErrVarIntEmpty       = errors.New("varint96: empty input")
	ErrVarIntUnterminated = errors.New("varint96: unterminated encoding")
	ErrVarIntTooLong     = errors.New("varint96: encoding exceeds 14 bytes")
	ErrVarIntNonMinimal  = errors.New("varint96: non-minimal encoding")
	ErrVarIntOverflow    = errors.New("varint96: value exceeds 2^96-1")
	ErrVarIntOutOfRange  = errors.New("varint96: value does not fit in 96 bits")

	ErrScriptTooShort    = errors.New("codec: script too short to be a protocol envelope")
	ErrNotProtocolScript = errors.New("codec: not a protocol envelope")
	ErrInvalidPayload    = errors.New("codec: invalid payload")
	ErrInvalidLength     = errors.New("codec: invalid payload length")
	ErrUnknownCommand    = errors.New("codec: unknown command tag")
	ErrInvalidRebaseFlag = errors.New("codec: invalid rebaseable flag")
	ErrInvalidSlotNumber = errors.New("codec: invalid slot number")
	ErrInvalidSlotRange  = errors.New("codec: invalid slot range")
	ErrInvalidGroupCount = errors.New("codec: invalid group count")
	ErrInvalidRangeCount = errors.New("codec: invalid range count")
	ErrInvalidTokenBytes = errors.New("codec: invalid token byte length")
)
