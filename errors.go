package mpegts

import "errors"

// Sentinel errors returned by the codec and framed-reader layers.
var (
	ErrPacketMustStartWithASyncByte = errors.New("mpegts: packet must start with a sync byte")
	ErrSingleSyncByte               = errors.New("mpegts: only one sync byte detected while autodetecting packet size")
	ErrNoSyncByteFound              = errors.New("mpegts: no sync byte found in input")
	ErrResyncFailed                 = errors.New("mpegts: failed to resynchronize on a sync byte")
	ErrBitStreamDirty               = errors.New("mpegts: caller forgot to flush the bit stream")
	ErrBitStreamOutOfRange          = errors.New("mpegts: bit stream offset out of range")
	ErrNotByteAligned               = errors.New("mpegts: bit stream is not byte-aligned")
	ErrNotEnoughBytes               = errors.New("mpegts: not enough bytes available in bit stream")
	ErrFieldValueOutOfRange         = errors.New("mpegts: field value out of range for declared width")
	ErrFieldBadSignExtension        = errors.New("mpegts: field value has no valid sign extension for declared width")

	// ErrReservedScramblingControl and ErrReservedAdaptationFieldControl are
	// spec.md §7's PacketParse.ReservedEnum: transport-scrambling-control and
	// adaptation-field-control are both 4-value enums with one reserved value.
	ErrReservedScramblingControl      = errors.New("mpegts: transport_scrambling_control is the reserved value")
	ErrReservedAdaptationFieldControl = errors.New("mpegts: adaptation_field_control is the reserved value")
	// ErrTrailingBits is PacketParse.TrailingBits: the bit stream had leftover
	// bits after a packet was fully parsed.
	ErrTrailingBits = errors.New("mpegts: bit stream not exhausted after parsing packet")
)
