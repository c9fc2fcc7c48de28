package mpegts

import "time"

// clock frequencies, per ISO/IEC 13818-1 2.4.2.1.
const (
	pcrBaseFrequencyHz      = 90000
	pcrExtensionFrequencyHz = 27000000
	pcrExtensionMax         = 300 // extension rolls base over every 300 ticks
)

// ClockReference is a 42-bit Program Clock Reference (or Original PCR): a
// 33-bit base at 90kHz plus a 9-bit extension at 27MHz, together giving a
// 27MHz-resolution timestamp.
type ClockReference struct {
	Base      int64 // 33 bits, 90kHz
	Extension int64 // 9 bits, 27MHz
}

// NewClockReference builds a ClockReference from its base/extension parts.
func NewClockReference(base, extension int64) ClockReference {
	return ClockReference{Base: base, Extension: extension}
}

// Value returns the full 42-bit clock value at 27MHz resolution.
func (c ClockReference) Value() int64 {
	return c.Base*pcrExtensionMax + c.Extension
}

// Duration converts the clock reference to a time.Duration since an
// unspecified epoch (i.e. a relative stream-time value).
func (c ClockReference) Duration() time.Duration {
	return time.Duration(c.Base*1e9/pcrBaseFrequencyHz) + time.Duration(c.Extension*1e9/pcrExtensionFrequencyHz)
}

// Seconds returns the clock reference as a floating-point second count,
// matching the pacing arithmetic in the stream server.
func (c ClockReference) Seconds() float64 {
	return float64(c.Value()) / pcrExtensionFrequencyHz
}
