package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacketRejectsBadSyncByte(t *testing.T) {
	raw := make([]byte, PacketSize)
	_, err := ParsePacket(raw)
	assert.ErrorIs(t, err, ErrPacketMustStartWithASyncByte)
}

func TestParsePacketNullPacket(t *testing.T) {
	// Hex 47 1F FF followed by arbitrary trailing bytes: a null packet's
	// remaining bytes are don't-cares and must never be interpreted, so this
	// deliberately uses a byte value (0xAB) that would mis-decode as a
	// structured adaptation field/payload if the PID==0x1FFF short-circuit
	// were missing.
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[1] = 0x1f // PID high bits: all ones
	raw[2] = 0xff // PID low bits: all ones -> PID 0x1FFF
	for i := 3; i < PacketSize; i++ {
		raw[i] = 0xab
	}

	p, err := ParsePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, PIDNull, p.Header.PID)
	assert.False(t, p.Header.TransportErrorIndicator)
	assert.False(t, p.Header.PayloadUnitStartIndicator)
	assert.False(t, p.Header.TransportPriority)
	assert.False(t, p.Header.HasAdaptationField)
	assert.False(t, p.Header.HasPayload)
	assert.Nil(t, p.AdaptationField)
	assert.Nil(t, p.Payload)
}

func TestGeneratePacketNullPacket(t *testing.T) {
	p := &Packet{Header: PacketHeader{PID: PIDNull}}
	raw, err := GeneratePacket(p)
	require.NoError(t, err)

	want := make([]byte, PacketSize)
	want[0] = SyncByte
	want[1] = 0x1f
	want[2] = 0xff
	assert.Equal(t, want, raw, "a null packet's bytes after PID must stay zero")
}

func TestParsePacketRejectsReservedScramblingControl(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[1] = 0x00
	raw[2] = 0x01 // PID 1, not null
	raw[3] = 0x50 // TSC=01 (reserved), AFC=01, CC=0

	_, err := ParsePacket(raw)
	assert.ErrorIs(t, err, ErrReservedScramblingControl)
}

func TestParsePacketRejectsReservedAdaptationFieldControl(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[1] = 0x00
	raw[2] = 0x01 // PID 1, not null
	raw[3] = 0x00 // TSC=00, AFC=00 (reserved)

	_, err := ParsePacket(raw)
	assert.ErrorIs(t, err, ErrReservedAdaptationFieldControl)
}

func TestParsePacketRejectsTrailingBits(t *testing.T) {
	raw := make([]byte, PacketSize)
	raw[0] = SyncByte
	raw[1] = 0x00
	raw[2] = 0x01 // PID 1, not null
	raw[3] = 0x20 // TSC=00, AFC=10 (adaptation field only), CC=0
	raw[4] = 0x01 // adaptation field length 1 (just the flags byte, all zero)
	// The packet declares an adaptation-field-only packet whose adaptation
	// field doesn't fill the remaining 183 bytes, so bytes are left over
	// after parsing, which must be rejected rather than silently dropped.

	_, err := ParsePacket(raw)
	assert.ErrorIs(t, err, ErrTrailingBits)
}

func TestPacketHeaderRoundTrip(t *testing.T) {
	p := &Packet{
		Header: PacketHeader{
			TransportErrorIndicator:   false,
			PayloadUnitStartIndicator: true,
			TransportPriority:         true,
			PID:                       0x1234 & 0x1fff,
			HasPayload:                true,
			ContinuityCounter:         7,
		},
		Payload: make([]byte, PacketSize-4),
	}
	for i := range p.Payload {
		p.Payload[i] = byte(i)
	}

	raw, err := GeneratePacket(p)
	require.NoError(t, err)
	require.Len(t, raw, PacketSize)

	got, err := ParsePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Header.PID, got.Header.PID)
	assert.Equal(t, p.Header.PayloadUnitStartIndicator, got.Header.PayloadUnitStartIndicator)
	assert.Equal(t, p.Header.TransportPriority, got.Header.TransportPriority)
	assert.Equal(t, p.Header.ContinuityCounter, got.Header.ContinuityCounter)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestAdaptationFieldPCRRoundTrip(t *testing.T) {
	pcr := NewClockReference(12345678, 42)
	af := &PacketAdaptationField{
		DiscontinuityIndicator: true,
		RandomAccessIndicator:  true,
		HasPCR:                 true,
		PCR:                    &pcr,
	}
	p := &Packet{
		Header: PacketHeader{
			PID:                0x100,
			HasAdaptationField: true,
			HasPayload:         true,
			ContinuityCounter:  3,
		},
		AdaptationField: af,
		Payload:         make([]byte, PacketSize-4-1-1-6),
	}

	raw, err := GeneratePacket(p)
	require.NoError(t, err)

	got, err := ParsePacket(raw)
	require.NoError(t, err)
	require.NotNil(t, got.AdaptationField)
	require.NotNil(t, got.AdaptationField.PCR)
	assert.Equal(t, pcr.Base, got.AdaptationField.PCR.Base)
	assert.Equal(t, pcr.Extension, got.AdaptationField.PCR.Extension)
	assert.True(t, got.AdaptationField.DiscontinuityIndicator)
	assert.True(t, got.AdaptationField.RandomAccessIndicator)
}

func TestAdaptationFieldSpliceCountdownSigned(t *testing.T) {
	af := &PacketAdaptationField{
		HasSplicingCountdown: true,
		SpliceCountdown:      -5,
	}
	p := &Packet{
		Header: PacketHeader{
			PID:                0x200,
			HasAdaptationField: true,
			HasPayload:         true,
		},
		AdaptationField: af,
		Payload:         make([]byte, PacketSize-4-1-1-1),
	}
	raw, err := GeneratePacket(p)
	require.NoError(t, err)
	got, err := ParsePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, int8(-5), got.AdaptationField.SpliceCountdown)
}
