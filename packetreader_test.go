package mpegts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packetWithPCR(pcrValue int64) []byte {
	pcr := NewClockReference(pcrValue/pcrExtensionMax, pcrValue%pcrExtensionMax)
	af := &PacketAdaptationField{HasPCR: true, PCR: &pcr}
	p := &Packet{
		Header: PacketHeader{
			PID:                0x100,
			HasAdaptationField: true,
			HasPayload:         true,
		},
		AdaptationField: af,
		Payload:         make([]byte, PacketSize-4-1-1-6),
	}
	raw, err := GeneratePacket(p)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestPacketReaderDetectsDiscontinuity(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(packetWithPCR(27000000))
	buf.Write(packetWithPCR(27000000 + pcrExtensionMax*100)) // small forward step, same segment
	buf.Write(packetWithPCR(1000))                           // rewind: new segment

	fr := NewFramedReader(&buf, FramedReaderOptions{PacketSize: PacketSize})
	pr := NewPacketReader(fr)

	r1, err := pr.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Segment)
	assert.False(t, r1.Discontinuity)

	r2, err := pr.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Segment)
	assert.False(t, r2.Discontinuity)

	r3, err := pr.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, r3.Segment)
	assert.True(t, r3.Discontinuity)
}
