package splitter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpegts-tools/tsfan"
	"github.com/mpegts-tools/tsfan/numrange"
)

func nullPacketResult(segment int, discontinuity bool, index int64) *mpegts.ReadResult {
	raw := make([]byte, mpegts.PacketSize)
	raw[0] = mpegts.SyncByte
	raw[1] = 0x1f
	raw[2] = 0xff
	raw[3] = 0x10
	return &mpegts.ReadResult{
		Packet:        &mpegts.Packet{Bytes: raw, Header: mpegts.PacketHeader{PID: mpegts.PIDNull}},
		PacketIndex:   index,
		ByteOffset:    index * int64(mpegts.PacketSize),
		Segment:       segment,
		Discontinuity: discontinuity,
	}
}

func TestSplitterByPacketCount(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.ts")

	s := New(Options{})
	require.NoError(t, s.SetOutputRequests([]OutputRequest{
		{Filename: out, Start: Start{Kind: StartPacket, Value: 1}, Length: Length{Kind: LengthPackets, Value: 2}},
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.HandlePacket(nullPacketResult(1, false, int64(i))))
	}
	require.NoError(t, s.Close())

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(2*mpegts.PacketSize), info.Size())
}

func TestSplitterByByteOffset(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.ts")

	s := New(Options{})
	require.NoError(t, s.SetOutputRequests([]OutputRequest{
		{Filename: out, Start: Start{Kind: StartOffset, Value: int64(mpegts.PacketSize)}, Length: Length{Kind: LengthPackets, Value: 1}},
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.HandlePacket(nullPacketResult(1, false, int64(i))))
	}
	require.NoError(t, s.Close())

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(mpegts.PacketSize), info.Size())
}

func TestSplitterDynamicTemplatePerSegment(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "segment-%d.ts")

	s := New(Options{})
	require.NoError(t, s.SetOutputTemplates([]OutputTemplate{
		{Format: pattern},
	}))

	require.NoError(t, s.HandlePacket(nullPacketResult(1, true, 0)))
	require.NoError(t, s.HandlePacket(nullPacketResult(1, false, 1)))
	require.NoError(t, s.HandlePacket(nullPacketResult(2, true, 2)))
	require.NoError(t, s.HandlePacket(nullPacketResult(2, false, 3)))
	require.NoError(t, s.Close())

	seg1 := filepath.Join(dir, "segment-1.ts")
	info, err := os.Stat(seg1)
	require.NoError(t, err)
	assert.Equal(t, int64(2*mpegts.PacketSize), info.Size())
}

func TestSplitterTemplateFilterExcludesSegment(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "segment-%d.ts")

	filter, err := numrange.Parse("2-")
	require.NoError(t, err)

	s := New(Options{})
	require.NoError(t, s.SetOutputTemplates([]OutputTemplate{
		{Format: pattern, SegmentFilter: filter},
	}))

	require.NoError(t, s.HandlePacket(nullPacketResult(1, true, 0)))
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "segment-1.ts"))
	assert.True(t, os.IsNotExist(err))
}

func TestOutputRequestValidation(t *testing.T) {
	s := New(Options{})
	err := s.SetOutputRequests([]OutputRequest{
		{Filename: "x", Start: Start{Kind: StartOffset, Value: -1}},
	})
	assert.Error(t, err)
}

func TestOutputTemplateValidation(t *testing.T) {
	s := New(Options{})
	err := s.SetOutputTemplates([]OutputTemplate{{Format: ""}})
	assert.Error(t, err)
}
