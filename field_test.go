package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUIMSBFRoundTrip(t *testing.T) {
	cases := []struct {
		width int
		value uint64
	}{
		{1, 1}, {3, 5}, {8, 0xAB}, {13, 0x1F2A}, {16, 0xBEEF}, {33, 0x1FFFFFFFF}, {6, 0x3F},
	}
	for _, c := range cases {
		buf := make([]byte, 8)
		w := NewBitStream(buf)
		require.NoError(t, WriteUIMSBF(w, c.width, c.value))
		out, err := w.Bytes()
		require.NoError(t, err)

		r := NewBitStream(out)
		got, err := ReadUIMSBF(r, c.width)
		require.NoError(t, err)
		assert.Equal(t, c.value, got, "width=%d", c.width)
	}
}

func TestUIMSBFWriteOutOfRange(t *testing.T) {
	buf := make([]byte, 1)
	w := NewBitStream(buf)
	err := WriteUIMSBF(w, 4, 0x10) // doesn't fit in 4 bits
	assert.ErrorIs(t, err, ErrFieldValueOutOfRange)
}

func TestTCIMSBFRoundTripSigned(t *testing.T) {
	cases := []struct {
		width int
		value int64
	}{
		{8, -1}, {8, 127}, {8, -128}, {2, -2}, {2, 1},
	}
	for _, c := range cases {
		buf := make([]byte, 4)
		w := NewBitStream(buf)
		require.NoError(t, WriteTCIMSBF(w, c.width, c.value))
		out, err := w.Bytes()
		require.NoError(t, err)

		r := NewBitStream(out)
		got, err := ReadTCIMSBF(r, c.width)
		require.NoError(t, err)
		assert.Equal(t, c.value, got, "width=%d", c.width)
	}
}

func TestTCIMSBFBadSignExtension(t *testing.T) {
	buf := make([]byte, 1)
	w := NewBitStream(buf)
	err := WriteTCIMSBF(w, 4, 127) // doesn't fit (and isn't properly sign-extended) in 4 bits
	assert.ErrorIs(t, err, ErrFieldBadSignExtension)
}

func TestBSLBFOpaqueBits(t *testing.T) {
	buf := make([]byte, 1)
	w := NewBitStream(buf)
	require.NoError(t, WriteBSLBF(w, 5, 0x1f))
	require.NoError(t, WriteBSLBF(w, 3, 0x5))
	out, err := w.Bytes()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFD), out[0])
}
