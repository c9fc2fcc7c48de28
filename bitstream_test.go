package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitStreamBitRoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	w := NewBitStream(buf)
	bits := []bool{true, false, true, true, false, false, true, false, true, true, true, true, false, false, false, true}
	for _, b := range bits {
		require.NoError(t, w.PutBit(b))
	}
	out, err := w.Bytes()
	require.NoError(t, err)

	r := NewBitStream(out)
	for i, want := range bits {
		got, err := r.TakeBit()
		require.NoError(t, err, "bit %d", i)
		assert.Equal(t, want, got, "bit %d", i)
	}
}

func TestBitStreamByteAlignedFastPath(t *testing.T) {
	buf := []byte{0xAB, 0xCD}
	r := NewBitStream(buf)
	assert.True(t, r.IsByteAligned())
	b, err := r.TakeByteAligned()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)
	b, err = r.TakeByteAligned()
	require.NoError(t, err)
	assert.Equal(t, byte(0xCD), b)
	assert.True(t, r.AtEnd())
}

func TestBitStreamOutOfRange(t *testing.T) {
	buf := []byte{0xFF}
	r := NewBitStream(buf)
	_, err := r.TakeByteAligned()
	require.NoError(t, err)
	_, err = r.TakeBit()
	assert.ErrorIs(t, err, ErrBitStreamOutOfRange)
}

func TestBitStreamByteArrayAligned(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	r := NewBitStream(buf)
	got, err := r.TakeByteArrayAligned(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
	rest, err := r.TakeByteArrayAligned(-1)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, rest)
}

func TestBitStreamNotByteAligned(t *testing.T) {
	buf := make([]byte, 1)
	w := NewBitStream(buf)
	require.NoError(t, w.PutBit(true))
	_, err := w.Bytes()
	require.NoError(t, err) // Bytes() flushes even mid-byte

	r := NewBitStream([]byte{0})
	require.NoError(t, r.PutBit(false))
	_, err = r.TakeByteArrayAligned(1)
	assert.ErrorIs(t, err, ErrNotByteAligned)
}
