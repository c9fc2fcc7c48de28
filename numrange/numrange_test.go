package numrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndContains(t *testing.T) {
	s, err := Parse("1-3,5,7-")
	require.NoError(t, err)

	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(6))
	assert.True(t, s.Contains(7))
	assert.True(t, s.Contains(1000))
}

func TestParseEmptyMatchesNothing(t *testing.T) {
	s, err := Parse("")
	require.NoError(t, err)
	assert.False(t, s.Contains(0))
	assert.False(t, s.Contains(1))
}

func TestParseInvertedRangeErrors(t *testing.T) {
	_, err := Parse("5-1")
	assert.Error(t, err)
}

func TestParseOpenLowerBound(t *testing.T) {
	s, err := Parse("-3")
	require.NoError(t, err)
	assert.True(t, s.Contains(-100))
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
}
