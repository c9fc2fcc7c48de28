package humanreadable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestByteCount(t *testing.T) {
	assert.Equal(t, "512 B", ByteCount(512))
	assert.Equal(t, "1.5 KiB", ByteCount(1536))
	assert.Equal(t, "2.0 MiB", ByteCount(2*1024*1024))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "45s", Duration(45*time.Second))
	assert.Equal(t, "1m05s", Duration(65*time.Second))
	assert.Equal(t, "1h00m01s", Duration(time.Hour+time.Second))
}
