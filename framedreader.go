package mpegts

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astikit"
)

// Recognized framing prefixes in front of each basic 188-byte packet.
// 0: no prefix. 4: a 4-byte timecode. 16/20: FEC parity suffixes appended
// after the basic packet, detected the same way a prefix would be.
const (
	prefixNone     = 0
	prefixTimecode = 4
	prefixFEC16    = 16
	prefixFEC20    = 20
)

// resync tuning, named here so callers can override via FramedReaderOptions.
const (
	defaultResyncErrorThreshold = 16
	defaultResyncPassCap        = PacketSize + 20
)

// FramedReaderOptions configures a FramedReader.
type FramedReaderOptions struct {
	// PacketSize, if non-zero, disables autodetection.
	PacketSize int
	// ResyncErrorThreshold is how many consecutive parse failures trigger a
	// sync-byte resync scan. Zero uses the default of 16.
	ResyncErrorThreshold int
	// ResyncPassCap bounds how many resync scan attempts are made before
	// giving up with ErrResyncFailed. Zero uses the default of PacketSize+20.
	ResyncPassCap int
	Logger        astikit.StdLogger
}

// FramedReader reads whole basic-size TS packets out of a framed byte
// stream, auto-detecting a 0/4/16/20-byte prefix/suffix and re-synchronizing
// on the sync byte after a run of parse failures.
type FramedReader struct {
	r          *bufio.Reader
	packetSize int // 0 until detected: PacketSize + prefix/suffix width
	errCount   int
	opts       FramedReaderOptions
	logger     Logger
	buf        []byte
}

// NewFramedReader wraps r. If opts.PacketSize is zero the framing is
// autodetected from the first packets read.
func NewFramedReader(r io.Reader, opts FramedReaderOptions) *FramedReader {
	if opts.ResyncErrorThreshold == 0 {
		opts.ResyncErrorThreshold = defaultResyncErrorThreshold
	}
	if opts.ResyncPassCap == 0 {
		opts.ResyncPassCap = defaultResyncPassCap
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return &FramedReader{
		r:          br,
		packetSize: opts.PacketSize,
		opts:       opts,
		logger:     AdaptLogger(opts.Logger),
	}
}

// ReadPacket returns the next basic-size packet, with any timecode/FEC
// framing stripped. io.EOF is returned once the underlying reader is
// exhausted cleanly.
func (f *FramedReader) ReadPacket() (*Packet, error) {
	for {
		if f.packetSize == 0 {
			if err := f.detectFraming(); err != nil {
				return nil, err
			}
		}

		if f.buf == nil || len(f.buf) != f.packetSize {
			f.buf = make([]byte, f.packetSize)
		}
		if _, err := io.ReadFull(f.r, f.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("mpegts: reading %d bytes: %w", f.packetSize, err)
		}

		basic := stripFraming(f.buf, f.packetSize)
		p, err := ParsePacket(basic)
		if err != nil {
			f.errCount++
			f.logger.Warnf("mpegts: discarding packet (%d consecutive errors): %v", f.errCount, err)
			if f.errCount >= f.opts.ResyncErrorThreshold {
				if rerr := f.resync(); rerr != nil {
					return nil, rerr
				}
				f.errCount = 0
				f.packetSize = 0 // force re-detection after resync
			}
			continue
		}
		f.errCount = 0
		return p, nil
	}
}

// stripFraming removes a leading timecode prefix or trailing FEC suffix,
// leaving exactly the basic 188-byte packet.
func stripFraming(buf []byte, packetSize int) []byte {
	switch packetSize - PacketSize {
	case prefixNone:
		return buf
	case prefixTimecode:
		return buf[prefixTimecode:]
	case prefixFEC16, prefixFEC20:
		return buf[:PacketSize]
	default:
		return buf[:PacketSize]
	}
}

// detectFraming peeks ahead for a second sync byte to work out the prefix
// width, mirroring the bootstrap logic in the stream server's input loop:
// try no prefix first (second sync byte at offset 188), then a 4-byte
// timecode prefix (sync byte not at offset 0, but at offset 4), then FEC
// suffixes of 16 or 20 bytes (second sync byte at 188+16 or 188+20).
func (f *FramedReader) detectFraming() error {
	const peekLen = PacketSize + prefixFEC20 + 1
	b, err := f.r.Peek(peekLen)
	if err != nil && len(b) == 0 {
		return fmt.Errorf("mpegts: peeking %d bytes to detect framing: %w", peekLen, err)
	}

	it := NewNoAllocBytesIterator(b)
	first, ierr := it.NextByte()
	if ierr != nil {
		return ErrNoSyncByteFound
	}

	if first == SyncByte {
		if size, ok := probeFramingWidth(b); ok {
			f.packetSize = size
			return nil
		}
		// Only one sync byte visible in the peek window: assume no framing
		// and let packet-level resync correct a wrong guess.
		f.packetSize = PacketSize
		return nil
	}

	if len(b) > prefixTimecode && b[prefixTimecode] == SyncByte {
		f.packetSize = PacketSize + prefixTimecode
		return nil
	}

	return ErrNoSyncByteFound
}

// probeFramingWidth checks, given a window b whose first byte is already a
// sync byte, whether a second sync byte lines up at one of the recognized
// prefix/suffix widths (0, 16, 20 bytes past the basic packet).
func probeFramingWidth(b []byte) (int, bool) {
	for _, width := range [...]int{prefixNone, prefixFEC16, prefixFEC20} {
		if off := PacketSize + width; len(b) > off && b[off] == SyncByte {
			return PacketSize + width, true
		}
	}
	return 0, false
}

// resync discards bytes until a sync byte lines up with a plausible packet
// boundary, bounded by ResyncPassCap attempts. Per spec.md §4.4, finding a
// single 0x47 is not enough to declare sync (that byte value occurs often
// inside ordinary payload): a candidate is accepted only when
// probeFramingWidth finds a second sync byte 188, 204 or 208 bytes after it,
// or when fewer than 189 bytes are left to peek. A second sync byte 192 bytes
// on (4-byte timecode framing) is not probed, so such a candidate is not
// accepted.
func (f *FramedReader) resync() error {
	const peekLen = PacketSize + prefixFEC20 + 1
	for pass := 0; pass < f.opts.ResyncPassCap; pass++ {
		b, err := f.r.Peek(peekLen)
		if err != nil && len(b) == 0 {
			return fmt.Errorf("mpegts: resync: %w", err)
		}
		if len(b) > 0 && b[0] == SyncByte {
			if _, ok := probeFramingWidth(b); ok || len(b) <= PacketSize {
				f.logger.Infof("mpegts: resynchronized after %d bytes discarded", pass)
				return nil
			}
		}
		if _, err := f.r.Discard(1); err != nil {
			return fmt.Errorf("mpegts: resync: %w", err)
		}
	}
	return ErrResyncFailed
}
