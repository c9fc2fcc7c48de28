package mpegts

// PacketReader layers PCR discontinuity detection and segment numbering on
// top of a FramedReader. A discontinuity segment is a run of packets whose
// PCR values increase monotonically without a gap or rewind.
type PacketReader struct {
	fr *FramedReader

	havePCR      bool
	lastPCRValue int64
	segment      int
	packetIndex  int64
	byteOffset   int64
}

// NewPacketReader wraps fr. Segment numbering starts at 1 on the first
// packet read.
func NewPacketReader(fr *FramedReader) *PacketReader {
	return &PacketReader{fr: fr, segment: 1}
}

// ReadResult bundles a decoded packet with its position and segment metadata.
type ReadResult struct {
	Packet        *Packet
	PacketIndex   int64 // 0-based index of this packet: the count of packets returned before it
	ByteOffset    int64 // byte offset of this packet within the framed stream's basic-packet payloads
	Segment       int   // 1-based discontinuity segment number
	Discontinuity bool  // true if this packet started a new segment
}

// Read returns the next packet, or io.EOF when the underlying stream ends cleanly.
func (pr *PacketReader) Read() (*ReadResult, error) {
	p, err := pr.fr.ReadPacket()
	if err != nil {
		return nil, err
	}

	res := &ReadResult{
		Packet:      p,
		PacketIndex: pr.packetIndex,
		ByteOffset:  pr.byteOffset,
		Segment:     pr.segment,
	}

	if p.Header.PID != PIDNull && p.AdaptationField != nil && p.AdaptationField.HasPCR && p.AdaptationField.PCR != nil {
		value := p.AdaptationField.PCR.Value()
		if pr.havePCR && pcrIsDiscontinuous(pr.lastPCRValue, value) {
			pr.segment++
			res.Segment = pr.segment
			res.Discontinuity = true
		}
		pr.lastPCRValue = value
		pr.havePCR = true
	}

	pr.packetIndex++
	pr.byteOffset += int64(PacketSize)
	return res, nil
}

// pcrIsDiscontinuous mirrors the stream server's pacing check: a gap of more
// than roughly one second (90000*300 ticks) forward, or any rewind, counts
// as a discontinuity.
func pcrIsDiscontinuous(last, current int64) bool {
	const maxForwardGapTicks = int64(pcrBaseFrequencyHz) * pcrExtensionMax // ~1 second, in 27MHz ticks
	if current < last {
		return true
	}
	return current-last > maxForwardGapTicks
}

// PIDNull is the PID reserved for stuffing/null packets.
const PIDNull uint16 = 0x1fff
