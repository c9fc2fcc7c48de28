package mpegts

import "fmt"

// PacketSize is the size in bytes of a basic MPEG-TS packet, with no
// timecode or FEC prefix/suffix.
const PacketSize = 188

// SyncByte is the fixed first byte of every TS packet.
const SyncByte = 0x47

// Transport scrambling control values (adaptation_field_control siblings).
const (
	ScramblingControlNotScrambled         = 0
	ScramblingControlReservedForFutureUse = 1
	ScramblingControlScrambledWithEvenKey = 2
	ScramblingControlScrambledWithOddKey  = 3
)

// Packet is a single 188-byte transport stream packet.
type Packet struct {
	Header          PacketHeader
	AdaptationField *PacketAdaptationField
	Payload         []byte // payload content only, nil if HasPayload is false
	Bytes           []byte // the whole basic 188-byte packet, as parsed
}

// PacketHeader is the fixed 4-byte TS packet header.
type PacketHeader struct {
	TransportErrorIndicator    bool
	PayloadUnitStartIndicator  bool
	TransportPriority          bool
	PID                        uint16 // 13 bits
	TransportScramblingControl uint8  // 2 bits
	HasAdaptationField         bool
	HasPayload                 bool
	ContinuityCounter          uint8 // 4 bits, 0x0-0xF
}

// PacketAdaptationField carries timing, discontinuity and stuffing data.
type PacketAdaptationField struct {
	Length                            int
	DiscontinuityIndicator            bool
	RandomAccessIndicator             bool
	ElementaryStreamPriorityIndicator bool
	HasPCR                            bool
	PCR                               *ClockReference
	HasOPCR                           bool
	OPCR                              *ClockReference
	HasSplicingCountdown              bool
	SpliceCountdown                   int8
	HasTransportPrivateData           bool
	TransportPrivateData              []byte
	HasAdaptationExtensionField       bool
	AdaptationExtensionField          *PacketAdaptationExtensionField
	StuffingBytes                     int // bytes of 0xFF padding after the above fields
}

// PacketAdaptationExtensionField is the optional nested extension. Its
// contents (legal-time-window, piecewise-rate, seamless-splice) are kept
// opaque: this toolkit round-trips them verbatim rather than decoding them,
// since nothing downstream of the packet codec needs their sub-fields.
type PacketAdaptationExtensionField struct {
	Length int
	Bytes  []byte // Length bytes following the length byte, verbatim
}

// ParsePacket decodes a single basic-size TS packet from raw, which must be
// exactly PacketSize bytes (any timecode/FEC prefix must already be stripped
// by the caller — see FramedReader).
func ParsePacket(raw []byte) (*Packet, error) {
	if len(raw) != PacketSize {
		return nil, fmt.Errorf("mpegts: packet must be %d bytes, got %d", PacketSize, len(raw))
	}
	if raw[0] != SyncByte {
		return nil, ErrPacketMustStartWithASyncByte
	}

	bs := NewBitStream(raw)
	if _, err := bs.TakeByteAligned(); err != nil { // sync byte, already checked
		return nil, err
	}

	hdr, err := parsePacketHeaderPID(bs)
	if err != nil {
		return nil, fmt.Errorf("mpegts: parsing packet header: %w", err)
	}

	// A null packet (PID 0x1FFF) is a success as soon as PID is known; the
	// remaining 185 bytes are don't-cares and must not be interpreted.
	if hdr.PID == PIDNull {
		return &Packet{Header: hdr, Bytes: raw}, nil
	}

	if err := parsePacketHeaderRest(bs, &hdr); err != nil {
		return nil, fmt.Errorf("mpegts: parsing packet header: %w", err)
	}

	p := &Packet{Header: hdr, Bytes: raw}

	if hdr.HasAdaptationField {
		af, err := parsePacketAdaptationField(bs)
		if err != nil {
			return nil, fmt.Errorf("mpegts: parsing adaptation field: %w", err)
		}
		p.AdaptationField = af
	}

	if hdr.HasPayload {
		payload, err := bs.TakeByteArrayAligned(-1)
		if err != nil {
			return nil, fmt.Errorf("mpegts: reading payload: %w", err)
		}
		p.Payload = payload
	}

	if !bs.AtEnd() {
		return nil, ErrTrailingBits
	}

	return p, nil
}

// parsePacketHeaderPID reads the header bits needed to tell a null packet
// apart from a structured one: the three flags and the 13-bit PID.
func parsePacketHeaderPID(bs *BitStream) (PacketHeader, error) {
	var h PacketHeader

	tei, err := bs.TakeBit()
	if err != nil {
		return h, err
	}
	pusi, err := bs.TakeBit()
	if err != nil {
		return h, err
	}
	tp, err := bs.TakeBit()
	if err != nil {
		return h, err
	}
	pid, err := ReadUIMSBF(bs, 13)
	if err != nil {
		return h, err
	}

	h.TransportErrorIndicator = tei
	h.PayloadUnitStartIndicator = pusi
	h.TransportPriority = tp
	h.PID = uint16(pid)
	return h, nil
}

// parsePacketHeaderRest reads transport-scrambling-control,
// adaptation-field-control and continuity-counter, rejecting either enum's
// reserved value (spec.md §7 PacketParse.ReservedEnum).
func parsePacketHeaderRest(bs *BitStream, h *PacketHeader) error {
	tsc, err := ReadUIMSBF(bs, 2)
	if err != nil {
		return err
	}
	if tsc == ScramblingControlReservedForFutureUse {
		return ErrReservedScramblingControl
	}
	afc, err := ReadUIMSBF(bs, 2)
	if err != nil {
		return err
	}
	if afc == 0 {
		return ErrReservedAdaptationFieldControl
	}
	cc, err := ReadUIMSBF(bs, 4)
	if err != nil {
		return err
	}

	h.TransportScramblingControl = uint8(tsc)
	h.HasAdaptationField = afc&0x2 != 0
	h.HasPayload = afc&0x1 != 0
	h.ContinuityCounter = uint8(cc)
	return nil
}

func parsePacketAdaptationField(bs *BitStream) (*PacketAdaptationField, error) {
	a := &PacketAdaptationField{}

	length, err := bs.TakeByteAligned()
	if err != nil {
		return nil, err
	}
	a.Length = int(length)
	if a.Length == 0 {
		return a, nil
	}

	fieldsStart := bs.OffsetBytes()

	di, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	rai, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	espi, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	hasPCR, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	hasOPCR, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	hasSplice, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	hasTPD, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	hasExt, err := bs.TakeBit()
	if err != nil {
		return nil, err
	}
	a.DiscontinuityIndicator = di
	a.RandomAccessIndicator = rai
	a.ElementaryStreamPriorityIndicator = espi
	a.HasPCR = hasPCR
	a.HasOPCR = hasOPCR
	a.HasSplicingCountdown = hasSplice
	a.HasTransportPrivateData = hasTPD
	a.HasAdaptationExtensionField = hasExt

	if a.HasPCR {
		pcr, err := readPCR(bs)
		if err != nil {
			return nil, err
		}
		a.PCR = &pcr
	}
	if a.HasOPCR {
		opcr, err := readPCR(bs)
		if err != nil {
			return nil, err
		}
		a.OPCR = &opcr
	}
	if a.HasSplicingCountdown {
		sc, err := ReadTCIMSBF(bs, 8)
		if err != nil {
			return nil, err
		}
		a.SpliceCountdown = int8(sc)
	}
	if a.HasTransportPrivateData {
		tpdLen, err := bs.TakeByteAligned()
		if err != nil {
			return nil, err
		}
		if tpdLen > 0 {
			tpd, err := bs.TakeByteArrayAligned(int(tpdLen))
			if err != nil {
				return nil, err
			}
			a.TransportPrivateData = tpd
		}
	}
	if a.HasAdaptationExtensionField {
		ext, err := parseAdaptationExtensionField(bs)
		if err != nil {
			return nil, err
		}
		a.AdaptationExtensionField = ext
	}

	consumed := bs.OffsetBytes() - fieldsStart
	a.StuffingBytes = a.Length - consumed
	if a.StuffingBytes > 0 {
		if _, err := bs.TakeByteArrayAligned(a.StuffingBytes); err != nil {
			return nil, err
		}
	} else if a.StuffingBytes < 0 {
		return nil, fmt.Errorf("mpegts: adaptation field declared length %d shorter than its fields (%d)", a.Length, consumed)
	}

	return a, nil
}

// parseAdaptationExtensionField reads the length byte and stores everything
// after it verbatim, per SPEC_FULL.md §9 Open Question 3 /
// original_source/libmedia/tspacketv2.cpp:340 (`takeByteArrayAligned`).
func parseAdaptationExtensionField(bs *BitStream) (*PacketAdaptationExtensionField, error) {
	e := &PacketAdaptationExtensionField{}
	length, err := bs.TakeByteAligned()
	if err != nil {
		return nil, err
	}
	e.Length = int(length)
	if e.Length == 0 {
		return e, nil
	}

	b, err := bs.TakeByteArrayAligned(e.Length)
	if err != nil {
		return nil, err
	}
	e.Bytes = make([]byte, len(b))
	copy(e.Bytes, b)
	return e, nil
}

// readPCR decodes a 48-bit PCR/OPCR field: 33-bit base, 6 reserved bits, 9-bit extension.
func readPCR(bs *BitStream) (ClockReference, error) {
	base, err := ReadUIMSBF(bs, 33)
	if err != nil {
		return ClockReference{}, err
	}
	if _, err := ReadBSLBF(bs, 6); err != nil { // reserved
		return ClockReference{}, err
	}
	ext, err := ReadUIMSBF(bs, 9)
	if err != nil {
		return ClockReference{}, err
	}
	return NewClockReference(int64(base), int64(ext)), nil
}

func writePCR(bs *BitStream, cr ClockReference) error {
	if err := WriteUIMSBF(bs, 33, uint64(cr.Base)); err != nil {
		return err
	}
	if err := WriteBSLBF(bs, 6, 0x3f); err != nil { // reserved, all ones
		return err
	}
	return WriteUIMSBF(bs, 9, uint64(cr.Extension))
}

// GeneratePacket encodes p into a freshly allocated PacketSize-byte slice.
// p.Header.HasAdaptationField/HasPayload must agree with whether
// p.AdaptationField/p.Payload are set; GeneratePacket does not infer them.
func GeneratePacket(p *Packet) ([]byte, error) {
	buf := make([]byte, PacketSize)
	bs := NewBitStream(buf)

	if err := bs.PutByteAligned(SyncByte); err != nil {
		return nil, err
	}
	if err := writePacketHeaderPID(bs, p.Header); err != nil {
		return nil, fmt.Errorf("mpegts: writing packet header: %w", err)
	}

	// A null packet's remaining bytes stay zero (the buffer is preallocated
	// zeroed); don't write scrambling/AFC/CC or anything after it.
	if p.Header.PID == PIDNull {
		return bs.Bytes()
	}

	if err := writePacketHeaderRest(bs, p.Header); err != nil {
		return nil, fmt.Errorf("mpegts: writing packet header: %w", err)
	}

	if p.Header.HasAdaptationField {
		if p.AdaptationField == nil {
			return nil, fmt.Errorf("mpegts: HasAdaptationField set but AdaptationField is nil")
		}
		if err := writePacketAdaptationField(bs, p.AdaptationField); err != nil {
			return nil, fmt.Errorf("mpegts: writing adaptation field: %w", err)
		}
	}

	if p.Header.HasPayload {
		remaining := bs.BytesLeft()
		payload := p.Payload
		if len(payload) > remaining {
			return nil, fmt.Errorf("mpegts: payload of %d bytes doesn't fit in remaining %d bytes", len(payload), remaining)
		}
		if err := bs.PutByteArrayAligned(payload); err != nil {
			return nil, err
		}
		// Pad any unused trailing bytes with stuffing (0xFF), matching the
		// adaptation-field-free case where payload is shorter than the packet.
		for i := len(payload); i < remaining; i++ {
			if err := bs.PutByteAligned(0xff); err != nil {
				return nil, err
			}
		}
	}

	return bs.Bytes()
}

// writePacketHeaderPID writes the flags and PID, the portion shared by every
// packet including null ones.
func writePacketHeaderPID(bs *BitStream, h PacketHeader) error {
	if err := bs.PutBit(h.TransportErrorIndicator); err != nil {
		return err
	}
	if err := bs.PutBit(h.PayloadUnitStartIndicator); err != nil {
		return err
	}
	if err := bs.PutBit(h.TransportPriority); err != nil {
		return err
	}
	return WriteUIMSBF(bs, 13, uint64(h.PID))
}

// writePacketHeaderRest writes scrambling-control, adaptation-field-control
// and continuity-counter, rejecting either enum's reserved value.
func writePacketHeaderRest(bs *BitStream, h PacketHeader) error {
	if h.TransportScramblingControl == ScramblingControlReservedForFutureUse {
		return ErrReservedScramblingControl
	}
	if err := WriteUIMSBF(bs, 2, uint64(h.TransportScramblingControl)); err != nil {
		return err
	}
	var afc uint64
	if h.HasAdaptationField {
		afc |= 0x2
	}
	if h.HasPayload {
		afc |= 0x1
	}
	if afc == 0 {
		return ErrReservedAdaptationFieldControl
	}
	if err := WriteUIMSBF(bs, 2, afc); err != nil {
		return err
	}
	return WriteUIMSBF(bs, 4, uint64(h.ContinuityCounter))
}

func writePacketAdaptationField(bs *BitStream, a *PacketAdaptationField) error {
	length := adaptationFieldLength(a)
	if err := bs.PutByteAligned(byte(length)); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}

	if err := bs.PutBit(a.DiscontinuityIndicator); err != nil {
		return err
	}
	if err := bs.PutBit(a.RandomAccessIndicator); err != nil {
		return err
	}
	if err := bs.PutBit(a.ElementaryStreamPriorityIndicator); err != nil {
		return err
	}
	if err := bs.PutBit(a.HasPCR); err != nil {
		return err
	}
	if err := bs.PutBit(a.HasOPCR); err != nil {
		return err
	}
	if err := bs.PutBit(a.HasSplicingCountdown); err != nil {
		return err
	}
	if err := bs.PutBit(a.HasTransportPrivateData); err != nil {
		return err
	}
	if err := bs.PutBit(a.HasAdaptationExtensionField); err != nil {
		return err
	}

	if a.HasPCR {
		if a.PCR == nil {
			return fmt.Errorf("mpegts: HasPCR set but PCR is nil")
		}
		if err := writePCR(bs, *a.PCR); err != nil {
			return err
		}
	}
	if a.HasOPCR {
		if a.OPCR == nil {
			return fmt.Errorf("mpegts: HasOPCR set but OPCR is nil")
		}
		if err := writePCR(bs, *a.OPCR); err != nil {
			return err
		}
	}
	if a.HasSplicingCountdown {
		if err := WriteTCIMSBF(bs, 8, int64(a.SpliceCountdown)); err != nil {
			return err
		}
	}
	if a.HasTransportPrivateData {
		if err := bs.PutByteAligned(byte(len(a.TransportPrivateData))); err != nil {
			return err
		}
		if err := bs.PutByteArrayAligned(a.TransportPrivateData); err != nil {
			return err
		}
	}
	if a.HasAdaptationExtensionField {
		if a.AdaptationExtensionField == nil {
			return fmt.Errorf("mpegts: HasAdaptationExtensionField set but AdaptationExtensionField is nil")
		}
		if err := writeAdaptationExtensionField(bs, a.AdaptationExtensionField); err != nil {
			return err
		}
	}
	for i := 0; i < a.StuffingBytes; i++ {
		if err := bs.PutByteAligned(0xff); err != nil {
			return err
		}
	}
	return nil
}

// adaptationFieldLength computes the value of the length byte: everything
// after it, including stuffing.
func adaptationFieldLength(a *PacketAdaptationField) int {
	if a.Length > 0 {
		return a.Length
	}
	n := 1 // flags byte
	if a.HasPCR {
		n += 6
	}
	if a.HasOPCR {
		n += 6
	}
	if a.HasSplicingCountdown {
		n++
	}
	if a.HasTransportPrivateData {
		n += 1 + len(a.TransportPrivateData)
	}
	if a.HasAdaptationExtensionField && a.AdaptationExtensionField != nil {
		n += 1 + adaptationExtensionFieldLength(a.AdaptationExtensionField)
	}
	return n + a.StuffingBytes
}

func adaptationExtensionFieldLength(e *PacketAdaptationExtensionField) int {
	if e.Length > 0 {
		return e.Length
	}
	return len(e.Bytes)
}

// writeAdaptationExtensionField writes the length byte followed by Bytes
// verbatim, the inverse of parseAdaptationExtensionField's opaque read.
func writeAdaptationExtensionField(bs *BitStream, e *PacketAdaptationExtensionField) error {
	length := adaptationExtensionFieldLength(e)
	if err := bs.PutByteAligned(byte(length)); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if len(e.Bytes) != length {
		return fmt.Errorf("mpegts: adaptation extension field declared length %d but has %d bytes", length, len(e.Bytes))
	}
	return bs.PutByteArrayAligned(e.Bytes)
}
