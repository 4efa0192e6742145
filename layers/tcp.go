package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/option"
	"github.com/netlayers/netlayers/registry"
)

// TCP option kinds.
const (
	TCPOptionEOL             uint32 = 0
	TCPOptionNOP             uint32 = 1
	TCPOptionMSS             uint32 = 2
	TCPOptionWindowScale     uint32 = 3
	TCPOptionSACKPermitted   uint32 = 4
	TCPOptionSACK            uint32 = 5
	TCPOptionTimestamp       uint32 = 8
	TCPOptionAltChecksum     uint32 = 14
	TCPOptionAltChecksumData uint32 = 15
)

var tcpOptionEncoding = option.LengthEncoding{
	IDWidth:              1,
	LengthWidth:          1,
	LengthIncludesHeader: true,
	SingleByte: func(id uint32) bool {
		return id == TCPOptionEOL || id == TCPOptionNOP
	},
}

// TCPFlags is the set of control bits carried in the low byte of the
// data-offset/flags word.
type TCPFlags struct {
	FIN, SYN, RST, PSH, ACK, URG, ECE, CWR bool
}

// TCP is a TCP segment: a variable 20-60 byte header (options padded to a
// 4-byte multiple) plus payload.
type TCP struct {
	layer.Base
	SrcPort, DstPort uint32 // uint32 to simplify shared endpoint helpers; wire width is 16 bits
	SeqNum, AckNum   uint32
	Flags            TCPFlags
	Window           uint16
	UrgentPointer    uint16
	Options          option.List
}

func (t *TCP) Kind() layer.Kind { return layer.KindTCP }

func (t *TCP) optionsLen() int {
	n := option.EncodedLen(t.Options, tcpOptionEncoding)
	return (n + 3) / 4 * 4
}

func (t *TCP) HeaderSize() int  { return 20 + t.optionsLen() }
func (t *TCP) TrailerSize() int { return 0 }
func (t *TCP) Size() int        { return layer.SizeOf(t) }

func (t *TCP) Clone() layer.Layer {
	c := *t
	c.Options = t.Options.Clone()
	c.SetInner(t.CloneInner())
	return &c
}

func (t *TCP) flagsWord() uint16 {
	dataOffset := uint16(t.HeaderSize() / 4)
	var flags uint16
	if t.Flags.FIN {
		flags |= 1 << 0
	}
	if t.Flags.SYN {
		flags |= 1 << 1
	}
	if t.Flags.RST {
		flags |= 1 << 2
	}
	if t.Flags.PSH {
		flags |= 1 << 3
	}
	if t.Flags.ACK {
		flags |= 1 << 4
	}
	if t.Flags.URG {
		flags |= 1 << 5
	}
	if t.Flags.ECE {
		flags |= 1 << 6
	}
	if t.Flags.CWR {
		flags |= 1 << 7
	}
	return dataOffset<<12 | flags
}

func (t *TCP) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := t.HeaderSize()
	innerSize := 0
	if in := t.Inner(); in != nil {
		innerSize = in.Size()
	}

	w := cursor.NewWriter(buf[:h])
	w.PutU16(uint16(t.SrcPort))
	w.PutU16(uint16(t.DstPort))
	w.PutU32(t.SeqNum)
	w.PutU32(t.AckNum)
	w.PutU16(t.flagsWord())
	w.PutU16(t.Window)
	w.PutU16(0) // checksum placeholder
	w.PutU16(t.UrgentPointer)

	rawOptLen := option.EncodedLen(t.Options, tcpOptionEncoding)
	if err := option.Encode(buf[20:20+rawOptLen], t.Options, tcpOptionEncoding); err != nil {
		return err
	}
	for i := 20 + rawOptLen; i < h; i++ {
		buf[i] = 0
	}

	if in := t.Inner(); in != nil {
		if err := in.Serialize(buf[h:h+innerSize], t, total); err != nil {
			return err
		}
	}

	pseudo := pseudoHeader(parent, uint16(h+innerSize), uint8(IPProtocolTCP))
	sum := cursor.ChecksumParts(pseudo, buf[:h+innerSize])
	buf[16] = byte(sum >> 8)
	buf[17] = byte(sum)
	return nil
}

// NewTCPFromBytes dissects a variable 20-60 byte TCP header and its
// payload (the remainder of data, handed to Raw — stream reassembly is
// performed out-of-band by package tcpassembly, not during dissection).
func NewTCPFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("%w: TCP header needs 20 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	srcPort, _ := r.U16()
	dstPort, _ := r.U16()
	seq, _ := r.U32()
	ack, _ := r.U32()
	offFlags, _ := r.U16()
	window, _ := r.U16()
	_, _ = r.U16() // checksum, not validated on dissect
	urgent, _ := r.U16()

	dataOffset := int(offFlags>>12) * 4
	if dataOffset < 20 {
		return nil, fmt.Errorf("%w: TCP data offset %d below minimum 20", neterr.ErrMalformedPacket, dataOffset)
	}
	if dataOffset > len(data) {
		return nil, fmt.Errorf("%w: TCP data offset %d exceeds captured %d bytes", neterr.ErrMalformedPacket, dataOffset, len(data))
	}
	optBytes, _ := r.Bytes(dataOffset - 20)
	opts, err := option.Decode(optBytes, tcpOptionEncoding)
	if err != nil {
		return nil, err
	}

	t := &TCP{
		SrcPort: uint32(srcPort),
		DstPort: uint32(dstPort),
		SeqNum:  seq,
		AckNum:  ack,
		Window:  window,
		Flags: TCPFlags{
			FIN: offFlags&(1<<0) != 0,
			SYN: offFlags&(1<<1) != 0,
			RST: offFlags&(1<<2) != 0,
			PSH: offFlags&(1<<3) != 0,
			ACK: offFlags&(1<<4) != 0,
			URG: offFlags&(1<<5) != 0,
			ECE: offFlags&(1<<6) != 0,
			CWR: offFlags&(1<<7) != 0,
		},
		UrgentPointer: urgent,
		Options:       opts,
	}

	if r.Len() > 0 {
		t.SetInner(NewRaw(r.Remaining()))
	}
	return t, nil
}

// MSS returns the MSS option value, or -1 if absent.
func (t *TCP) MSS() int {
	o, err := t.Options.Get(TCPOptionMSS)
	if err != nil || len(o.Data) < 2 {
		return -1
	}
	return int(o.Data[0])<<8 | int(o.Data[1])
}

// SACKPermitted reports whether the SACK-permitted option is present.
func (t *TCP) SACKPermitted() bool {
	_, err := t.Options.Get(TCPOptionSACKPermitted)
	return err == nil
}

// SACKBlock is one (left, right) pair from a SACK option.
type SACKBlock struct{ Left, Right uint32 }

// SACKBlocks decodes the SACK option's repeated 32-bit pairs, if present.
func (t *TCP) SACKBlocks() []SACKBlock {
	o, err := t.Options.Get(TCPOptionSACK)
	if err != nil {
		return nil
	}
	var blocks []SACKBlock
	for i := 0; i+8 <= len(o.Data); i += 8 {
		left := uint32(o.Data[i])<<24 | uint32(o.Data[i+1])<<16 | uint32(o.Data[i+2])<<8 | uint32(o.Data[i+3])
		right := uint32(o.Data[i+4])<<24 | uint32(o.Data[i+5])<<16 | uint32(o.Data[i+6])<<8 | uint32(o.Data[i+7])
		blocks = append(blocks, SACKBlock{Left: left, Right: right})
	}
	return blocks
}

// pseudoHeader builds the IPv4 or IPv6 pseudo-header TCP/UDP checksums
// cover, derived from parent (the immediate enclosing IPv4/IPv6 layer).
// For an unrecognized or absent parent, it returns nil and the checksum
// degrades to covering only the segment itself (acceptable for layers
// crafted without an IP parent, e.g. unit tests of TCP in isolation).
func pseudoHeader(parent layer.Layer, segmentLen uint16, proto uint8) []byte {
	switch p := parent.(type) {
	case *IPv4:
		buf := make([]byte, 12)
		copy(buf[0:4], p.Src[:])
		copy(buf[4:8], p.Dst[:])
		buf[8] = 0
		buf[9] = proto
		buf[10] = byte(segmentLen >> 8)
		buf[11] = byte(segmentLen)
		return buf
	case *IPv6:
		buf := make([]byte, 40)
		copy(buf[0:16], p.Src[:])
		copy(buf[16:32], p.Dst[:])
		buf[32] = byte(uint32(segmentLen) >> 24)
		buf[33] = byte(uint32(segmentLen) >> 16)
		buf[34] = byte(uint32(segmentLen) >> 8)
		buf[35] = byte(segmentLen)
		buf[39] = proto
		return buf
	default:
		return nil
	}
}
