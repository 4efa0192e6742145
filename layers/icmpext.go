package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/neterr"
)

// ICMP extension object classes (RFC 4884).
const (
	ICMPExtClassMPLSLabelStack uint8 = 1
)

// MPLS Label Stack object type (class 1).
const (
	ICMPExtTypeMPLSLabelStack uint8 = 1
)

// MPLSExtLabel is one 4-byte MPLS label stack entry as carried inside an
// RFC 4884 "MPLS Label Stack" extension object. It has the same wire shape
// as the standalone MPLS layer's label entry but is not itself a chained
// Layer: the extension object's payload is a flat list of these, not a
// nested inner chain.
type MPLSExtLabel struct {
	Label         uint32
	TrafficClass  uint8
	BottomOfStack bool
	TTL           uint8
}

// DecodeMPLSLabelStack parses a class-1/type-1 extension object's payload
// as zero or more 4-byte MPLS label entries.
func DecodeMPLSLabelStack(data []byte) ([]MPLSExtLabel, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: MPLS extension label stack length %d not a multiple of 4", neterr.ErrMalformedOption, len(data))
	}
	var out []MPLSExtLabel
	r := cursor.NewReader(data)
	for r.Len() > 0 {
		w0, _ := r.U32()
		out = append(out, MPLSExtLabel{
			Label:         w0 >> 12,
			TrafficClass:  uint8((w0 >> 9) & 0x7),
			BottomOfStack: w0&(1<<8) != 0,
			TTL:           uint8(w0),
		})
	}
	return out, nil
}

// EncodeMPLSLabelStack serializes labels back into a class-1/type-1
// extension object payload.
func EncodeMPLSLabelStack(labels []MPLSExtLabel) []byte {
	buf := make([]byte, 4*len(labels))
	w := cursor.NewWriter(buf)
	for _, l := range labels {
		w0 := (l.Label & 0xFFFFF) << 12
		w0 |= uint32(l.TrafficClass&0x7) << 9
		if l.BottomOfStack {
			w0 |= 1 << 8
		}
		w0 |= uint32(l.TTL)
		w.PutU32(w0)
	}
	return buf
}

// ICMPExtensionObject is one RFC 4884 extension object: a 4-byte header
// (16-bit length including the header, 1-byte class, 1-byte type) plus
// payload.
type ICMPExtensionObject struct {
	Class   uint8
	CType   uint8
	Payload []byte
}

func (o ICMPExtensionObject) encodedLen() int { return 4 + len(o.Payload) }

// ICMPExtensionStructure is the RFC 4884 structure preceding one or more
// extension objects: a 4-byte structure header (version=2, reserved,
// checksum over the whole structure) followed by the objects.
type ICMPExtensionStructure struct {
	Version uint8
	Objects []ICMPExtensionObject
}

// ICMPExtensionVersion is the only version this module emits or expects.
const ICMPExtensionVersion uint8 = 2

func (s ICMPExtensionStructure) encodedLen() int {
	n := 4
	for _, o := range s.Objects {
		n += o.encodedLen()
	}
	return n
}

// EncodeICMPExtensionStructure serializes s, computing its checksum over
// the emitted bytes with the checksum field zeroed during calculation.
func EncodeICMPExtensionStructure(s ICMPExtensionStructure) []byte {
	buf := make([]byte, s.encodedLen())
	w := cursor.NewWriter(buf)
	version := s.Version
	if version == 0 {
		version = ICMPExtensionVersion
	}
	w.PutU8(version << 4)
	w.PutU8(0) // reserved
	w.PutU16(0) // checksum placeholder
	for _, o := range s.Objects {
		w.PutU16(uint16(o.encodedLen()))
		w.PutU8(o.Class)
		w.PutU8(o.CType)
		w.PutBytes(o.Payload)
	}
	sum := cursor.Checksum16(buf)
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	return buf
}

// DecodeICMPExtensionStructure parses an RFC 4884 extension structure.
// The checksum is not validated; dissection never rejects packets on
// checksum mismatch (only malformed structure).
func DecodeICMPExtensionStructure(data []byte) (ICMPExtensionStructure, error) {
	if len(data) < 4 {
		return ICMPExtensionStructure{}, fmt.Errorf("%w: ICMP extension structure needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	verRes, _ := r.U8()
	_, _ = r.U8() // reserved
	_, _ = r.U16() // checksum, not validated

	s := ICMPExtensionStructure{Version: verRes >> 4}
	for r.Len() > 0 {
		if r.Len() < 4 {
			return s, fmt.Errorf("%w: ICMP extension object header truncated", neterr.ErrMalformedPacket)
		}
		length, _ := r.U16()
		class, _ := r.U8()
		ctype, _ := r.U8()
		if int(length) < 4 {
			return s, fmt.Errorf("%w: ICMP extension object declares length %d shorter than its own header", neterr.ErrMalformedPacket, length)
		}
		payload, err := r.Bytes(int(length) - 4)
		if err != nil {
			return s, fmt.Errorf("%w: ICMP extension object declares length %d past end", neterr.ErrMalformedPacket, length)
		}
		s.Objects = append(s.Objects, ICMPExtensionObject{
			Class:   class,
			CType:   ctype,
			Payload: append([]byte(nil), payload...),
		})
	}
	return s, nil
}

// MPLSLabelStackObject returns the first class-1/type-1 extension object's
// decoded MPLS label stack, if present.
func (s ICMPExtensionStructure) MPLSLabelStackObject() ([]MPLSExtLabel, bool) {
	for _, o := range s.Objects {
		if o.Class == ICMPExtClassMPLSLabelStack && o.CType == ICMPExtTypeMPLSLabelStack {
			labels, err := DecodeMPLSLabelStack(o.Payload)
			if err != nil {
				return nil, false
			}
			return labels, true
		}
	}
	return nil, false
}

// NewMPLSLabelStackExtensionObject builds a class-1/type-1 extension object
// carrying labels.
func NewMPLSLabelStackExtensionObject(labels []MPLSExtLabel) ICMPExtensionObject {
	return ICMPExtensionObject{
		Class:   ICMPExtClassMPLSLabelStack,
		CType:   ICMPExtTypeMPLSLabelStack,
		Payload: EncodeMPLSLabelStack(labels),
	}
}
