package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// ICMPv4 message types this module recognizes.
const (
	ICMPv4TypeEchoReply       uint8 = 0
	ICMPv4TypeDestUnreachable uint8 = 3
	ICMPv4TypeSourceQuench    uint8 = 4
	ICMPv4TypeRedirect        uint8 = 5
	ICMPv4TypeEcho            uint8 = 8
	ICMPv4TypeRouterAdvert    uint8 = 9
	ICMPv4TypeRouterSolicit   uint8 = 10
	ICMPv4TypeTimeExceeded    uint8 = 11
	ICMPv4TypeParamProblem    uint8 = 12
	ICMPv4TypeTimestamp       uint8 = 13
	ICMPv4TypeTimestampReply  uint8 = 14
)

// icmpv4ExtensionCapable reports whether type carries the RFC 4884
// length-in-32-bit-words byte at offset 1 of the 4-byte "rest of header"
// field, delimiting an optional trailing extension structure.
func icmpv4ExtensionCapable(t uint8) bool {
	switch t {
	case ICMPv4TypeDestUnreachable, ICMPv4TypeTimeExceeded, ICMPv4TypeParamProblem:
		return true
	default:
		return false
	}
}

// ICMPv4 is the 8-byte base ICMPv4 header (type, code, checksum, and a
// 4-byte type-specific field) plus the embedded original-datagram payload
// (carried as Inner, a Raw layer) and an optional RFC 4884 extension
// structure (carried as a trailer, since extensions are appended after the
// original-datagram region rather than chained as a next protocol).
type ICMPv4 struct {
	layer.Base
	Type       uint8
	Code       uint8
	Identifier uint16    // Echo/EchoReply/Timestamp/TimestampReply
	Sequence   uint16    // Echo/EchoReply/Timestamp/TimestampReply
	Gateway    addr.IPv4 // Redirect
	Pointer    uint8     // ParamProblem
	NextHopMTU uint16    // DestUnreachable, code 4 (fragmentation needed)
	Extension  *ICMPExtensionStructure
}

func (i *ICMPv4) Kind() layer.Kind { return layer.KindICMPv4 }
func (i *ICMPv4) HeaderSize() int  { return 8 }

func (i *ICMPv4) TrailerSize() int {
	if i.Extension == nil {
		return 0
	}
	return i.Extension.encodedLen()
}

func (i *ICMPv4) Size() int { return layer.SizeOf(i) }

func (i *ICMPv4) Clone() layer.Layer {
	c := *i
	if i.Extension != nil {
		ext := *i.Extension
		ext.Objects = append([]ICMPExtensionObject(nil), i.Extension.Objects...)
		c.Extension = &ext
	}
	c.SetInner(i.CloneInner())
	return &c
}

// originalDatagramWords returns the RFC 4884 length field (in 32-bit
// words) describing the size of the embedded original-datagram region,
// derived from the inner layer's size when an extension is present.
func (i *ICMPv4) originalDatagramWords() uint8 {
	if i.Extension == nil {
		return 0
	}
	innerSize := 0
	if in := i.Inner(); in != nil {
		innerSize = in.Size()
	}
	return uint8((innerSize + 3) / 4)
}

func (i *ICMPv4) restOfHeader() uint32 {
	switch i.Type {
	case ICMPv4TypeEcho, ICMPv4TypeEchoReply, ICMPv4TypeTimestamp, ICMPv4TypeTimestampReply:
		return uint32(i.Identifier)<<16 | uint32(i.Sequence)
	case ICMPv4TypeRedirect:
		return i.Gateway.Uint32()
	case ICMPv4TypeParamProblem:
		return uint32(i.Pointer)<<24 | uint32(i.originalDatagramWords())<<16
	case ICMPv4TypeTimeExceeded:
		return uint32(i.originalDatagramWords()) << 16
	case ICMPv4TypeDestUnreachable:
		rest := uint32(i.originalDatagramWords()) << 16
		if i.Code == 4 {
			rest |= uint32(i.NextHopMTU)
		}
		return rest
	default:
		return 0
	}
}

func (i *ICMPv4) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := i.HeaderSize()
	innerSize := 0
	if in := i.Inner(); in != nil {
		innerSize = in.Size()
	}
	trailer := i.TrailerSize()

	w := cursor.NewWriter(buf[:h])
	w.PutU8(i.Type)
	w.PutU8(i.Code)
	w.PutU16(0) // checksum placeholder
	w.PutU32(i.restOfHeader())

	if in := i.Inner(); in != nil {
		if err := in.Serialize(buf[h:h+innerSize], i, total); err != nil {
			return err
		}
	}
	if i.Extension != nil {
		copy(buf[h+innerSize:h+innerSize+trailer], EncodeICMPExtensionStructure(*i.Extension))
	}

	sum := cursor.Checksum16(buf[:h+innerSize+trailer])
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	return nil
}

// NewICMPv4FromBytes dissects the 8-byte ICMPv4 header, the embedded
// original-datagram payload, and, for types 3/11/12, an optional RFC 4884
// extension structure delimited by the length-in-32-bit-words byte at
// offset 1 of the 4-byte rest-of-header field.
func NewICMPv4FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: ICMPv4 header needs 8 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	typ, _ := r.U8()
	code, _ := r.U8()
	_, _ = r.U16() // checksum, not validated on dissect
	rest, _ := r.U32()

	i := &ICMPv4{Type: typ, Code: code}
	lengthWords := uint8(0)
	switch typ {
	case ICMPv4TypeEcho, ICMPv4TypeEchoReply, ICMPv4TypeTimestamp, ICMPv4TypeTimestampReply:
		i.Identifier = uint16(rest >> 16)
		i.Sequence = uint16(rest)
	case ICMPv4TypeRedirect:
		var gw [4]byte
		gw[0] = byte(rest >> 24)
		gw[1] = byte(rest >> 16)
		gw[2] = byte(rest >> 8)
		gw[3] = byte(rest)
		i.Gateway = addr.IPv4FromBytes(gw[:])
	case ICMPv4TypeParamProblem:
		i.Pointer = uint8(rest >> 24)
		lengthWords = uint8(rest >> 16)
	case ICMPv4TypeTimeExceeded:
		lengthWords = uint8(rest >> 16)
	case ICMPv4TypeDestUnreachable:
		lengthWords = uint8(rest >> 16)
		if code == 4 {
			i.NextHopMTU = uint16(rest)
		}
	}

	rem := r.Remaining()
	if icmpv4ExtensionCapable(typ) && lengthWords > 0 {
		origLen := int(lengthWords) * 4
		if origLen < len(rem) {
			if origLen > 0 {
				i.SetInner(NewRaw(rem[:origLen]))
			}
			ext, err := DecodeICMPExtensionStructure(rem[origLen:])
			if err != nil {
				return nil, err
			}
			i.Extension = &ext
			return i, nil
		}
	}

	if len(rem) > 0 {
		i.SetInner(NewRaw(rem))
	}
	return i, nil
}
