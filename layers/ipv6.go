package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// IPv6 is the fixed 40-byte IPv6 header. payload_length is derived from
// the inner chain's total size at serialize time.
type IPv6 struct {
	layer.Base
	TrafficClass uint8
	FlowLabel    uint32 // low 20 bits significant
	HopLimit     uint8
	NextHeader   IPProtocol // zero means "derive from inner"
	Src, Dst     addr.IPv6
}

func (ip *IPv6) Kind() layer.Kind { return layer.KindIPv6 }
func (ip *IPv6) HeaderSize() int  { return 40 }
func (ip *IPv6) TrailerSize() int { return 0 }
func (ip *IPv6) Size() int        { return layer.SizeOf(ip) }

func (ip *IPv6) Clone() layer.Layer {
	c := *ip
	c.SetInner(ip.CloneInner())
	return &c
}

func (ip *IPv6) Serialize(buf []byte, parent layer.Layer, total int) error {
	innerSize := 0
	if in := ip.Inner(); in != nil {
		innerSize = in.Size()
	}
	w := cursor.NewWriter(buf[:40])
	w.PutU32(6<<28 | uint32(ip.TrafficClass)<<20 | ip.FlowLabel&0xFFFFF)
	w.PutU16(uint16(innerSize))

	next := ip.NextHeader
	if next == 0 {
		next = nextHeaderForInner(ip.Inner())
	}
	w.PutU8(uint8(next))
	w.PutU8(ip.HopLimit)
	w.PutBytes(ip.Src[:])
	w.PutBytes(ip.Dst[:])

	if in := ip.Inner(); in != nil {
		return in.Serialize(buf[40:40+innerSize], ip, total)
	}
	return nil
}

func nextHeaderForInner(inner layer.Layer) IPProtocol {
	if inner == nil {
		return IPProtocolNoNext
	}
	switch inner.Kind() {
	case layer.KindTCP:
		return IPProtocolTCP
	case layer.KindUDP:
		return IPProtocolUDP
	case layer.KindICMPv6:
		return IPProtocolICMPv6
	case layer.KindIPv6HopByHop:
		return IPProtocolHopByHop
	case layer.KindIPv6Routing:
		return IPProtocolRouting
	case layer.KindIPv6Fragment:
		return IPProtocolFragment
	case layer.KindIPv6Destination:
		return IPProtocolDestOptions
	case layer.KindAH:
		return IPProtocolAH
	case layer.KindESP:
		return IPProtocolESP
	default:
		return IPProtocolNoNext
	}
}

// NewIPv6FromBytes dissects the fixed 40-byte IPv6 header and recurses into
// whatever extension-header or transport chain next_header names.
func NewIPv6FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 40 {
		return nil, fmt.Errorf("%w: IPv6 header needs 40 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	word0, _ := r.U32()
	version := word0 >> 28
	if version != 6 {
		return nil, fmt.Errorf("%w: expected IPv6, saw version %d", neterr.ErrMalformedPacket, version)
	}
	payloadLen, _ := r.U16()
	nextHdr, _ := r.U8()
	hopLimit, _ := r.U8()
	srcB, _ := r.Bytes(16)
	dstB, _ := r.Bytes(16)

	if int(payloadLen) > r.Len() {
		return nil, fmt.Errorf("%w: IPv6 payload_length %d exceeds captured payload", neterr.ErrMalformedPacket, payloadLen)
	}
	payload, _ := r.Bytes(int(payloadLen))

	ip := &IPv6{
		TrafficClass: uint8(word0 >> 20),
		FlowLabel:    word0 & 0xFFFFF,
		HopLimit:     hopLimit,
		NextHeader:   IPProtocol(nextHdr),
		Src:          addr.IPv6FromBytes(srcB),
		Dst:          addr.IPv6FromBytes(dstB),
	}

	inner, err := dispatchInner(reg, layer.KindIPv6, uint32(nextHdr), payload)
	if err != nil {
		return nil, err
	}
	ip.SetInner(inner)
	return ip, nil
}
