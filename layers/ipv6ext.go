package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/option"
	"github.com/netlayers/netlayers/registry"
)

// IPv6 hop-by-hop/destination-options TLV ids.
const (
	IPv6OptionPad1 uint32 = 0
	IPv6OptionPadN uint32 = 1
)

var ipv6ExtOptionEncoding = option.LengthEncoding{
	IDWidth:     1,
	LengthWidth: 1,
	SingleByte:  func(id uint32) bool { return id == IPv6OptionPad1 },
}

// ipv6ExtHeader is the common next-header / TLV-options shape shared by
// the Hop-by-Hop and Destination-Options extension headers. Routing
// headers use IPv6Routing instead.
type ipv6ExtHeader struct {
	layer.Base
	kind       layer.Kind
	NextHeader IPProtocol
	Options    option.List
}

func (e *ipv6ExtHeader) Kind() layer.Kind { return e.kind }

// HeaderSize rounds the 2-byte prefix plus options up to the next 8-byte
// boundary, per the extension-header-length-in-8-byte-units encoding.
func (e *ipv6ExtHeader) HeaderSize() int {
	raw := 2 + option.EncodedLen(e.Options, ipv6ExtOptionEncoding)
	return (raw + 7) / 8 * 8
}
func (e *ipv6ExtHeader) TrailerSize() int { return 0 }
func (e *ipv6ExtHeader) Size() int        { return layer.SizeOf(e) }

func (e *ipv6ExtHeader) Clone() layer.Layer {
	c := *e
	c.Options = e.Options.Clone()
	c.SetInner(e.CloneInner())
	return &c
}

func (e *ipv6ExtHeader) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := e.HeaderSize()
	w := cursor.NewWriter(buf[:2])
	next := e.NextHeader
	if next == 0 {
		next = nextHeaderForInner(e.Inner())
	}
	w.PutU8(uint8(next))
	w.PutU8(uint8(h/8 - 1))

	rawOptLen := option.EncodedLen(e.Options, ipv6ExtOptionEncoding)
	if err := option.Encode(buf[2:2+rawOptLen], e.Options, ipv6ExtOptionEncoding); err != nil {
		return err
	}
	for i := 2 + rawOptLen; i < h; i++ {
		buf[i] = 0
	}

	if in := e.Inner(); in != nil {
		return in.Serialize(buf[h:], e, total)
	}
	return nil
}

func newIPv6ExtHeaderFromBytes(kind layer.Kind, parentKind layer.Kind, data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: IPv6 extension header needs 2 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	nextHdr, _ := r.U8()
	hdrExtLen, _ := r.U8()
	total := (int(hdrExtLen) + 1) * 8
	if total > len(data) {
		return nil, fmt.Errorf("%w: IPv6 extension header declares %d bytes past end", neterr.ErrMalformedPacket, total)
	}
	optBytes := data[2:total]
	opts, err := option.Decode(optBytes, ipv6ExtOptionEncoding)
	if err != nil {
		return nil, err
	}

	e := &ipv6ExtHeader{kind: kind, NextHeader: IPProtocol(nextHdr), Options: opts}
	inner, err := dispatchInner(reg, parentKind, uint32(nextHdr), data[total:])
	if err != nil {
		return nil, err
	}
	e.SetInner(inner)
	return e, nil
}

// NewIPv6HopByHopFromBytes dissects a Hop-by-Hop Options extension header.
func NewIPv6HopByHopFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	return newIPv6ExtHeaderFromBytes(layer.KindIPv6HopByHop, layer.KindIPv6HopByHop, data, reg)
}

// NewIPv6DestinationFromBytes dissects a Destination Options extension
// header.
func NewIPv6DestinationFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	return newIPv6ExtHeaderFromBytes(layer.KindIPv6Destination, layer.KindIPv6Destination, data, reg)
}

// IPv6Routing is the Routing extension header: its body (routing type plus
// type-specific data, e.g. a segment list) is carried opaque since no
// routing-type semantics are interpreted by this module.
type IPv6Routing struct {
	layer.Base
	NextHeader   IPProtocol
	RoutingType  uint8
	SegmentsLeft uint8
	Body         []byte
}

func (rt *IPv6Routing) Kind() layer.Kind { return layer.KindIPv6Routing }
func (rt *IPv6Routing) HeaderSize() int  { return (4 + len(rt.Body) + 7) / 8 * 8 }
func (rt *IPv6Routing) TrailerSize() int { return 0 }
func (rt *IPv6Routing) Size() int        { return layer.SizeOf(rt) }

func (rt *IPv6Routing) Clone() layer.Layer {
	c := *rt
	c.Body = append([]byte(nil), rt.Body...)
	c.SetInner(rt.CloneInner())
	return &c
}

func (rt *IPv6Routing) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := rt.HeaderSize()
	w := cursor.NewWriter(buf[:4])
	next := rt.NextHeader
	if next == 0 {
		next = nextHeaderForInner(rt.Inner())
	}
	w.PutU8(uint8(next))
	w.PutU8(uint8(h/8 - 1))
	w.PutU8(rt.RoutingType)
	w.PutU8(rt.SegmentsLeft)
	copy(buf[4:], rt.Body)
	for i := 4 + len(rt.Body); i < h; i++ {
		buf[i] = 0
	}
	if in := rt.Inner(); in != nil {
		return in.Serialize(buf[h:], rt, total)
	}
	return nil
}

// NewIPv6RoutingFromBytes dissects a Routing extension header.
func NewIPv6RoutingFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: IPv6 routing header needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	nextHdr := data[0]
	hdrExtLen := data[1]
	routingType := data[2]
	segsLeft := data[3]
	total := (int(hdrExtLen) + 1) * 8
	if total > len(data) {
		return nil, fmt.Errorf("%w: IPv6 routing header declares %d bytes past end", neterr.ErrMalformedPacket, total)
	}
	rt := &IPv6Routing{
		NextHeader:   IPProtocol(nextHdr),
		RoutingType:  routingType,
		SegmentsLeft: segsLeft,
		Body:         append([]byte(nil), data[4:total]...),
	}
	inner, err := dispatchInner(reg, layer.KindIPv6Routing, uint32(nextHdr), data[total:])
	if err != nil {
		return nil, err
	}
	rt.SetInner(inner)
	return rt, nil
}

// IPv6Fragment is the fixed 8-byte Fragment extension header.
type IPv6Fragment struct {
	layer.Base
	NextHeader     IPProtocol
	FragmentOffset uint16 // in 8-byte units
	MoreFragments  bool
	Identification uint32
}

func (f *IPv6Fragment) Kind() layer.Kind { return layer.KindIPv6Fragment }
func (f *IPv6Fragment) HeaderSize() int  { return 8 }
func (f *IPv6Fragment) TrailerSize() int { return 0 }
func (f *IPv6Fragment) Size() int        { return layer.SizeOf(f) }

func (f *IPv6Fragment) Clone() layer.Layer {
	c := *f
	c.SetInner(f.CloneInner())
	return &c
}

func (f *IPv6Fragment) Serialize(buf []byte, parent layer.Layer, total int) error {
	w := cursor.NewWriter(buf[:8])
	next := f.NextHeader
	if next == 0 {
		next = nextHeaderForInner(f.Inner())
	}
	w.PutU8(uint8(next))
	w.PutU8(0)
	offsetRes := f.FragmentOffset << 3
	if f.MoreFragments {
		offsetRes |= 1
	}
	w.PutU16(offsetRes)
	w.PutU32(f.Identification)
	if in := f.Inner(); in != nil {
		return in.Serialize(buf[8:], f, total)
	}
	return nil
}

// NewIPv6FragmentFromBytes dissects the fixed 8-byte Fragment header.
func NewIPv6FragmentFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: IPv6 fragment header needs 8 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	nextHdr, _ := r.U8()
	_, _ = r.U8()
	offsetRes, _ := r.U16()
	ident, _ := r.U32()

	f := &IPv6Fragment{
		NextHeader:     IPProtocol(nextHdr),
		FragmentOffset: offsetRes >> 3,
		MoreFragments:  offsetRes&1 != 0,
		Identification: ident,
	}
	inner, err := dispatchInner(reg, layer.KindIPv6Fragment, uint32(nextHdr), r.Remaining())
	if err != nil {
		return nil, err
	}
	f.SetInner(inner)
	return f, nil
}
