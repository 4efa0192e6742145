package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/option"
	"github.com/netlayers/netlayers/registry"
)

// PPPoE discovery tag ids.
const (
	PPPoETagEndOfList        uint32 = 0x0000
	PPPoETagServiceName      uint32 = 0x0101
	PPPoETagACName           uint32 = 0x0102
	PPPoETagHostUniq         uint32 = 0x0103
	PPPoETagACCookie         uint32 = 0x0104
	PPPoETagVendorSpec       uint32 = 0x0105
	PPPoETagRelaySession     uint32 = 0x0110
	PPPoETagServiceNameError uint32 = 0x0201
	PPPoETagACSystemError    uint32 = 0x0202
	PPPoETagGenericError     uint32 = 0x0203
)

var pppoeTagEncoding = option.LengthEncoding{IDWidth: 2, LengthWidth: 2}

// PPPoEDiscovery is a PPPoE discovery-stage packet (code != 0x00): the
// 6-byte header plus a TLV tag list.
type PPPoEDiscovery struct {
	layer.Base
	Version, Type uint8
	Code          uint8
	SessionID     uint16
	Tags          option.List
}

func (p *PPPoEDiscovery) Kind() layer.Kind { return layer.KindPPPoEDiscovery }
func (p *PPPoEDiscovery) HeaderSize() int {
	return 6 + option.EncodedLen(p.Tags, pppoeTagEncoding)
}
func (p *PPPoEDiscovery) TrailerSize() int { return 0 }
func (p *PPPoEDiscovery) Size() int        { return layer.SizeOf(p) }

func (p *PPPoEDiscovery) Clone() layer.Layer {
	c := *p
	c.Tags = p.Tags.Clone()
	c.SetInner(p.CloneInner())
	return &c
}

func (p *PPPoEDiscovery) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := p.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU8(p.Version<<4 | p.Type&0xF)
	w.PutU8(p.Code)
	w.PutU16(p.SessionID)
	w.PutU16(uint16(h - 6))
	if err := option.Encode(buf[6:h], p.Tags, pppoeTagEncoding); err != nil {
		return err
	}
	if in := p.Inner(); in != nil {
		return in.Serialize(buf[h:], p, total)
	}
	return nil
}

// NewPPPoEDiscoveryFromBytes dissects a PPPoE discovery packet.
func NewPPPoEDiscoveryFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: PPPoE header needs 6 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	vt, _ := r.U8()
	code, _ := r.U8()
	sid, _ := r.U16()
	length, _ := r.U16()
	body, err := r.Bytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("%w: PPPoE declares length %d past end", neterr.ErrMalformedPacket, length)
	}
	tags, err := option.Decode(body, pppoeTagEncoding)
	if err != nil {
		return nil, err
	}
	return &PPPoEDiscovery{Version: vt >> 4, Type: vt & 0xF, Code: code, SessionID: sid, Tags: tags}, nil
}

// PPPoESession is a PPPoE session-stage packet (code == 0x00): the 6-byte
// header wraps a PPP-encapsulated payload, carried as opaque bytes (PPP
// framing itself is out of scope).
type PPPoESession struct {
	layer.Base
	Version, Type uint8
	SessionID     uint16
}

func (p *PPPoESession) Kind() layer.Kind { return layer.KindPPPoESession }
func (p *PPPoESession) HeaderSize() int  { return 6 }
func (p *PPPoESession) TrailerSize() int { return 0 }
func (p *PPPoESession) Size() int        { return layer.SizeOf(p) }

func (p *PPPoESession) Clone() layer.Layer {
	c := *p
	c.SetInner(p.CloneInner())
	return &c
}

func (p *PPPoESession) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := p.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU8(p.Version<<4 | p.Type&0xF)
	w.PutU8(0)
	w.PutU16(p.SessionID)
	innerSize := 0
	if in := p.Inner(); in != nil {
		innerSize = in.Size()
	}
	w.PutU16(uint16(innerSize))
	if in := p.Inner(); in != nil {
		return in.Serialize(buf[h:], p, total)
	}
	return nil
}

// NewPPPoESessionFromBytes dissects a PPPoE session packet; its payload is
// always wrapped as Raw since PPP framing is not dissected.
func NewPPPoESessionFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: PPPoE header needs 6 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	vt, _ := r.U8()
	_, _ = r.U8()
	sid, _ := r.U16()
	length, _ := r.U16()
	body, err := r.Bytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("%w: PPPoE session declares length %d past end", neterr.ErrMalformedPacket, length)
	}
	p := &PPPoESession{Version: vt >> 4, Type: vt & 0xF, SessionID: sid}
	if len(body) > 0 {
		p.SetInner(NewRaw(body))
	}
	return p, nil
}
