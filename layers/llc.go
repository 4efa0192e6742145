package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// snapOUI is the 3-byte organizationally unique identifier SNAP uses to
// mean "the following 2 bytes are an EtherType", the only SNAP variant
// this module dissects.
var snapOUI = [3]byte{0x00, 0x00, 0x00}

// LLC is an 802.3 frame's LLC header, optionally extended with a SNAP
// header (8 bytes total: DSAP, SSAP, control, OUI, EtherType) when
// DSAP==SSAP==0xAA (SNAP SAP).
type LLC struct {
	layer.Base
	DSAP, SSAP, Control uint8
	SNAP                bool
	OUI                 [3]byte
	EtherType           EtherType
}

func (l *LLC) Kind() layer.Kind { return layer.KindLLC }
func (l *LLC) HeaderSize() int {
	if l.SNAP {
		return 8
	}
	return 3
}
func (l *LLC) TrailerSize() int { return 0 }
func (l *LLC) Size() int        { return layer.SizeOf(l) }

func (l *LLC) Clone() layer.Layer {
	c := *l
	c.SetInner(l.CloneInner())
	return &c
}

func (l *LLC) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := l.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU8(l.DSAP)
	w.PutU8(l.SSAP)
	w.PutU8(l.Control)
	if l.SNAP {
		w.PutBytes(l.OUI[:])
		et := l.EtherType
		if et == 0 {
			et = etherTypeForInner(l.Inner())
		}
		w.PutU16(uint16(et))
	}
	if in := l.Inner(); in != nil {
		return in.Serialize(buf[h:], l, total)
	}
	return nil
}

// NewLLCFromBytes dissects an 802.3 LLC/SNAP header (data is the payload
// following the 802.3 length field).
func NewLLCFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: LLC header needs 3 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	dsap, _ := r.U8()
	ssap, _ := r.U8()
	ctrl, _ := r.U8()

	l := &LLC{DSAP: dsap, SSAP: ssap, Control: ctrl}
	if dsap == 0xAA && ssap == 0xAA {
		if r.Len() < 5 {
			return nil, fmt.Errorf("%w: SNAP header needs 5 more bytes, have %d", neterr.ErrMalformedPacket, r.Len())
		}
		oui, _ := r.Bytes(3)
		et, _ := r.U16()
		l.SNAP = true
		copy(l.OUI[:], oui)
		l.EtherType = EtherType(et)
		if l.OUI != snapOUI {
			if r.Len() > 0 {
				l.SetInner(NewRaw(r.Remaining()))
			}
			return l, nil
		}
		inner, err := dispatchInner(reg, layer.KindLLC, uint32(et), r.Remaining())
		if err != nil {
			return nil, err
		}
		l.SetInner(inner)
		return l, nil
	}
	if r.Len() > 0 {
		l.SetInner(NewRaw(r.Remaining()))
	}
	return l, nil
}
