package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// Ethernet is the Ethernet II link-layer header: 6-byte destination, 6-byte
// source, 2-byte EtherType.
type Ethernet struct {
	layer.Base
	Dst, Src  addr.HW
	EtherType EtherType // zero means "derive from inner at serialize time"
}

func (e *Ethernet) Kind() layer.Kind { return layer.KindEthernet }
func (e *Ethernet) HeaderSize() int  { return 14 }
func (e *Ethernet) TrailerSize() int { return 0 }
func (e *Ethernet) Size() int        { return layer.SizeOf(e) }

func (e *Ethernet) Clone() layer.Layer {
	c := *e
	c.SetInner(e.CloneInner())
	return &c
}

func (e *Ethernet) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := e.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutBytes(e.Dst[:])
	w.PutBytes(e.Src[:])

	et := e.EtherType
	if et == 0 {
		et = etherTypeForInner(e.Inner())
	}
	w.PutU16(uint16(et))

	if in := e.Inner(); in != nil {
		if err := in.Serialize(buf[h:], e, total); err != nil {
			return err
		}
	}
	return nil
}

// NewEthernetFromBytes dissects an Ethernet II frame, including any padding
// trailer present in a short captured frame (the dissector never trims the
// payload).
func NewEthernetFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 14 {
		return nil, fmt.Errorf("%w: ethernet header needs 14 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	dstB, _ := r.Bytes(6)
	srcB, _ := r.Bytes(6)
	et, _ := r.U16()

	e := &Ethernet{Dst: addr.HWFromBytes(dstB), Src: addr.HWFromBytes(srcB), EtherType: EtherType(et)}

	// A value of 1500 or less is an 802.3 length field, not an
	// EtherType: what follows is an LLC header, not a direct dispatch.
	if et <= 1500 {
		inner, err := NewLLCFromBytes(r.Remaining(), reg)
		if err != nil {
			return nil, err
		}
		e.SetInner(inner)
		return e, nil
	}

	inner, err := dispatchInner(reg, layer.KindEthernet, uint32(et), r.Remaining())
	if err != nil {
		return nil, err
	}
	e.SetInner(inner)
	return e, nil
}

// etherTypeForInner derives the EtherType field from the inner layer's kind
// when the user did not set one explicitly, per spec.md §4.3.
func etherTypeForInner(inner layer.Layer) EtherType {
	if inner == nil {
		return 0
	}
	switch inner.Kind() {
	case layer.KindIPv4:
		return EtherTypeIPv4
	case layer.KindIPv6:
		return EtherTypeIPv6
	case layer.KindARP:
		return EtherTypeARP
	case layer.KindDot1Q:
		return EtherTypeDot1Q
	case layer.KindMPLS:
		return EtherTypeMPLSUnicast
	case layer.KindPPPoEDiscovery:
		return EtherTypePPPoEDiscover
	case layer.KindPPPoESession:
		return EtherTypePPPoESession
	default:
		return 0
	}
}
