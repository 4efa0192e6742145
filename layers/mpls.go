package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// MPLS is a single 4-byte MPLS label stack entry: 20-bit label, 3-bit
// traffic class, 1-bit bottom-of-stack, 8-bit TTL.
type MPLS struct {
	layer.Base
	Label           uint32
	TrafficClass    uint8
	BottomOfStack   bool
	TTL             uint8
}

func (m *MPLS) Kind() layer.Kind { return layer.KindMPLS }
func (m *MPLS) HeaderSize() int  { return 4 }
func (m *MPLS) TrailerSize() int { return 0 }
func (m *MPLS) Size() int        { return layer.SizeOf(m) }

func (m *MPLS) Clone() layer.Layer {
	c := *m
	c.SetInner(m.CloneInner())
	return &c
}

func (m *MPLS) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := m.HeaderSize()
	w := cursor.NewWriter(buf[:h])

	bos := m.BottomOfStack
	if in := m.Inner(); in == nil || in.Kind() != layer.KindMPLS {
		// Forced to 1 when the inner layer is not itself MPLS.
		bos = true
	}

	w0 := (m.Label & 0xFFFFF) << 12
	w0 |= uint32(m.TrafficClass&0x7) << 9
	if bos {
		w0 |= 1 << 8
	}
	w0 |= uint32(m.TTL)
	w.PutU32(w0)

	if in := m.Inner(); in != nil {
		if err := in.Serialize(buf[h:], m, total); err != nil {
			return err
		}
	}
	return nil
}

// NewMPLSFromBytes dissects a 4-byte MPLS label stack entry. Since the
// entry's bottom-of-stack bit tells us whether another MPLS entry follows,
// dispatch keys on that bit rather than a registry-held EtherType: the
// constructor recurses directly when BOS=0, and otherwise falls through to
// the IP-version heuristic real implementations use (MPLS carries no
// explicit next-protocol field once the label stack ends).
func NewMPLSFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: MPLS label needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	w0, _ := r.U32()

	m := &MPLS{
		Label:         w0 >> 12,
		TrafficClass:  uint8((w0 >> 9) & 0x7),
		BottomOfStack: w0&(1<<8) != 0,
		TTL:           uint8(w0),
	}

	rest := r.Remaining()
	if !m.BottomOfStack {
		inner, err := NewMPLSFromBytes(rest, reg)
		if err != nil {
			return nil, err
		}
		m.SetInner(inner)
		return m, nil
	}

	if len(rest) > 0 {
		switch rest[0] >> 4 {
		case 4:
			inner, err := NewIPv4FromBytes(rest, reg)
			if err != nil {
				return nil, err
			}
			m.SetInner(inner)
		case 6:
			inner, err := NewIPv6FromBytes(rest, reg)
			if err != nil {
				return nil, err
			}
			m.SetInner(inner)
		default:
			m.SetInner(NewRaw(rest))
		}
	}
	return m, nil
}
