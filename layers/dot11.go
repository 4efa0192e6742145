package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// 802.11 frame-control type values.
const (
	Dot11TypeManagement uint8 = 0
	Dot11TypeControl    uint8 = 1
	Dot11TypeData       uint8 = 2
)

// Dot11 is the common frame-control prefix every 802.11 frame shares:
// the 2-byte frame-control field, duration/ID, and address 1 (the
// receiver/destination address for every frame type this module
// dissects). The frame-type-specific remainder (addresses 2-4, sequence
// control, QoS control, fixed/tagged parameters) is carried by Inner as a
// Dot11Management, Dot11Control, or Dot11Data layer, chosen directly from
// Type/Subtype rather than through the pluggable registry: the split
// between the three is a fixed property of the frame-control field, not
// something a caller can usefully override per id.
type Dot11 struct {
	layer.Base
	Version   uint8
	Type      uint8
	Subtype   uint8
	ToDS      bool
	FromDS    bool
	MoreFrag  bool
	Retry     bool
	PwrMgt    bool
	MoreData  bool
	Protected bool
	Order     bool
	Duration  uint16
	Addr1     addr.HW
}

func (d *Dot11) Kind() layer.Kind { return layer.KindDot11 }
func (d *Dot11) HeaderSize() int  { return 10 }
func (d *Dot11) TrailerSize() int { return 0 }
func (d *Dot11) Size() int        { return layer.SizeOf(d) }

func (d *Dot11) Clone() layer.Layer {
	c := *d
	c.SetInner(d.CloneInner())
	return &c
}

func (d *Dot11) frameControl() uint16 {
	fc := uint16(d.Version) | uint16(d.Type)<<2 | uint16(d.Subtype)<<4
	var flags uint16
	if d.ToDS {
		flags |= 1 << 0
	}
	if d.FromDS {
		flags |= 1 << 1
	}
	if d.MoreFrag {
		flags |= 1 << 2
	}
	if d.Retry {
		flags |= 1 << 3
	}
	if d.PwrMgt {
		flags |= 1 << 4
	}
	if d.MoreData {
		flags |= 1 << 5
	}
	if d.Protected {
		flags |= 1 << 6
	}
	if d.Order {
		flags |= 1 << 7
	}
	return fc | flags<<8
}

func (d *Dot11) Serialize(buf []byte, parent layer.Layer, total int) error {
	innerSize := 0
	if in := d.Inner(); in != nil {
		innerSize = in.Size()
	}
	w := cursor.NewWriter(buf[:10])
	w.PutU16(d.frameControl())
	w.PutU16(d.Duration)
	w.PutBytes(d.Addr1[:])
	if in := d.Inner(); in != nil {
		return in.Serialize(buf[10:10+innerSize], d, total)
	}
	return nil
}

// NewDot11FromBytes dissects the frame-control prefix and dispatches to the
// management, control, or data frame parser named by Type.
func NewDot11FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 10 {
		return nil, fmt.Errorf("%w: 802.11 header needs 10 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	fc, _ := r.U16()
	duration, _ := r.U16()
	addr1, _ := r.Bytes(6)

	d := &Dot11{
		Version:   uint8(fc & 0x3),
		Type:      uint8((fc >> 2) & 0x3),
		Subtype:   uint8((fc >> 4) & 0xF),
		ToDS:      fc&(1<<8) != 0,
		FromDS:    fc&(1<<9) != 0,
		MoreFrag:  fc&(1<<10) != 0,
		Retry:     fc&(1<<11) != 0,
		PwrMgt:    fc&(1<<12) != 0,
		MoreData:  fc&(1<<13) != 0,
		Protected: fc&(1<<14) != 0,
		Order:     fc&(1<<15) != 0,
		Duration:  duration,
		Addr1:     addr.HWFromBytes(addr1),
	}

	rem := r.Remaining()
	var inner layer.Layer
	var err error
	switch d.Type {
	case Dot11TypeManagement:
		inner, err = NewDot11ManagementFromBytes(rem, d.Subtype, reg)
	case Dot11TypeControl:
		inner, err = NewDot11ControlFromBytes(rem, d.Subtype, reg)
	case Dot11TypeData:
		inner, err = NewDot11DataFromBytes(rem, d.Subtype, d.ToDS, d.FromDS, reg)
	default:
		if len(rem) > 0 {
			inner = NewRaw(rem)
		}
	}
	if err != nil {
		return nil, err
	}
	d.SetInner(inner)
	return d, nil
}
