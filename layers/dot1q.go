package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// minEthernetFrame is the minimum legal Ethernet frame size (without the
// trailing FCS), the threshold 802.1Q padding targets.
const minEthernetFrame = 60

// dot1QAssumedPrefix is the byte count 802.1Q padding assumes precedes it:
// a single Ethernet II header. A VLAN tag nested under anything else (a
// second stacked tag, or a non-Ethernet link layer) under-pads by that
// prefix's difference from 14 — a documented simplification, since this
// layer has no parent pointer available outside of Serialize.
const dot1QAssumedPrefix = 14

// Dot1Q is an IEEE 802.1Q VLAN tag: 3-bit priority, 1-bit CFI (here named
// DropEligible per modern usage), 12-bit VLAN ID, and the inner EtherType.
type Dot1Q struct {
	layer.Base
	Priority      uint8
	DropEligible  bool
	VLANID        uint16
	EtherType     EtherType // zero means "derive from inner"
}

func (d *Dot1Q) Kind() layer.Kind { return layer.KindDot1Q }
func (d *Dot1Q) HeaderSize() int  { return 4 }

// TrailerSize pads only when this tag's own header + inner chain falls
// short of the assumed minimum Ethernet frame, and only when this tag is
// the innermost of a VLAN stack (its own inner is not itself a Dot1Q) —
// see dot1QAssumedPrefix for the single-preceding-Ethernet-header caveat.
func (d *Dot1Q) TrailerSize() int {
	if in := d.Inner(); in != nil && in.Kind() == layer.KindDot1Q {
		return 0
	}
	subtree := d.HeaderSize()
	if in := d.Inner(); in != nil {
		subtree += in.Size()
	}
	need := minEthernetFrame - dot1QAssumedPrefix - subtree
	if need < 0 {
		return 0
	}
	return need
}

func (d *Dot1Q) Size() int { return layer.SizeOf(d) }

func (d *Dot1Q) Clone() layer.Layer {
	c := *d
	c.SetInner(d.CloneInner())
	return &c
}

func (d *Dot1Q) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := d.HeaderSize()
	w := cursor.NewWriter(buf[:h])

	tci := uint16(d.Priority&0x7) << 13
	if d.DropEligible {
		tci |= 1 << 12
	}
	tci |= d.VLANID & 0x0FFF
	w.PutU16(tci)

	et := d.EtherType
	if et == 0 {
		et = etherTypeForInner(d.Inner())
	}
	w.PutU16(uint16(et))

	innerSize := 0
	if in := d.Inner(); in != nil {
		innerSize = in.Size()
		if err := in.Serialize(buf[h:h+innerSize], d, total); err != nil {
			return err
		}
	}

	if t := d.TrailerSize(); t > 0 {
		trailer := buf[h+innerSize : h+innerSize+t]
		for i := range trailer {
			trailer[i] = 0
		}
	}
	return nil
}

// NewDot1QFromBytes dissects a 4-byte 802.1Q tag.
func NewDot1QFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: 802.1Q tag needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	tci, _ := r.U16()
	et, _ := r.U16()

	d := &Dot1Q{
		Priority:     uint8(tci >> 13),
		DropEligible: tci&(1<<12) != 0,
		VLANID:       tci & 0x0FFF,
		EtherType:    EtherType(et),
	}
	inner, err := dispatchInner(reg, layer.KindDot1Q, uint32(et), r.Remaining())
	if err != nil {
		return nil, err
	}
	d.SetInner(inner)
	return d, nil
}
