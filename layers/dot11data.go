package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// dot11DataIsQoS reports whether subtype is one of the QoS data subtypes
// (bit 3 of the subtype field set), which carry an extra 2-byte QoS
// control field ahead of the payload.
func dot11DataIsQoS(subtype uint8) bool { return subtype&0x8 != 0 }

// Dot11Data is a data-type 802.11 frame's remainder past the Dot11 base
// header: address 2/3, sequence control, a fourth address when both
// ToDS and FromDS are set (the wireless-distribution-system case), an
// optional QoS control field, and the payload (an LLC/SNAP-wrapped or raw
// inner layer).
type Dot11Data struct {
	layer.Base
	Subtype      uint8
	Addr2, Addr3 addr.HW
	SeqNum       uint16
	FragNum      uint8
	Addr4        *addr.HW
	QoSControl   *uint16
}

func (d *Dot11Data) Kind() layer.Kind { return layer.KindDot11Data }

func (d *Dot11Data) HeaderSize() int {
	h := 14
	if d.Addr4 != nil {
		h += 6
	}
	if d.QoSControl != nil {
		h += 2
	}
	return h
}
func (d *Dot11Data) TrailerSize() int { return 0 }
func (d *Dot11Data) Size() int        { return layer.SizeOf(d) }

func (d *Dot11Data) Clone() layer.Layer {
	c := *d
	if d.Addr4 != nil {
		a := *d.Addr4
		c.Addr4 = &a
	}
	if d.QoSControl != nil {
		q := *d.QoSControl
		c.QoSControl = &q
	}
	c.SetInner(d.CloneInner())
	return &c
}

func (d *Dot11Data) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := d.HeaderSize()
	innerSize := 0
	if in := d.Inner(); in != nil {
		innerSize = in.Size()
	}
	w := cursor.NewWriter(buf[:h])
	w.PutBytes(d.Addr2[:])
	w.PutBytes(d.Addr3[:])
	w.PutU16(uint16(d.SeqNum)<<4 | uint16(d.FragNum)&0xF)
	if d.Addr4 != nil {
		w.PutBytes(d.Addr4[:])
	}
	if d.QoSControl != nil {
		w.PutU16(*d.QoSControl)
	}
	if in := d.Inner(); in != nil {
		return in.Serialize(buf[h:h+innerSize], d, total)
	}
	return nil
}

// NewDot11DataFromBytes dissects a data frame's remainder (address 2
// onward). If the payload begins with an LLC/SNAP header (the usual
// 802.2-encapsulated case), it is dissected as such; otherwise it is
// wrapped as Raw.
func NewDot11DataFromBytes(data []byte, subtype uint8, toDS, fromDS bool, reg *registry.Registry) (layer.Layer, error) {
	r := cursor.NewReader(data)
	addr2, err := r.Bytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: 802.11 data frame address 2 truncated", neterr.ErrMalformedPacket)
	}
	addr3, err := r.Bytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: 802.11 data frame address 3 truncated", neterr.ErrMalformedPacket)
	}
	seqCtrl, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: 802.11 data frame sequence control truncated", neterr.ErrMalformedPacket)
	}

	d := &Dot11Data{
		Subtype: subtype,
		Addr2:   addr.HWFromBytes(addr2),
		Addr3:   addr.HWFromBytes(addr3),
		SeqNum:  seqCtrl >> 4,
		FragNum: uint8(seqCtrl & 0xF),
	}

	if toDS && fromDS {
		addr4, err := r.Bytes(6)
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 4-address data frame address 4 truncated", neterr.ErrMalformedPacket)
		}
		a := addr.HWFromBytes(addr4)
		d.Addr4 = &a
	}

	if dot11DataIsQoS(subtype) {
		qos, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 QoS data frame QoS control truncated", neterr.ErrMalformedPacket)
		}
		d.QoSControl = &qos
	}

	payload := r.Remaining()
	if len(payload) >= 3 && payload[0] == 0xAA && payload[1] == 0xAA {
		inner, err := NewLLCFromBytes(payload, reg)
		if err != nil {
			return nil, err
		}
		d.SetInner(inner)
	} else if len(payload) > 0 {
		d.SetInner(NewRaw(payload))
	}
	return d, nil
}
