package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// UDP is the fixed 8-byte UDP header.
type UDP struct {
	layer.Base
	SrcPort, DstPort uint32 // uint32 to simplify shared endpoint helpers; wire width is 16 bits
}

func (u *UDP) Kind() layer.Kind { return layer.KindUDP }
func (u *UDP) HeaderSize() int  { return 8 }
func (u *UDP) TrailerSize() int { return 0 }
func (u *UDP) Size() int        { return layer.SizeOf(u) }

func (u *UDP) Clone() layer.Layer {
	c := *u
	c.SetInner(u.CloneInner())
	return &c
}

func (u *UDP) Serialize(buf []byte, parent layer.Layer, total int) error {
	innerSize := 0
	if in := u.Inner(); in != nil {
		innerSize = in.Size()
	}
	length := 8 + innerSize

	w := cursor.NewWriter(buf[:8])
	w.PutU16(uint16(u.SrcPort))
	w.PutU16(uint16(u.DstPort))
	w.PutU16(uint16(length))
	w.PutU16(0) // checksum placeholder

	if in := u.Inner(); in != nil {
		if err := in.Serialize(buf[8:8+innerSize], u, total); err != nil {
			return err
		}
	}

	_, isIPv6 := parent.(*IPv6)
	pseudo := pseudoHeader(parent, uint16(length), uint8(IPProtocolUDP))
	if pseudo == nil && !isIPv6 {
		// No IP parent (e.g. a UDP layer crafted in isolation): leave the
		// checksum zero, the wire-legal "unchecked" value on IPv4.
		return nil
	}
	sum := cursor.ChecksumParts(pseudo, buf[:8+innerSize])
	if sum == 0 {
		// Per RFC 768, an all-zero computed checksum is transmitted as
		// all-ones; zero is reserved to mean "no checksum" (IPv4 only).
		sum = 0xFFFF
	}
	buf[6] = byte(sum >> 8)
	buf[7] = byte(sum)
	return nil
}

// NewUDPFromBytes dissects the fixed 8-byte UDP header and its payload.
func NewUDPFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: UDP header needs 8 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	srcPort, _ := r.U16()
	dstPort, _ := r.U16()
	length, _ := r.U16()
	_, _ = r.U16() // checksum, not validated on dissect

	u := &UDP{SrcPort: uint32(srcPort), DstPort: uint32(dstPort)}

	if int(length) < 8 {
		return nil, fmt.Errorf("%w: UDP length %d below minimum 8", neterr.ErrMalformedPacket, length)
	}
	payloadLen := int(length) - 8
	if payloadLen > r.Len() {
		payloadLen = r.Len()
	}
	payload, _ := r.Bytes(payloadLen)
	if len(payload) > 0 {
		inner, err := dispatchUDPPayload(reg, u.SrcPort, u.DstPort, payload)
		if err != nil {
			return nil, err
		}
		u.SetInner(inner)
	}
	return u, nil
}

// dispatchUDPPayload resolves UDP's next layer by well-known port instead
// of a header-carried protocol id: package registry's (parent-kind, id)
// table is keyed on layer.KindUDP with the destination port as id, falling
// back to the source port (a DHCP/DHCPv6 reply is sourced from the
// well-known server port but addressed to an ephemeral or well-known
// client port depending on direction). A miss at either port wraps the
// remainder as Raw, per the same dispatchInner fallback every other layer
// uses.
func dispatchUDPPayload(reg *registry.Registry, srcPort, dstPort uint32, payload []byte) (layer.Layer, error) {
	if ctor, ok := reg.Lookup(layer.KindUDP, dstPort); ok {
		return ctor(payload, reg)
	}
	if ctor, ok := reg.Lookup(layer.KindUDP, srcPort); ok {
		return ctor(payload, reg)
	}
	return NewRaw(payload), nil
}
