package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// 802.11 control frame subtypes this module parses.
const (
	Dot11CtrlBlockAckReq uint8 = 0x8
	Dot11CtrlBlockAck    uint8 = 0x9
	Dot11CtrlPSPoll      uint8 = 0xA
	Dot11CtrlRTS         uint8 = 0xB
	Dot11CtrlCTS         uint8 = 0xC
	Dot11CtrlACK         uint8 = 0xD
	Dot11CtrlCFEnd       uint8 = 0xE
	Dot11CtrlCFEndCFAck  uint8 = 0xF
)

// dot11CtrlHasAddr2 reports whether subtype carries a second address
// (transmitter address, or BSSID for PS-Poll) after the Dot11 base
// header's address 1. ACK and CTS carry only address 1.
func dot11CtrlHasAddr2(subtype uint8) bool {
	switch subtype {
	case Dot11CtrlACK, Dot11CtrlCTS:
		return false
	default:
		return true
	}
}

func dot11CtrlHasBAR(subtype uint8) bool {
	return subtype == Dot11CtrlBlockAck || subtype == Dot11CtrlBlockAckReq
}

// Dot11Control is a control-type 802.11 frame's remainder past the Dot11
// base header. Addr2 is nil for the 10-byte ACK/CTS subtypes, which carry
// nothing past address 1. BlockAck/BlockAckReq carry a BAR control field,
// a starting sequence number, and (BlockAck only) a bitmap.
type Dot11Control struct {
	layer.Base
	Subtype    uint8
	Addr2      *addr.HW
	BARControl uint16
	SSN        uint16
	Bitmap     []byte // BlockAck only
}

func (c *Dot11Control) Kind() layer.Kind { return layer.KindDot11Control }

func (c *Dot11Control) HeaderSize() int {
	h := 0
	if c.Addr2 != nil {
		h += 6
	}
	if dot11CtrlHasBAR(c.Subtype) {
		h += 2 + 2 + len(c.Bitmap)
	}
	return h
}
func (c *Dot11Control) TrailerSize() int { return 0 }
func (c *Dot11Control) Size() int        { return layer.SizeOf(c) }

func (c *Dot11Control) Clone() layer.Layer {
	cl := *c
	if c.Addr2 != nil {
		a := *c.Addr2
		cl.Addr2 = &a
	}
	cl.Bitmap = append([]byte(nil), c.Bitmap...)
	cl.SetInner(c.CloneInner())
	return &cl
}

func (c *Dot11Control) Serialize(buf []byte, parent layer.Layer, total int) error {
	w := cursor.NewWriter(buf[:c.HeaderSize()])
	if c.Addr2 != nil {
		w.PutBytes(c.Addr2[:])
	}
	if dot11CtrlHasBAR(c.Subtype) {
		w.PutU16(c.BARControl)
		w.PutU16(c.SSN)
		w.PutBytes(c.Bitmap)
	}
	return nil
}

// NewDot11ControlFromBytes dissects a control frame's remainder (anything
// past address 1, which the Dot11 base header already parsed).
func NewDot11ControlFromBytes(data []byte, subtype uint8, reg *registry.Registry) (layer.Layer, error) {
	r := cursor.NewReader(data)
	c := &Dot11Control{Subtype: subtype}

	if dot11CtrlHasAddr2(subtype) {
		b, err := r.Bytes(6)
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 control subtype %d address 2 truncated", neterr.ErrMalformedPacket, subtype)
		}
		a := addr.HWFromBytes(b)
		c.Addr2 = &a
	}

	if dot11CtrlHasBAR(subtype) {
		bar, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 BlockAck(Req) BAR control truncated", neterr.ErrMalformedPacket)
		}
		ssn, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 BlockAck(Req) starting sequence number truncated", neterr.ErrMalformedPacket)
		}
		c.BARControl = bar
		c.SSN = ssn
		if subtype == Dot11CtrlBlockAck && r.Len() > 0 {
			bitmap, _ := r.Bytes(r.Len())
			c.Bitmap = append([]byte(nil), bitmap...)
		}
	}
	return c, nil
}
