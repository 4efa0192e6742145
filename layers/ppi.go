package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// PPIFieldHeaderDot11 is the PPI field-header type for the 802.11-common
// field block, the only PPI field this module interprets; others are kept
// opaque.
const PPIFieldHeaderDot11 uint16 = 2

// PPI is the 4-byte Per-Packet Information header (DLTPPI) followed by a
// variable field-header region and, per spec.md §7, does not round-trip:
// Serialize always returns ErrPduNotSerializable.
type PPI struct {
	layer.Base
	Version    uint8
	Flags      uint8
	DLT        uint32
	FieldBytes []byte
}

func (p *PPI) Kind() layer.Kind { return layer.KindPPI }
func (p *PPI) HeaderSize() int  { return 8 + len(p.FieldBytes) }
func (p *PPI) TrailerSize() int { return 0 }
func (p *PPI) Size() int        { return layer.SizeOf(p) }

func (p *PPI) Clone() layer.Layer {
	c := *p
	c.FieldBytes = append([]byte(nil), p.FieldBytes...)
	c.SetInner(p.CloneInner())
	return &c
}

func (p *PPI) Serialize(buf []byte, parent layer.Layer, total int) error {
	return fmt.Errorf("%w: PPI layer does not support serialization", neterr.ErrPduNotSerializable)
}

// NewPPIFromBytes dissects a PPI header. The contained DLT selects the
// inner dissector (802.11 for DLTIEEE80211, Ethernet for DLTEN10MB; any
// other DLT leaves the payload as Raw).
func NewPPIFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: PPI header needs 8 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	version, _ := r.U8()
	flags, _ := r.U8()
	length, _ := r.U16()
	dlt, _ := r.U32()

	if int(length) < 8 {
		return nil, fmt.Errorf("%w: PPI declares length %d shorter than its own header", neterr.ErrMalformedPacket, length)
	}
	fieldBytes, err := r.Bytes(int(length) - 8)
	if err != nil {
		return nil, fmt.Errorf("%w: PPI declares length %d past end", neterr.ErrMalformedPacket, length)
	}

	p := &PPI{Version: version, Flags: flags, DLT: dlt, FieldBytes: append([]byte(nil), fieldBytes...)}
	inner, err := dispatchInner(reg, layer.KindPPI, dlt, r.Remaining())
	if err != nil {
		return nil, err
	}
	p.SetInner(inner)
	return p, nil
}
