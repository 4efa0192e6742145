package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// RadioTap is the variable-length preamble (DLTIEEE80211Radio) that can
// precede an 802.11 frame, carrying a bitmap-indexed set of radio-level
// fields (TSFT, flags, rate, channel, antenna signal, ...). Per spec.md
// §9's guidance on RadioTap's vendor-namespace fields, this module treats
// the entire present-bitmap-addressed field region as an opaque blob:
// it is preserved byte-for-byte across dissect/serialize without
// interpreting individual fields, since no component needs to read or
// craft them — only to carry them alongside the 802.11 frame they precede.
type RadioTap struct {
	layer.Base
	Version  uint8
	Fields   []byte // everything from byte 4 (Present bitmap) through Length
}

func (rt *RadioTap) Kind() layer.Kind { return layer.KindRadioTap }
func (rt *RadioTap) HeaderSize() int  { return 4 + len(rt.Fields) }
func (rt *RadioTap) TrailerSize() int { return 0 }
func (rt *RadioTap) Size() int        { return layer.SizeOf(rt) }

func (rt *RadioTap) Clone() layer.Layer {
	c := *rt
	c.Fields = append([]byte(nil), rt.Fields...)
	c.SetInner(rt.CloneInner())
	return &c
}

func (rt *RadioTap) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := rt.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU8(rt.Version)
	w.PutU8(0) // pad
	w.PutU16(uint16(h))
	w.PutBytes(rt.Fields)
	if in := rt.Inner(); in != nil {
		return in.Serialize(buf[h:], rt, total)
	}
	return nil
}

// NewRadioTapFromBytes dissects a RadioTap preamble.
func NewRadioTapFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: RadioTap header needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	version, _ := r.U8()
	_, _ = r.U8() // pad
	length, _ := r.U16()
	if int(length) < 4 {
		return nil, fmt.Errorf("%w: RadioTap declares length %d shorter than its own header", neterr.ErrMalformedPacket, length)
	}
	fields, err := r.Bytes(int(length) - 4)
	if err != nil {
		return nil, fmt.Errorf("%w: RadioTap declares length %d past end", neterr.ErrMalformedPacket, length)
	}

	rt := &RadioTap{Version: version, Fields: append([]byte(nil), fields...)}
	if r.Len() > 0 {
		inner, err := NewDot11FromBytes(r.Remaining(), reg)
		if err != nil {
			return nil, err
		}
		rt.SetInner(inner)
	}
	return rt, nil
}
