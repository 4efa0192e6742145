package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// AH is the IPSec Authentication Header: a variable-length header whose
// integrity-check value (ICV) length is carried opaque.
type AH struct {
	layer.Base
	NextHeader    IPProtocol
	SPI           uint32
	SequenceNum   uint32
	ICV           []byte
}

func (a *AH) Kind() layer.Kind { return layer.KindAH }
func (a *AH) HeaderSize() int  { return 12 + len(a.ICV) }
func (a *AH) TrailerSize() int { return 0 }
func (a *AH) Size() int        { return layer.SizeOf(a) }

func (a *AH) Clone() layer.Layer {
	c := *a
	c.ICV = append([]byte(nil), a.ICV...)
	c.SetInner(a.CloneInner())
	return &c
}

func (a *AH) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := a.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	next := a.NextHeader
	if next == 0 {
		next = nextHeaderForInner(a.Inner())
	}
	w.PutU8(uint8(next))
	// Payload Len is the AH's own length in 4-byte units, minus 2.
	w.PutU8(uint8(h/4 - 2))
	w.PutU16(0) // reserved
	w.PutU32(a.SPI)
	w.PutU32(a.SequenceNum)
	w.PutBytes(a.ICV)
	if in := a.Inner(); in != nil {
		return in.Serialize(buf[h:], a, total)
	}
	return nil
}

// NewAHFromBytes dissects an AH header.
func NewAHFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: AH header needs 12 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	nextHdr, _ := r.U8()
	payloadLen, _ := r.U8()
	_, _ = r.U16()
	spi, _ := r.U32()
	seq, _ := r.U32()

	total := (int(payloadLen) + 2) * 4
	if total > len(data) {
		return nil, fmt.Errorf("%w: AH declares length %d past end", neterr.ErrMalformedPacket, total)
	}
	icv, _ := r.Bytes(total - 12)

	a := &AH{NextHeader: IPProtocol(nextHdr), SPI: spi, SequenceNum: seq, ICV: append([]byte(nil), icv...)}
	inner, err := dispatchInner(reg, layer.KindAH, uint32(nextHdr), data[total:])
	if err != nil {
		return nil, err
	}
	a.SetInner(inner)
	return a, nil
}
