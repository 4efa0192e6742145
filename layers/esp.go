package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// ESP is the IPSec Encapsulating Security Payload: a fixed 8-byte prefix
// (SPI, sequence number) followed by an encrypted payload this module never
// interprets — trailer, padding, and authentication data are all part of
// the opaque ciphertext.
type ESP struct {
	layer.Base
	SPI         uint32
	SequenceNum uint32
	Payload     []byte
}

func (e *ESP) Kind() layer.Kind { return layer.KindESP }
func (e *ESP) HeaderSize() int  { return 8 + len(e.Payload) }
func (e *ESP) TrailerSize() int { return 0 }
func (e *ESP) Size() int        { return layer.SizeOf(e) }

func (e *ESP) Clone() layer.Layer {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	c.SetInner(e.CloneInner())
	return &c
}

func (e *ESP) Serialize(buf []byte, parent layer.Layer, total int) error {
	w := cursor.NewWriter(buf[:8])
	w.PutU32(e.SPI)
	w.PutU32(e.SequenceNum)
	copy(buf[8:], e.Payload)
	return nil
}

// NewESPFromBytes dissects an ESP header; the remaining bytes are kept
// opaque and never handed to the registry, since ESP carries no cleartext
// next-protocol indicator.
func NewESPFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: ESP header needs 8 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	spi, _ := r.U32()
	seq, _ := r.U32()
	return &ESP{SPI: spi, SequenceNum: seq, Payload: append([]byte(nil), r.Remaining()...)}, nil
}
