package layers

import (
	"github.com/netlayers/netlayers/layer"
)

// Raw wraps an undissected tail of bytes: the dispatch table had no
// constructor for the next-protocol id, or a layer simply terminates the
// chain (e.g. a TCP segment's application payload). It never has an inner
// layer and always round-trips byte for byte.
type Raw struct {
	layer.Base
	Payload []byte
}

// NewRaw wraps data as a Raw layer. data is copied.
func NewRaw(data []byte) *Raw {
	return &Raw{Payload: append([]byte(nil), data...)}
}

func (r *Raw) Kind() layer.Kind   { return layer.KindRaw }
func (r *Raw) HeaderSize() int    { return len(r.Payload) }
func (r *Raw) TrailerSize() int   { return 0 }
func (r *Raw) Size() int          { return layer.SizeOf(r) }
func (r *Raw) Clone() layer.Layer { return NewRaw(r.Payload) }

func (r *Raw) Serialize(buf []byte, parent layer.Layer, total int) error {
	copy(buf, r.Payload)
	return nil
}
