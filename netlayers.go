// Package netlayers re-exports the dissection and serialization entry
// points of its layer, registry, and layers subpackages, so importing
// "github.com/netlayers/netlayers" alone covers the whole public surface
// described in spec.md §6: dissecting a captured frame and serializing a
// crafted chain back to bytes.
package netlayers

import (
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// Dissect parses bytes as a frame captured under the given link-layer
// type, dispatching through reg (registry.Default if reg is nil). It
// returns the outermost layer of the resulting chain. Empty bytes fail
// with ErrMalformedPacket for any DLT; a DLT unknown to reg yields the
// bytes wrapped as Raw; otherwise any error comes from the DLT's
// constructor.
func Dissect(dlt registry.DLT, bytes []byte, reg *registry.Registry) (layer.Layer, error) {
	if reg == nil {
		reg = registry.Default
	}
	if len(bytes) == 0 {
		return nil, neterr.ErrMalformedPacket
	}
	ctor, ok := reg.Lookup(layer.KindRoot, uint32(dlt))
	if !ok {
		return layers.NewRaw(bytes), nil
	}
	return ctor(bytes, reg)
}

// Serialize writes root and its entire inner chain into a freshly
// allocated, exactly-sized buffer.
func Serialize(root layer.Layer) ([]byte, error) {
	return layer.Serialize(root)
}
