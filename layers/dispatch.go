package layers

import (
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/registry"
)

// dispatchInner looks up (parent, id) in reg and constructs the next layer
// from data. On a registry miss, or when data is empty, it falls back to
// wrapping the remainder as Raw (or returns nil if there is nothing left),
// exactly as spec.md §4.2 requires: "on miss the parent wraps the remainder
// in a raw-payload layer."
func dispatchInner(reg *registry.Registry, parent layer.Kind, id uint32, data []byte) (layer.Layer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if ctor, ok := reg.Lookup(parent, id); ok {
		return ctor(data, reg)
	}
	return NewRaw(data), nil
}

// DispatchIPv4Payload dissects payload as the IPv4 protocol proto names,
// the same lookup NewIPv4FromBytes performs for an unfragmented datagram.
// It is exported for package ip4defrag, which must re-dissect a datagram's
// payload only once reassembly has spliced every fragment back together.
func DispatchIPv4Payload(proto IPProtocol, payload []byte, reg *registry.Registry) (layer.Layer, error) {
	return dispatchInner(reg, layer.KindIPv4, uint32(proto), payload)
}
