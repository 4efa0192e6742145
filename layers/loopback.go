package layers

import (
	"encoding/binary"
	"fmt"

	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// BSD/OSX loopback address-family values, host byte order in the capture
// (this module always reads/writes them little-endian, matching the x86
// hosts that produce the overwhelming majority of loopback captures).
const (
	loopbackAFInet  uint32 = 2
	loopbackAFInet6 uint32 = 30
)

// Loopback is the 4-byte BSD/OSX loopback address-family prefix (DLTNull).
type Loopback struct {
	layer.Base
	Family uint32
}

func (l *Loopback) Kind() layer.Kind { return layer.KindLoopback }
func (l *Loopback) HeaderSize() int  { return 4 }
func (l *Loopback) TrailerSize() int { return 0 }
func (l *Loopback) Size() int        { return layer.SizeOf(l) }

func (l *Loopback) Clone() layer.Layer {
	c := *l
	c.SetInner(l.CloneInner())
	return &c
}

func (l *Loopback) Serialize(buf []byte, parent layer.Layer, total int) error {
	family := l.Family
	if family == 0 {
		if in := l.Inner(); in != nil {
			switch in.Kind() {
			case layer.KindIPv6:
				family = loopbackAFInet6
			default:
				family = loopbackAFInet
			}
		}
	}
	binary.LittleEndian.PutUint32(buf[:4], family)
	if in := l.Inner(); in != nil {
		return in.Serialize(buf[4:], l, total)
	}
	return nil
}

// NewLoopbackFromBytes dissects a BSD loopback prefix.
func NewLoopbackFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: loopback header needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	family := binary.LittleEndian.Uint32(data[:4])
	l := &Loopback{Family: family}
	rest := data[4:]
	var inner layer.Layer
	var err error
	switch family {
	case loopbackAFInet:
		inner, err = NewIPv4FromBytes(rest, reg)
	case loopbackAFInet6:
		inner, err = NewIPv6FromBytes(rest, reg)
	default:
		if len(rest) > 0 {
			inner = NewRaw(rest)
		}
	}
	if err != nil {
		return nil, err
	}
	l.SetInner(inner)
	return l, nil
}
