package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// SLL is the 16-byte Linux "cooked" capture header (DLTLinuxSLL).
type SLL struct {
	layer.Base
	PacketType   uint16
	ARPHRDType   uint16
	LLAddrLen    uint16
	LLAddr       [8]byte
	ProtocolType EtherType
}

func (s *SLL) Kind() layer.Kind { return layer.KindSLL }
func (s *SLL) HeaderSize() int  { return 16 }
func (s *SLL) TrailerSize() int { return 0 }
func (s *SLL) Size() int        { return layer.SizeOf(s) }

func (s *SLL) Clone() layer.Layer {
	c := *s
	c.SetInner(s.CloneInner())
	return &c
}

func (s *SLL) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := s.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU16(s.PacketType)
	w.PutU16(s.ARPHRDType)
	w.PutU16(s.LLAddrLen)
	w.PutBytes(s.LLAddr[:])
	pt := s.ProtocolType
	if pt == 0 {
		pt = etherTypeForInner(s.Inner())
	}
	w.PutU16(uint16(pt))
	if in := s.Inner(); in != nil {
		return in.Serialize(buf[h:], s, total)
	}
	return nil
}

// NewSLLFromBytes dissects a Linux cooked-capture header.
func NewSLLFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: SLL header needs 16 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	ptype, _ := r.U16()
	arphrd, _ := r.U16()
	addrLen, _ := r.U16()
	addr, _ := r.Bytes(8)
	proto, _ := r.U16()

	s := &SLL{PacketType: ptype, ARPHRDType: arphrd, LLAddrLen: addrLen, ProtocolType: EtherType(proto)}
	copy(s.LLAddr[:], addr)

	inner, err := dispatchInner(reg, layer.KindSLL, uint32(proto), r.Remaining())
	if err != nil {
		return nil, err
	}
	s.SetInner(inner)
	return s, nil
}
