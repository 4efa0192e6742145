package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// ARPOpcode enumerates the ARP operation field.
type ARPOpcode uint16

const (
	ARPRequest ARPOpcode = 1
	ARPReply   ARPOpcode = 2
)

// ARP is the fixed 28-byte Ethernet/IPv4 ARP packet: hw-type=1,
// proto-type=0x0800, hw-len=6, proto-len=4.
type ARP struct {
	layer.Base
	Operation                ARPOpcode
	SenderHW, TargetHW       addr.HW
	SenderIP, TargetIP       addr.IPv4
}

func (a *ARP) Kind() layer.Kind { return layer.KindARP }
func (a *ARP) HeaderSize() int  { return 28 }
func (a *ARP) TrailerSize() int { return 0 }
func (a *ARP) Size() int        { return layer.SizeOf(a) }

func (a *ARP) Clone() layer.Layer {
	c := *a
	c.SetInner(a.CloneInner())
	return &c
}

func (a *ARP) Serialize(buf []byte, parent layer.Layer, total int) error {
	w := cursor.NewWriter(buf[:28])
	w.PutU16(1)      // hw-type: Ethernet
	w.PutU16(0x0800) // proto-type: IPv4
	w.PutU8(6)       // hw-len
	w.PutU8(4)       // proto-len
	w.PutU16(uint16(a.Operation))
	w.PutBytes(a.SenderHW[:])
	w.PutBytes(a.SenderIP[:])
	w.PutBytes(a.TargetHW[:])
	w.PutBytes(a.TargetIP[:])
	return nil
}

// NewARPFromBytes dissects a fixed 28-byte ARP packet.
func NewARPFromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("%w: ARP packet needs 28 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	_, _ = r.U16() // hw-type
	_, _ = r.U16() // proto-type
	_, _ = r.U8()  // hw-len
	_, _ = r.U8()  // proto-len
	op, _ := r.U16()
	senderHW, _ := r.Bytes(6)
	senderIP, _ := r.Bytes(4)
	targetHW, _ := r.Bytes(6)
	targetIP, _ := r.Bytes(4)

	return &ARP{
		Operation: ARPOpcode(op),
		SenderHW:  addr.HWFromBytes(senderHW),
		SenderIP:  addr.IPv4FromBytes(senderIP),
		TargetHW:  addr.HWFromBytes(targetHW),
		TargetIP:  addr.IPv4FromBytes(targetIP),
	}, nil
}
