package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/option"
	"github.com/netlayers/netlayers/registry"
)

// DHCPv4 well-known UDP ports (RFC 2131), the synthetic "next-protocol id"
// this module dispatches on for UDP's payload, the same way EtherType or
// an IP protocol number drives dispatch for other layers.
const (
	DHCPv4ServerPort uint32 = 67
	DHCPv4ClientPort uint32 = 68
)

// DHCPv4 option ids this module recognizes by name; any other id is
// preserved opaquely in Options.
const (
	DHCPv4OptPad            uint32 = 0
	DHCPv4OptSubnetMask     uint32 = 1
	DHCPv4OptRouter         uint32 = 3
	DHCPv4OptDNSServer      uint32 = 6
	DHCPv4OptHostName       uint32 = 12
	DHCPv4OptRequestedIP    uint32 = 50
	DHCPv4OptLeaseTime      uint32 = 51
	DHCPv4OptMessageType    uint32 = 53
	DHCPv4OptServerID       uint32 = 54
	DHCPv4OptParameterList  uint32 = 55
	DHCPv4OptRenewalTime    uint32 = 58
	DHCPv4OptRebindingTime  uint32 = 59
	DHCPv4OptClientID       uint32 = 61
	DHCPv4OptEnd            uint32 = 255
)

var dhcpv4Magic = [4]byte{99, 130, 83, 99}

// dhcpv4OptionEncoding implements the BOOTP option TLV rule: Pad (0) and
// End (255) are single bytes with no length field; every other id is
// followed by a 1-byte length counting payload bytes only.
var dhcpv4OptionEncoding = option.LengthEncoding{
	IDWidth:     1,
	LengthWidth: 1,
	SingleByte: func(id uint32) bool {
		return id == DHCPv4OptPad || id == DHCPv4OptEnd
	},
}

// DHCPv4 is the BOOTP/DHCP fixed 236-byte header (op through the 208-byte
// padded chaddr/sname/file fields), the 4-byte magic cookie, and a TLV
// option list terminated by an End (255) option. No DHCPv4 codec survives
// in original_source/ (only dhcpv6.cpp does); this layout follows RFC 2131
// directly, using the same option.List/LengthEncoding machinery every
// other TLV-bearing protocol here uses.
type DHCPv4 struct {
	layer.Base
	Op           uint8 // 1 = BOOTREQUEST, 2 = BOOTREPLY
	HType        uint8
	HLen         uint8
	Hops         uint8
	Xid          uint32
	Secs         uint16
	Flags        uint16
	ClientAddr   addr.IPv4
	YourAddr     addr.IPv4
	ServerAddr   addr.IPv4
	GatewayAddr  addr.IPv4
	ClientHW     addr.HW // the first 6 bytes of the 16-byte chaddr field
	ServerName   string  // up to 64 bytes, NUL-trimmed
	BootFile     string  // up to 128 bytes, NUL-trimmed
	Options      option.List
}

func (d *DHCPv4) Kind() layer.Kind { return layer.KindDHCPv4 }
func (d *DHCPv4) HeaderSize() int {
	return 236 + 4 + option.EncodedLen(d.Options, dhcpv4OptionEncoding) + 1 // +1 for the trailing End option
}
func (d *DHCPv4) TrailerSize() int { return 0 }
func (d *DHCPv4) Size() int        { return layer.SizeOf(d) }

func (d *DHCPv4) Clone() layer.Layer {
	c := *d
	c.Options = d.Options.Clone()
	c.SetInner(d.CloneInner())
	return &c
}

func (d *DHCPv4) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := d.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutU8(d.Op)
	w.PutU8(d.HType)
	w.PutU8(d.HLen)
	w.PutU8(d.Hops)
	w.PutU32(d.Xid)
	w.PutU16(d.Secs)
	w.PutU16(d.Flags)
	w.PutBytes(d.ClientAddr[:])
	w.PutBytes(d.YourAddr[:])
	w.PutBytes(d.ServerAddr[:])
	w.PutBytes(d.GatewayAddr[:])
	w.PutBytes(d.ClientHW[:])
	w.PutZero(16 - 6) // remainder of the 16-byte chaddr field
	putPaddedString(w, d.ServerName, 64)
	putPaddedString(w, d.BootFile, 128)
	w.PutBytes(dhcpv4Magic[:])
	optLen := option.EncodedLen(d.Options, dhcpv4OptionEncoding)
	if err := option.Encode(buf[236+4:236+4+optLen], d.Options, dhcpv4OptionEncoding); err != nil {
		return err
	}
	w2 := cursor.NewWriter(buf[236+4+optLen:])
	w2.PutU8(uint8(DHCPv4OptEnd))

	if in := d.Inner(); in != nil {
		return in.Serialize(buf[h:], d, total)
	}
	return nil
}

func putPaddedString(w *cursor.Writer, s string, width int) {
	b := []byte(s)
	if len(b) > width {
		b = b[:width]
	}
	w.PutBytes(b)
	w.PutZero(width - len(b))
}

// NewDHCPv4FromBytes dissects a BOOTP/DHCP packet: the fixed 236-byte
// header, the 4-byte magic cookie (a cookie other than RFC 1497's value
// is not an error: the packet parses as BOOTP-only with no options), and
// the TLV option list up to and including End.
func NewDHCPv4FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 236 {
		return nil, fmt.Errorf("%w: DHCPv4 header needs 236 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	d := &DHCPv4{}
	d.Op, _ = r.U8()
	d.HType, _ = r.U8()
	d.HLen, _ = r.U8()
	d.Hops, _ = r.U8()
	d.Xid, _ = r.U32()
	d.Secs, _ = r.U16()
	d.Flags, _ = r.U16()
	b, _ := r.Bytes(4)
	d.ClientAddr = addr.IPv4FromBytes(b)
	b, _ = r.Bytes(4)
	d.YourAddr = addr.IPv4FromBytes(b)
	b, _ = r.Bytes(4)
	d.ServerAddr = addr.IPv4FromBytes(b)
	b, _ = r.Bytes(4)
	d.GatewayAddr = addr.IPv4FromBytes(b)
	chaddr, _ := r.Bytes(16)
	d.ClientHW = addr.HWFromBytes(chaddr[:6])
	sname, _ := r.Bytes(64)
	d.ServerName = trimNUL(sname)
	file, _ := r.Bytes(128)
	d.BootFile = trimNUL(file)

	if r.Len() < 4 {
		return d, nil
	}
	magic, _ := r.Bytes(4)
	if [4]byte(magic[:4]) != dhcpv4Magic {
		return d, nil
	}
	opts, err := option.Decode(r.Remaining(), dhcpv4OptionEncoding)
	if err != nil {
		return nil, err
	}
	// The trailing End (255) marker has no payload; keep every other
	// option but drop End itself, since HeaderSize always re-appends it.
	kept := opts.Options[:0]
	for _, o := range opts.Options {
		if o.ID == DHCPv4OptEnd {
			break
		}
		kept = append(kept, o)
	}
	d.Options.Options = kept
	return d, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
