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

// IPv4 option ids; EOL and NOP are the single-byte exceptions, every other
// id is a TLV with a one-byte length including its own header.
const (
	IPv4OptionEOL               uint32 = 0
	IPv4OptionNOP               uint32 = 1
	IPv4OptionRecordRoute       uint32 = 7
	IPv4OptionTimestamp         uint32 = 68
	IPv4OptionSecurity          uint32 = 130
	IPv4OptionLooseSourceRoute  uint32 = 131
	IPv4OptionStrictSourceRoute uint32 = 137
)

var ipv4OptionEncoding = option.LengthEncoding{
	IDWidth:              1,
	LengthWidth:          1,
	LengthIncludesHeader: true,
	SingleByte: func(id uint32) bool {
		return id == IPv4OptionEOL || id == IPv4OptionNOP
	},
}

// IPv4 is a variable 20-60 byte header: fixed 20-byte fields plus an
// options TLV region padded to a 4-byte multiple.
type IPv4 struct {
	layer.Base
	DSCP, ECN           uint8
	Identification      uint16
	DontFragment        bool
	MoreFragments       bool
	FragmentOffset      uint16 // in 8-byte units
	TTL                 uint8
	Protocol            IPProtocol // zero means "derive from inner"
	Src, Dst            addr.IPv4
	Options             option.List
}

func (ip *IPv4) Kind() layer.Kind { return layer.KindIPv4 }

// optionsLen returns the options region length padded up to a 4-byte
// multiple, the value IHL is derived from.
func (ip *IPv4) optionsLen() int {
	n := option.EncodedLen(ip.Options, ipv4OptionEncoding)
	return (n + 3) / 4 * 4
}

func (ip *IPv4) HeaderSize() int  { return 20 + ip.optionsLen() }
func (ip *IPv4) TrailerSize() int { return 0 }
func (ip *IPv4) Size() int        { return layer.SizeOf(ip) }

func (ip *IPv4) Clone() layer.Layer {
	c := *ip
	c.Options = ip.Options.Clone()
	c.SetInner(ip.CloneInner())
	return &c
}

func (ip *IPv4) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := ip.HeaderSize()
	innerSize := 0
	if in := ip.Inner(); in != nil {
		innerSize = in.Size()
	}

	w := cursor.NewWriter(buf[:h])
	ihl := h / 4
	w.PutU8(4<<4 | uint8(ihl))
	w.PutU8(ip.DSCP<<2 | ip.ECN)
	w.PutU16(uint16(h + innerSize))
	w.PutU16(ip.Identification)

	flagsOffset := ip.FragmentOffset & 0x1FFF
	if ip.DontFragment {
		flagsOffset |= 1 << 14
	}
	if ip.MoreFragments {
		flagsOffset |= 1 << 13
	}
	w.PutU16(flagsOffset)
	w.PutU8(ip.TTL)

	proto := ip.Protocol
	if proto == 0 {
		proto = ipProtocolForInner(ip.Inner())
	}
	w.PutU8(uint8(proto))

	w.PutU16(0) // checksum placeholder
	w.PutBytes(ip.Src[:])
	w.PutBytes(ip.Dst[:])

	rawOptLen := option.EncodedLen(ip.Options, ipv4OptionEncoding)
	if err := option.Encode(buf[20:20+rawOptLen], ip.Options, ipv4OptionEncoding); err != nil {
		return err
	}
	for i := 20 + rawOptLen; i < h; i++ {
		buf[i] = 0
	}

	sum := cursor.Checksum16(buf[:h])
	buf[10] = byte(sum >> 8)
	buf[11] = byte(sum)

	if in := ip.Inner(); in != nil {
		return in.Serialize(buf[h:h+innerSize], ip, total)
	}
	return nil
}

func ipProtocolForInner(inner layer.Layer) IPProtocol {
	if inner == nil {
		return 0
	}
	switch inner.Kind() {
	case layer.KindTCP:
		return IPProtocolTCP
	case layer.KindUDP:
		return IPProtocolUDP
	case layer.KindICMPv4:
		return IPProtocolICMPv4
	case layer.KindICMPv6:
		return IPProtocolICMPv6
	case layer.KindIPv6:
		return IPProtocolIPv6
	case layer.KindAH:
		return IPProtocolAH
	case layer.KindESP:
		return IPProtocolESP
	default:
		return 0
	}
}

// NewIPv4FromBytes dissects a variable-length IPv4 header and its payload,
// trusting the declared total_length (truncated to the captured buffer) to
// delimit this datagram from any short-frame Ethernet padding trailer.
func NewIPv4FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("%w: IPv4 header needs 20 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	verIHL, _ := r.U8()
	version := verIHL >> 4
	ihl := int(verIHL&0xF) * 4
	if version != 4 {
		return nil, fmt.Errorf("%w: expected IPv4, saw version %d", neterr.ErrMalformedPacket, version)
	}
	if ihl < 20 {
		return nil, fmt.Errorf("%w: IPv4 IHL %d below minimum 20", neterr.ErrMalformedPacket, ihl)
	}
	if len(data) < ihl {
		return nil, fmt.Errorf("%w: IPv4 IHL %d exceeds captured %d bytes", neterr.ErrMalformedPacket, ihl, len(data))
	}

	dscpECN, _ := r.U8()
	totalLength, _ := r.U16()
	ident, _ := r.U16()
	flagsOffset, _ := r.U16()
	ttl, _ := r.U8()
	proto, _ := r.U8()
	_, _ = r.U16() // checksum, not validated on dissect
	srcB, _ := r.Bytes(4)
	dstB, _ := r.Bytes(4)

	optBytes, err := r.Bytes(ihl - 20)
	if err != nil {
		return nil, fmt.Errorf("%w: IPv4 options truncated", neterr.ErrMalformedPacket)
	}
	opts, err := option.Decode(optBytes, ipv4OptionEncoding)
	if err != nil {
		return nil, err
	}

	if int(totalLength) < ihl {
		return nil, fmt.Errorf("%w: IPv4 total_length %d shorter than header %d", neterr.ErrMalformedPacket, totalLength, ihl)
	}
	payloadLen := int(totalLength) - ihl
	if payloadLen > r.Len() {
		return nil, fmt.Errorf("%w: IPv4 total_length %d exceeds captured payload", neterr.ErrMalformedPacket, totalLength)
	}
	payload, _ := r.Bytes(payloadLen)

	ip := &IPv4{
		DSCP:           dscpECN >> 2,
		ECN:            dscpECN & 0x3,
		Identification: ident,
		DontFragment:   flagsOffset&(1<<14) != 0,
		MoreFragments:  flagsOffset&(1<<13) != 0,
		FragmentOffset: flagsOffset & 0x1FFF,
		TTL:            ttl,
		Protocol:       IPProtocol(proto),
		Src:            addr.IPv4FromBytes(srcB),
		Dst:            addr.IPv4FromBytes(dstB),
		Options:        opts,
	}

	// Any fragment of a multi-fragment datagram — including the first,
	// offset-0 one — carries payload bytes that the reassembler (package
	// ip4defrag) must be able to recover byte-for-byte before
	// re-dissecting the spliced-together original; dispatching the first
	// fragment's payload to its next-protocol layer here would discard
	// the bytes needed to do that splice.
	if ip.IsFragmented() {
		if len(payload) > 0 {
			ip.SetInner(NewRaw(payload))
		}
		return ip, nil
	}

	inner, err := dispatchInner(reg, layer.KindIPv4, uint32(proto), payload)
	if err != nil {
		return nil, err
	}
	ip.SetInner(inner)
	return ip, nil
}

// IsFragmented reports whether ip carries fragmentation flags indicating it
// is part of a multi-fragment datagram (MF set or a nonzero offset).
func (ip *IPv4) IsFragmented() bool { return ip.MoreFragments || ip.FragmentOffset != 0 }
