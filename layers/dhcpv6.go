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

// DHCPv6 well-known UDP ports (RFC 3315), the synthetic next-protocol id
// UDP dispatches a DHCPv6 payload on.
const (
	DHCPv6ServerPort uint32 = 547
	DHCPv6ClientPort uint32 = 546
)

// DHCPv6 message types this module recognizes by name.
const (
	DHCPv6MsgSolicit     uint8 = 1
	DHCPv6MsgAdvertise   uint8 = 2
	DHCPv6MsgRequest     uint8 = 3
	DHCPv6MsgConfirm     uint8 = 4
	DHCPv6MsgRenew       uint8 = 5
	DHCPv6MsgRebind      uint8 = 6
	DHCPv6MsgReply       uint8 = 7
	DHCPv6MsgRelease     uint8 = 8
	DHCPv6MsgDecline     uint8 = 9
	DHCPv6MsgReconfigure uint8 = 10
	DHCPv6MsgInfoRequest uint8 = 11
	DHCPv6MsgRelayForward uint8 = 12
	DHCPv6MsgRelayReply  uint8 = 13
)

// DHCPv6 option ids (RFC 3315 §24).
const (
	DHCPv6OptClientID      uint32 = 1
	DHCPv6OptServerID      uint32 = 2
	DHCPv6OptIANA          uint32 = 3
	DHCPv6OptIATA          uint32 = 4
	DHCPv6OptIAAddr        uint32 = 5
	DHCPv6OptOptionRequest uint32 = 6
	DHCPv6OptPreference    uint32 = 7
	DHCPv6OptElapsedTime   uint32 = 8
	DHCPv6OptRelayMessage  uint32 = 9
	DHCPv6OptAuth          uint32 = 11
	DHCPv6OptUnicast       uint32 = 12
	DHCPv6OptStatusCode    uint32 = 13
	DHCPv6OptRapidCommit   uint32 = 14
	DHCPv6OptUserClass     uint32 = 15
	DHCPv6OptVendorClass   uint32 = 16
	DHCPv6OptVendorOpts    uint32 = 17
	DHCPv6OptInterfaceID   uint32 = 18
	DHCPv6OptReconfMsg     uint32 = 19
	DHCPv6OptReconfAccept  uint32 = 20
)

// dhcpv6OptionEncoding: a 2-byte id, 2-byte length counting payload bytes
// only, no single-byte exceptions (every DHCPv6 option carries a 4-byte
// header). Ground: original_source/src/dhcpv6.cpp's dissection loop reads
// `opt := read_be<u16>(); data_size := read_be<u16>()` directly.
var dhcpv6OptionEncoding = option.LengthEncoding{IDWidth: 2, LengthWidth: 2}

// isDHCPv6RelayType reports whether t is RELAY-FORW or RELAY-REPL, the two
// message types whose header carries link/peer addresses instead of a
// transaction id, per original_source/src/dhcpv6.cpp's is_relay_message.
func isDHCPv6RelayType(t uint8) bool {
	return t == DHCPv6MsgRelayForward || t == DHCPv6MsgRelayReply
}

// DHCPv6 is the DHCPv6 message header (RFC 3315). Non-relay messages carry
// a 1-byte message type and a 24-bit transaction id (4 bytes total); relay
// messages (RELAY-FORW/RELAY-REPL) carry a 1-byte message type, a 1-byte
// hop count, a 16-byte link address, and a 16-byte peer address (34 bytes
// total), per is_relay_message() in original_source/src/dhcpv6.cpp. Both
// forms are followed by a 4-byte-header TLV option list extending to the
// end of the UDP payload.
type DHCPv6 struct {
	layer.Base
	MsgType       uint8
	TransactionID uint32 // low 24 bits significant; non-relay messages only
	HopCount      uint8  // relay messages only
	LinkAddr      addr.IPv6
	PeerAddr      addr.IPv6
	Options       option.List
}

func (d *DHCPv6) Kind() layer.Kind { return layer.KindDHCPv6 }

func (d *DHCPv6) fixedHeaderSize() int {
	if isDHCPv6RelayType(d.MsgType) {
		return 2 + 16 + 16
	}
	return 4
}

func (d *DHCPv6) HeaderSize() int {
	return d.fixedHeaderSize() + option.EncodedLen(d.Options, dhcpv6OptionEncoding)
}
func (d *DHCPv6) TrailerSize() int { return 0 }
func (d *DHCPv6) Size() int        { return layer.SizeOf(d) }

func (d *DHCPv6) Clone() layer.Layer {
	c := *d
	c.Options = d.Options.Clone()
	c.SetInner(d.CloneInner())
	return &c
}

func (d *DHCPv6) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := d.HeaderSize()
	fixed := d.fixedHeaderSize()
	w := cursor.NewWriter(buf[:fixed])
	if isDHCPv6RelayType(d.MsgType) {
		w.PutU8(d.MsgType)
		w.PutU8(d.HopCount)
		w.PutBytes(d.LinkAddr[:])
		w.PutBytes(d.PeerAddr[:])
	} else {
		w.PutU8(d.MsgType)
		w.PutU24(d.TransactionID & 0xFFFFFF)
	}
	if err := option.Encode(buf[fixed:h], d.Options, dhcpv6OptionEncoding); err != nil {
		return err
	}
	if in := d.Inner(); in != nil {
		return in.Serialize(buf[h:], d, total)
	}
	return nil
}

// NewDHCPv6FromBytes dissects a DHCPv6 message, following
// original_source/src/dhcpv6.cpp's constructor: read the message type,
// branch on whether it is a relay type to size the fixed header, then
// decode options to the end of the buffer.
func NewDHCPv6FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: DHCPv6 header needs at least 2 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	msgType, _ := r.U8()
	d := &DHCPv6{MsgType: msgType}

	if isDHCPv6RelayType(msgType) {
		hop, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("%w: DHCPv6 relay message truncated", neterr.ErrMalformedPacket)
		}
		d.HopCount = hop
		linkB, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: DHCPv6 relay message missing link-address", neterr.ErrMalformedPacket)
		}
		d.LinkAddr = addr.IPv6FromBytes(linkB)
		peerB, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: DHCPv6 relay message missing peer-address", neterr.ErrMalformedPacket)
		}
		d.PeerAddr = addr.IPv6FromBytes(peerB)
	} else {
		xid, err := r.U24()
		if err != nil {
			return nil, fmt.Errorf("%w: DHCPv6 header needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
		}
		d.TransactionID = xid
	}

	opts, err := option.Decode(r.Remaining(), dhcpv6OptionEncoding)
	if err != nil {
		return nil, err
	}
	d.Options = opts
	return d, nil
}
