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

// ICMPv6 message types this module recognizes.
const (
	ICMPv6TypeDestUnreachable uint8 = 1
	ICMPv6TypePacketTooBig    uint8 = 2
	ICMPv6TypeTimeExceeded    uint8 = 3
	ICMPv6TypeParamProblem    uint8 = 4
	ICMPv6TypeEchoRequest     uint8 = 128
	ICMPv6TypeEchoReply       uint8 = 129
	ICMPv6TypeMLDQuery        uint8 = 130
	ICMPv6TypeMLDReport       uint8 = 131
	ICMPv6TypeMLDDone         uint8 = 132
	ICMPv6TypeRouterSolicit   uint8 = 133
	ICMPv6TypeRouterAdvert    uint8 = 134
	ICMPv6TypeNeighborSolicit uint8 = 135
	ICMPv6TypeNeighborAdvert  uint8 = 136
	ICMPv6TypeRedirect        uint8 = 137
	ICMPv6TypeMLDv2Report     uint8 = 143
)

// ICMPv6 Neighbor Discovery option ids, the same space ND messages share
// (source/target link-layer address, prefix information, MTU, redirected
// header).
const (
	ICMPv6OptSourceLinkAddr  uint32 = 1
	ICMPv6OptTargetLinkAddr  uint32 = 2
	ICMPv6OptPrefixInfo      uint32 = 3
	ICMPv6OptRedirectedHdr   uint32 = 4
	ICMPv6OptMTU             uint32 = 5
)

// icmpv6OptionEncoding implements spec.md §4.3's ICMPv6 option rule: the
// length field is measured in 8-byte units including the 2-byte id+length
// header, so payload = 8*length - 2.
var icmpv6OptionEncoding = option.LengthEncoding{
	IDWidth:          1,
	LengthWidth:      1,
	LengthUnit8Bytes: true,
}

// MLDv2AddressRecord is one repeated multicast-address record in an
// MLDv2 Report.
type MLDv2AddressRecord struct {
	RecordType        uint8
	MulticastAddress  addr.IPv6
	Sources           []addr.IPv6
	AuxData           []byte
}

func (r MLDv2AddressRecord) encodedLen() int {
	return 4 + 16 + 16*len(r.Sources) + len(r.AuxData)
}

// ICMPv6 is the ICMPv6 header. Which of the type-specific fields below
// apply is determined by Type, following spec.md §4.3's per-subtype
// layout: echo request/reply carry an identifier+sequence; destination
// unreachable/packet-too-big/time-exceeded/parameter-problem embed the
// offending datagram as Inner; neighbor-discovery messages carry a target
// (and, for Redirect, destination) address plus a tagged option list;
// MLD messages carry a multicast address and, for queries, an optional
// MLDv2 source list, and MLDv2 Report carries repeated address records.
type ICMPv6 struct {
	layer.Base
	Type uint8
	Code uint8

	Identifier uint16 // Echo
	Sequence   uint16 // Echo

	MTU     uint32 // PacketTooBig
	Pointer uint32 // ParamProblem

	CurHopLimit    uint8  // RouterAdvert
	RAFlags        uint8  // RouterAdvert
	RouterLifetime uint16 // RouterAdvert
	ReachableTime  uint32 // RouterAdvert
	RetransTimer   uint32 // RouterAdvert

	NDFlags            uint8     // NeighborAdvert (R/S/O in top 3 bits)
	TargetAddress      addr.IPv6 // NeighborSolicit/NeighborAdvert/Redirect
	DestinationAddress addr.IPv6 // Redirect
	Options            option.List

	MaxResponseDelay  uint16    // MLD Query/Report/Done
	MulticastAddress  addr.IPv6 // MLD Query/Report/Done
	MLDv2QuerierFlags uint8     // MLDv2 Query
	QQIC              uint8     // MLDv2 Query
	Sources           []addr.IPv6 // MLDv2 Query

	Records []MLDv2AddressRecord // MLDv2 Report

	Extension *ICMPExtensionStructure // TimeExceeded only, RFC 4884
}

func (i *ICMPv6) Kind() layer.Kind { return layer.KindICMPv6 }

func (i *ICMPv6) fixedPartLen() int {
	switch i.Type {
	case ICMPv6TypeEchoRequest, ICMPv6TypeEchoReply:
		return 4
	case ICMPv6TypeDestUnreachable, ICMPv6TypeTimeExceeded:
		return 4
	case ICMPv6TypePacketTooBig, ICMPv6TypeParamProblem:
		return 4
	case ICMPv6TypeRouterSolicit:
		return 4
	case ICMPv6TypeRouterAdvert:
		return 12
	case ICMPv6TypeNeighborSolicit:
		return 4 + 16
	case ICMPv6TypeNeighborAdvert:
		return 4 + 16
	case ICMPv6TypeRedirect:
		return 4 + 16 + 16
	case ICMPv6TypeMLDQuery, ICMPv6TypeMLDReport, ICMPv6TypeMLDDone:
		if i.Type == ICMPv6TypeMLDQuery && len(i.Sources) > 0 {
			return 4 + 16 + 4 + 16*len(i.Sources)
		}
		return 4 + 16
	case ICMPv6TypeMLDv2Report:
		n := 4
		for _, r := range i.Records {
			n += r.encodedLen()
		}
		return n
	default:
		return 4
	}
}

func (i *ICMPv6) usesOptions() bool {
	switch i.Type {
	case ICMPv6TypeRouterSolicit, ICMPv6TypeRouterAdvert, ICMPv6TypeNeighborSolicit,
		ICMPv6TypeNeighborAdvert, ICMPv6TypeRedirect:
		return true
	default:
		return false
	}
}

func (i *ICMPv6) HeaderSize() int {
	h := 4 + i.fixedPartLen()
	if i.usesOptions() {
		h += option.EncodedLen(i.Options, icmpv6OptionEncoding)
	}
	return h
}

func (i *ICMPv6) TrailerSize() int {
	if i.Extension == nil {
		return 0
	}
	return i.Extension.encodedLen()
}

func (i *ICMPv6) Size() int { return layer.SizeOf(i) }

func (i *ICMPv6) Clone() layer.Layer {
	c := *i
	c.Options = i.Options.Clone()
	c.Sources = append([]addr.IPv6(nil), i.Sources...)
	c.Records = make([]MLDv2AddressRecord, len(i.Records))
	for idx, r := range i.Records {
		nr := r
		nr.Sources = append([]addr.IPv6(nil), r.Sources...)
		nr.AuxData = append([]byte(nil), r.AuxData...)
		c.Records[idx] = nr
	}
	if i.Extension != nil {
		ext := *i.Extension
		ext.Objects = append([]ICMPExtensionObject(nil), i.Extension.Objects...)
		c.Extension = &ext
	}
	c.SetInner(i.CloneInner())
	return &c
}

func (i *ICMPv6) originalDatagramWords() uint8 {
	if i.Extension == nil {
		return 0
	}
	innerSize := 0
	if in := i.Inner(); in != nil {
		innerSize = in.Size()
	}
	return uint8((innerSize + 7) / 8)
}

func (i *ICMPv6) writeFixedPart(w *cursor.Writer) {
	switch i.Type {
	case ICMPv6TypeEchoRequest, ICMPv6TypeEchoReply:
		w.PutU16(i.Identifier)
		w.PutU16(i.Sequence)
	case ICMPv6TypeDestUnreachable:
		w.PutU32(0)
	case ICMPv6TypeTimeExceeded:
		w.PutU8(0)
		w.PutU8(i.originalDatagramWords())
		w.PutU16(0)
	case ICMPv6TypePacketTooBig:
		w.PutU32(i.MTU)
	case ICMPv6TypeParamProblem:
		w.PutU32(i.Pointer)
	case ICMPv6TypeRouterSolicit:
		w.PutU32(0)
	case ICMPv6TypeRouterAdvert:
		w.PutU8(i.CurHopLimit)
		w.PutU8(i.RAFlags)
		w.PutU16(i.RouterLifetime)
		w.PutU32(i.ReachableTime)
		w.PutU32(i.RetransTimer)
	case ICMPv6TypeNeighborSolicit:
		w.PutU32(0)
		w.PutBytes(i.TargetAddress[:])
	case ICMPv6TypeNeighborAdvert:
		w.PutU8(i.NDFlags)
		w.PutU8(0)
		w.PutU16(0)
		w.PutBytes(i.TargetAddress[:])
	case ICMPv6TypeRedirect:
		w.PutU32(0)
		w.PutBytes(i.TargetAddress[:])
		w.PutBytes(i.DestinationAddress[:])
	case ICMPv6TypeMLDQuery:
		w.PutU16(i.MaxResponseDelay)
		w.PutU16(0)
		w.PutBytes(i.MulticastAddress[:])
		if len(i.Sources) > 0 {
			w.PutU8(i.MLDv2QuerierFlags)
			w.PutU8(i.QQIC)
			w.PutU16(uint16(len(i.Sources)))
			for _, s := range i.Sources {
				w.PutBytes(s[:])
			}
		}
	case ICMPv6TypeMLDReport, ICMPv6TypeMLDDone:
		w.PutU16(i.MaxResponseDelay)
		w.PutU16(0)
		w.PutBytes(i.MulticastAddress[:])
	case ICMPv6TypeMLDv2Report:
		w.PutU16(0)
		w.PutU16(uint16(len(i.Records)))
		for _, r := range i.Records {
			w.PutU8(r.RecordType)
			w.PutU8(uint8(len(r.AuxData) / 4))
			w.PutU16(uint16(len(r.Sources)))
			w.PutBytes(r.MulticastAddress[:])
			for _, s := range r.Sources {
				w.PutBytes(s[:])
			}
			w.PutBytes(r.AuxData)
		}
	default:
		w.PutU32(0)
	}
}

func (i *ICMPv6) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := i.HeaderSize()
	innerSize := 0
	if in := i.Inner(); in != nil {
		innerSize = in.Size()
	}
	trailer := i.TrailerSize()

	w := cursor.NewWriter(buf[:h])
	w.PutU8(i.Type)
	w.PutU8(i.Code)
	w.PutU16(0) // checksum placeholder
	i.writeFixedPart(w)

	if i.usesOptions() {
		if err := option.Encode(buf[4+i.fixedPartLen():h], i.Options, icmpv6OptionEncoding); err != nil {
			return err
		}
	}

	if in := i.Inner(); in != nil {
		if err := in.Serialize(buf[h:h+innerSize], i, total); err != nil {
			return err
		}
	}
	if i.Extension != nil {
		copy(buf[h+innerSize:h+innerSize+trailer], EncodeICMPExtensionStructure(*i.Extension))
	}

	pseudo := pseudoHeader(parent, uint16(h+innerSize+trailer), uint8(IPProtocolICMPv6))
	sum := cursor.ChecksumParts(pseudo, buf[:h+innerSize+trailer])
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	return nil
}

// NewICMPv6FromBytes dissects an ICMPv6 message per spec.md §4.3.
func NewICMPv6FromBytes(data []byte, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: ICMPv6 header needs 4 bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	typ, _ := r.U8()
	code, _ := r.U8()
	_, _ = r.U16() // checksum, not validated on dissect

	i := &ICMPv6{Type: typ, Code: code}
	lengthWords := uint8(0)

	switch typ {
	case ICMPv6TypeEchoRequest, ICMPv6TypeEchoReply:
		id, _ := r.U16()
		seq, _ := r.U16()
		i.Identifier, i.Sequence = id, seq
	case ICMPv6TypeTimeExceeded:
		_, _ = r.U8()
		lengthWords, _ = r.U8()
		_, _ = r.U16()
	case ICMPv6TypeDestUnreachable:
		_, _ = r.U32()
	case ICMPv6TypePacketTooBig:
		mtu, _ := r.U32()
		i.MTU = mtu
	case ICMPv6TypeParamProblem:
		ptr, _ := r.U32()
		i.Pointer = ptr
	case ICMPv6TypeRouterSolicit:
		_, _ = r.U32()
	case ICMPv6TypeRouterAdvert:
		chl, _ := r.U8()
		flags, _ := r.U8()
		lifetime, _ := r.U16()
		reachable, _ := r.U32()
		retrans, _ := r.U32()
		i.CurHopLimit, i.RAFlags, i.RouterLifetime = chl, flags, lifetime
		i.ReachableTime, i.RetransTimer = reachable, retrans
	case ICMPv6TypeNeighborSolicit:
		_, _ = r.U32()
		tgt, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ICMPv6 neighbor solicitation truncated", neterr.ErrMalformedPacket)
		}
		i.TargetAddress = addr.IPv6FromBytes(tgt)
	case ICMPv6TypeNeighborAdvert:
		flags, _ := r.U8()
		_, _ = r.U8()
		_, _ = r.U16()
		tgt, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ICMPv6 neighbor advertisement truncated", neterr.ErrMalformedPacket)
		}
		i.NDFlags = flags
		i.TargetAddress = addr.IPv6FromBytes(tgt)
	case ICMPv6TypeRedirect:
		_, _ = r.U32()
		tgt, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ICMPv6 redirect truncated", neterr.ErrMalformedPacket)
		}
		dst, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ICMPv6 redirect truncated", neterr.ErrMalformedPacket)
		}
		i.TargetAddress = addr.IPv6FromBytes(tgt)
		i.DestinationAddress = addr.IPv6FromBytes(dst)
	case ICMPv6TypeMLDQuery, ICMPv6TypeMLDReport, ICMPv6TypeMLDDone:
		delay, _ := r.U16()
		_, _ = r.U16()
		group, err := r.Bytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ICMPv6 MLD message truncated", neterr.ErrMalformedPacket)
		}
		i.MaxResponseDelay = delay
		i.MulticastAddress = addr.IPv6FromBytes(group)
		if typ == ICMPv6TypeMLDQuery && r.Len() >= 4 {
			flags, _ := r.U8()
			qqic, _ := r.U8()
			numSrc, _ := r.U16()
			i.MLDv2QuerierFlags = flags
			i.QQIC = qqic
			for n := 0; n < int(numSrc); n++ {
				src, err := r.Bytes(16)
				if err != nil {
					return nil, fmt.Errorf("%w: ICMPv6 MLDv2 query source list truncated", neterr.ErrMalformedPacket)
				}
				i.Sources = append(i.Sources, addr.IPv6FromBytes(src))
			}
		}
	case ICMPv6TypeMLDv2Report:
		_, _ = r.U16()
		numRec, _ := r.U16()
		for n := 0; n < int(numRec); n++ {
			recType, _ := r.U8()
			auxLen, _ := r.U8()
			numSrc, _ := r.U16()
			maddr, err := r.Bytes(16)
			if err != nil {
				return nil, fmt.Errorf("%w: ICMPv6 MLDv2 report record truncated", neterr.ErrMalformedPacket)
			}
			rec := MLDv2AddressRecord{RecordType: recType, MulticastAddress: addr.IPv6FromBytes(maddr)}
			for s := 0; s < int(numSrc); s++ {
				src, err := r.Bytes(16)
				if err != nil {
					return nil, fmt.Errorf("%w: ICMPv6 MLDv2 report source list truncated", neterr.ErrMalformedPacket)
				}
				rec.Sources = append(rec.Sources, addr.IPv6FromBytes(src))
			}
			aux, err := r.Bytes(int(auxLen) * 4)
			if err != nil {
				return nil, fmt.Errorf("%w: ICMPv6 MLDv2 report aux data truncated", neterr.ErrMalformedPacket)
			}
			rec.AuxData = append([]byte(nil), aux...)
			i.Records = append(i.Records, rec)
		}
		return i, nil
	default:
		_, _ = r.U32()
	}

	if i.usesOptions() {
		opts, err := option.Decode(r.Remaining(), icmpv6OptionEncoding)
		if err != nil {
			return nil, err
		}
		i.Options = opts
		return i, nil
	}

	rem := r.Remaining()
	if typ == ICMPv6TypeTimeExceeded && lengthWords > 0 {
		origLen := int(lengthWords) * 8
		if origLen < len(rem) {
			if origLen > 0 {
				i.SetInner(NewRaw(rem[:origLen]))
			}
			ext, err := DecodeICMPExtensionStructure(rem[origLen:])
			if err != nil {
				return nil, err
			}
			i.Extension = &ext
			return i, nil
		}
	}

	if len(rem) > 0 {
		i.SetInner(NewRaw(rem))
	}
	return i, nil
}
