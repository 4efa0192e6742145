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

// 802.11 management frame subtypes this module parses a fixed-parameter
// block for; any other subtype carries no fixed parameters of its own.
const (
	Dot11MgmtAssocRequest    uint8 = 0x0
	Dot11MgmtAssocResponse   uint8 = 0x1
	Dot11MgmtReassocRequest  uint8 = 0x2
	Dot11MgmtReassocResponse uint8 = 0x3
	Dot11MgmtProbeRequest    uint8 = 0x4
	Dot11MgmtProbeResponse   uint8 = 0x5
	Dot11MgmtBeacon          uint8 = 0x8
	Dot11MgmtDisassoc        uint8 = 0xA
	Dot11MgmtAuth            uint8 = 0xB
	Dot11MgmtDeauth          uint8 = 0xC
)

var dot11TagEncoding = option.LengthEncoding{
	IDWidth:     1,
	LengthWidth: 1,
}

// dot11MgmtFixedParamLen returns the number of bytes the subtype's fixed-parameter
// block occupies, ahead of the tagged-parameter region.
func dot11MgmtFixedParamLen(subtype uint8) int {
	switch subtype {
	case Dot11MgmtAssocRequest:
		return 4 // capability info + listen interval
	case Dot11MgmtAssocResponse, Dot11MgmtReassocResponse:
		return 6 // capability info + status code + AID
	case Dot11MgmtReassocRequest:
		return 10 // capability info + listen interval + current AP address
	case Dot11MgmtProbeRequest:
		return 0
	case Dot11MgmtProbeResponse, Dot11MgmtBeacon:
		return 12 // timestamp + beacon interval + capability info
	case Dot11MgmtDisassoc, Dot11MgmtDeauth:
		return 2 // reason code
	case Dot11MgmtAuth:
		return 6 // algorithm + sequence number + status code
	default:
		return 0
	}
}

// Dot11Management is a management-type 802.11 frame's remainder past the
// Dot11 base header: address 2/3, sequence control, a subtype-specific
// fixed-parameter block left undecoded (its layout varies too much per
// subtype to be worth a typed struct per field; FixedParams callers
// interpret it themselves), and the tagged-parameter region.
type Dot11Management struct {
	layer.Base
	Subtype      uint8
	Addr2, Addr3 addr.HW
	SeqNum       uint16
	FragNum      uint8
	FixedParams  []byte
	Tagged       option.List
}

func (m *Dot11Management) Kind() layer.Kind { return layer.KindDot11Management }

func (m *Dot11Management) HeaderSize() int {
	return 14 + len(m.FixedParams) + option.EncodedLen(m.Tagged, dot11TagEncoding)
}
func (m *Dot11Management) TrailerSize() int { return 0 }
func (m *Dot11Management) Size() int        { return layer.SizeOf(m) }

func (m *Dot11Management) Clone() layer.Layer {
	c := *m
	c.FixedParams = append([]byte(nil), m.FixedParams...)
	c.Tagged = m.Tagged.Clone()
	c.SetInner(m.CloneInner())
	return &c
}

func (m *Dot11Management) Serialize(buf []byte, parent layer.Layer, total int) error {
	h := m.HeaderSize()
	w := cursor.NewWriter(buf[:h])
	w.PutBytes(m.Addr2[:])
	w.PutBytes(m.Addr3[:])
	w.PutU16(uint16(m.SeqNum)<<4 | uint16(m.FragNum)&0xF)
	w.PutBytes(m.FixedParams)

	if err := option.Encode(buf[14+len(m.FixedParams):h], m.Tagged, dot11TagEncoding); err != nil {
		return err
	}

	if in := m.Inner(); in != nil {
		return in.Serialize(buf[h:], m, total)
	}
	return nil
}

// RSNInfo returns the decoded RSN Information Element tagged parameter, if
// present.
func (m *Dot11Management) RSNInfo() (RSNInformationElement, bool) {
	o, err := m.Tagged.Get(Dot11TagRSN)
	if err != nil {
		return RSNInformationElement{}, false
	}
	rsn, err := DecodeRSN(o.Data)
	if err != nil {
		return RSNInformationElement{}, false
	}
	return rsn, true
}

// NewDot11ManagementFromBytes dissects a management frame's remainder
// (address 2/3 onward).
func NewDot11ManagementFromBytes(data []byte, subtype uint8, reg *registry.Registry) (layer.Layer, error) {
	if len(data) < 14 {
		return nil, fmt.Errorf("%w: 802.11 management frame needs 14 more bytes, have %d", neterr.ErrMalformedPacket, len(data))
	}
	r := cursor.NewReader(data)
	addr2, _ := r.Bytes(6)
	addr3, _ := r.Bytes(6)
	seqCtrl, _ := r.U16()

	fixedLen := dot11MgmtFixedParamLen(subtype)
	fixed, err := r.Bytes(fixedLen)
	if err != nil {
		return nil, fmt.Errorf("%w: 802.11 management subtype %d fixed-parameter block truncated", neterr.ErrMalformedPacket, subtype)
	}

	tagged, err := option.Decode(r.Remaining(), dot11TagEncoding)
	if err != nil {
		return nil, err
	}

	m := &Dot11Management{
		Subtype:     subtype,
		Addr2:       addr.HWFromBytes(addr2),
		Addr3:       addr.HWFromBytes(addr3),
		SeqNum:      seqCtrl >> 4,
		FragNum:     uint8(seqCtrl & 0xF),
		FixedParams: append([]byte(nil), fixed...),
		Tagged:      tagged,
	}
	return m, nil
}
