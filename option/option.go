// Package option implements the generic TLV/TV option container (C5) shared
// by IPv4, TCP, IPv6 extension headers, ICMPv6, 802.11 tagged parameters,
// and PPPoE discovery tags. Each protocol supplies its own LengthEncoding
// and single-byte-option id set; this package owns only the container and
// the encode/decode mechanics common to all of them.
package option

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/neterr"
)

// Option is one TLV entry: a protocol-specific id and its payload bytes.
// The payload never includes the id or length fields themselves.
type Option struct {
	ID   uint32
	Data []byte
}

// List is an ordered sequence of options, with accessors by id.
type List struct {
	Options []Option
}

// Get returns the first option with the given id.
func (l List) Get(id uint32) (Option, error) {
	for _, o := range l.Options {
		if o.ID == id {
			return o, nil
		}
	}
	return Option{}, fmt.Errorf("%w: option id %d", neterr.ErrOptionNotFound, id)
}

// GetAll returns every option with the given id, for protocols like TCP
// SACK or 802.11 tagged parameters where repetition is meaningful.
func (l List) GetAll(id uint32) []Option {
	var out []Option
	for _, o := range l.Options {
		if o.ID == id {
			out = append(out, o)
		}
	}
	return out
}

// Add appends an option.
func (l *List) Add(id uint32, data []byte) {
	l.Options = append(l.Options, Option{ID: id, Data: append([]byte(nil), data...)})
}

// Clone deep-copies the list.
func (l List) Clone() List {
	out := List{Options: make([]Option, len(l.Options))}
	for i, o := range l.Options {
		out.Options[i] = Option{ID: o.ID, Data: append([]byte(nil), o.Data...)}
	}
	return out
}

// LengthEncoding describes how a protocol encodes an option's length field,
// and which single-byte ids (if any) carry no length or payload at all
// (e.g. IPv4/TCP EOL=0, NOP=1).
type LengthEncoding struct {
	// IDWidth is the width in bytes of the id field (1 for IPv4/TCP and
	// the 802.11 tag number; 2 for PPPoE tags and DHCPv6 options).
	IDWidth int

	// LengthAbsent, when true, means options carry no length field at
	// all and Fixed gives each option's payload length directly (used
	// nowhere in this module's built-in protocols, but supported for
	// completeness).
	LengthAbsent bool

	// Fixed is consulted when LengthAbsent is true: payload length for
	// a given id.
	Fixed func(id uint32) (int, bool)

	// SingleByte reports whether an id's option is exactly one byte
	// (the id itself) with no length or payload, e.g. IPv4/TCP EOL/NOP.
	SingleByte func(id uint32) bool

	// LengthIncludesHeader, when true, means the encoded length field
	// counts the id and length-field bytes themselves (IPv4 and TCP TLV
	// options); when false, the length field counts payload bytes only.
	LengthIncludesHeader bool

	// LengthUnit8Bytes, when true, means the length field is measured in
	// 8-byte units (ICMPv6 option TLVs): payload = 8*length - headerLen.
	LengthUnit8Bytes bool

	// LengthWidth is the width in bytes of the length field (1 for
	// IPv4/TCP/PPPoE-tag-length-as-byte protocols except PPPoE which
	// uses 2; ICMPv6 uses 1 but in 8-byte units).
	LengthWidth int
}

// headerLen returns the number of bytes a non-single-byte option's id+length
// fields occupy.
func (e LengthEncoding) headerLen() int { return e.IDWidth + e.LengthWidth }

// Decode parses a TLV option region from data until exhausted, per e's
// rules. It reads all of data, so callers that embed an option region
// inside a larger fixed-size header pass the exact slice to avoid
// over-reading.
func Decode(data []byte, e LengthEncoding) (List, error) {
	var list List
	r := cursor.NewReader(data)
	for r.Len() > 0 {
		idStart := r.Offset()
		id, err := readWidth(r, e.IDWidth)
		if err != nil {
			return list, err
		}

		if e.SingleByte != nil && e.SingleByte(id) {
			list.Options = append(list.Options, Option{ID: id})
			continue
		}

		if e.LengthAbsent {
			n := 0
			if e.Fixed != nil {
				if fl, ok := e.Fixed(id); ok {
					n = fl
				}
			}
			payload, err := r.Bytes(n)
			if err != nil {
				return list, fmt.Errorf("%w: option %d truncated", neterr.ErrMalformedOption, id)
			}
			list.Options = append(list.Options, Option{ID: id, Data: append([]byte(nil), payload...)})
			continue
		}

		lenRaw, err := readWidth(r, e.LengthWidth)
		if err != nil {
			return list, fmt.Errorf("%w: option %d missing length", neterr.ErrMalformedOption, id)
		}

		var payloadLen int
		switch {
		case e.LengthUnit8Bytes:
			payloadLen = int(lenRaw)*8 - e.headerLen()
		case e.LengthIncludesHeader:
			payloadLen = int(lenRaw) - e.headerLen()
		default:
			payloadLen = int(lenRaw)
		}
		if payloadLen < 0 {
			return list, fmt.Errorf("%w: option %d declares length %d shorter than its own header", neterr.ErrMalformedOption, id, lenRaw)
		}

		payload, err := r.Bytes(payloadLen)
		if err != nil {
			return list, fmt.Errorf("%w: option %d declares %d bytes past end (start offset %d)", neterr.ErrMalformedOption, id, payloadLen, idStart)
		}
		list.Options = append(list.Options, Option{ID: id, Data: append([]byte(nil), payload...)})
	}
	return list, nil
}

// EncodedLen returns the number of bytes Encode will write for list, used
// by callers computing HeaderSize before allocating a serialize buffer.
func EncodedLen(list List, e LengthEncoding) int {
	n := 0
	for _, o := range list.Options {
		if e.SingleByte != nil && e.SingleByte(o.ID) {
			n += e.IDWidth
			continue
		}
		if e.LengthAbsent {
			n += e.IDWidth + len(o.Data)
			continue
		}
		n += e.headerLen() + len(o.Data)
	}
	return n
}

// Encode writes list into buf (exactly EncodedLen(list, e) bytes) per e's
// rules.
func Encode(buf []byte, list List, e LengthEncoding) error {
	w := cursor.NewWriter(buf)
	for _, o := range list.Options {
		writeWidth(w, e.IDWidth, o.ID)

		if e.SingleByte != nil && e.SingleByte(o.ID) {
			continue
		}
		if e.LengthAbsent {
			w.PutBytes(o.Data)
			continue
		}

		var lenField int
		switch {
		case e.LengthUnit8Bytes:
			lenField = (len(o.Data) + e.headerLen()) / 8
		case e.LengthIncludesHeader:
			lenField = len(o.Data) + e.headerLen()
		default:
			lenField = len(o.Data)
		}
		writeWidth(w, e.LengthWidth, uint32(lenField))
		w.PutBytes(o.Data)
	}
	return nil
}

func readWidth(r *cursor.Reader, width int) (uint32, error) {
	switch width {
	case 1:
		v, err := r.U8()
		return uint32(v), err
	case 2:
		v, err := r.U16()
		return uint32(v), err
	case 4:
		return r.U32()
	default:
		return 0, fmt.Errorf("option: unsupported field width %d", width)
	}
}

func writeWidth(w *cursor.Writer, width int, v uint32) {
	switch width {
	case 1:
		w.PutU8(uint8(v))
	case 2:
		w.PutU16(uint16(v))
	case 4:
		w.PutU32(v)
	default:
		panic(fmt.Sprintf("option: unsupported field width %d", width))
	}
}
