package layers

import (
	"fmt"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/neterr"
)

// Dot11TagRSN is the tag number (id 48) an RSN Information Element carries
// inside a management frame's tagged-parameter region.
const Dot11TagRSN uint32 = 48

// CipherSuite and AKMSuite are OUI+suite-type pairs, the shared shape of
// RSN's pairwise-cipher and AKM-suite list entries.
type CipherSuite struct {
	OUI       [3]byte
	SuiteType uint8
}

type AKMSuite struct {
	OUI       [3]byte
	SuiteType uint8
}

// RSNInformationElement is the decoded form of a tag-48 RSN IE: a fixed
// 8-byte prefix (version, group-cipher OUI+suite-type), variable
// pairwise-cipher and AKM-suite lists each prefixed by a 16-bit count, and
// a trailing 16-bit RSN capabilities field. The PMKID list and group
// management cipher suite RSN allows after capabilities are not modeled:
// no component in this module needs them.
type RSNInformationElement struct {
	Version         uint16
	GroupCipher     CipherSuite
	PairwiseCiphers []CipherSuite
	AKMSuites       []AKMSuite
	Capabilities    uint16
}

func decodeSuiteList4(r *cursor.Reader, n int) ([][4]byte, error) {
	out := make([][4]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := r.Bytes(4)
		if err != nil {
			return nil, err
		}
		var s [4]byte
		copy(s[:], b)
		out = append(out, s)
	}
	return out, nil
}

// DecodeRSN parses an RSN Information Element's value bytes (the tag
// payload, not including the tag-number/tag-length header).
func DecodeRSN(data []byte) (RSNInformationElement, error) {
	if len(data) < 8 {
		return RSNInformationElement{}, fmt.Errorf("%w: RSN IE needs 8 bytes, have %d", neterr.ErrMalformedOption, len(data))
	}
	r := cursor.NewReader(data)
	version, _ := r.U16()
	groupOUI, _ := r.Bytes(3)
	groupType, _ := r.U8()

	rsn := RSNInformationElement{Version: version}
	copy(rsn.GroupCipher.OUI[:], groupOUI)
	rsn.GroupCipher.SuiteType = groupType

	if r.Len() == 0 {
		return rsn, nil
	}
	pairwiseCount, err := r.U16()
	if err != nil {
		return rsn, fmt.Errorf("%w: RSN IE pairwise cipher count truncated", neterr.ErrMalformedOption)
	}
	pairwise, err := decodeSuiteList4(r, int(pairwiseCount))
	if err != nil {
		return rsn, fmt.Errorf("%w: RSN IE pairwise cipher list truncated", neterr.ErrMalformedOption)
	}
	for _, s := range pairwise {
		rsn.PairwiseCiphers = append(rsn.PairwiseCiphers, CipherSuite{OUI: [3]byte{s[0], s[1], s[2]}, SuiteType: s[3]})
	}

	if r.Len() == 0 {
		return rsn, nil
	}
	akmCount, err := r.U16()
	if err != nil {
		return rsn, fmt.Errorf("%w: RSN IE AKM suite count truncated", neterr.ErrMalformedOption)
	}
	akms, err := decodeSuiteList4(r, int(akmCount))
	if err != nil {
		return rsn, fmt.Errorf("%w: RSN IE AKM suite list truncated", neterr.ErrMalformedOption)
	}
	for _, s := range akms {
		rsn.AKMSuites = append(rsn.AKMSuites, AKMSuite{OUI: [3]byte{s[0], s[1], s[2]}, SuiteType: s[3]})
	}

	if r.Len() >= 2 {
		caps, _ := r.U16()
		rsn.Capabilities = caps
	}
	return rsn, nil
}

// EncodeRSN serializes an RSN Information Element's value bytes. The
// pairwise-cipher list, AKM-suite list, and capabilities field are each
// only present if a later field needs them too, since the IE is truncated
// after whichever field the sender last cared to set (RSN's defined
// truncation rule).
func EncodeRSN(rsn RSNInformationElement) []byte {
	hasCaps := rsn.Capabilities != 0
	hasAKM := hasCaps || len(rsn.AKMSuites) > 0
	hasPairwise := hasAKM || len(rsn.PairwiseCiphers) > 0

	n := 8
	if hasPairwise {
		n += 2 + 4*len(rsn.PairwiseCiphers)
	}
	if hasAKM {
		n += 2 + 4*len(rsn.AKMSuites)
	}
	if hasCaps {
		n += 2
	}

	buf := make([]byte, n)
	w := cursor.NewWriter(buf)
	w.PutU16(rsn.Version)
	w.PutBytes(rsn.GroupCipher.OUI[:])
	w.PutU8(rsn.GroupCipher.SuiteType)
	if hasPairwise {
		w.PutU16(uint16(len(rsn.PairwiseCiphers)))
		for _, s := range rsn.PairwiseCiphers {
			w.PutBytes(s.OUI[:])
			w.PutU8(s.SuiteType)
		}
	}
	if hasAKM {
		w.PutU16(uint16(len(rsn.AKMSuites)))
		for _, s := range rsn.AKMSuites {
			w.PutBytes(s.OUI[:])
			w.PutU8(s.SuiteType)
		}
	}
	if hasCaps {
		w.PutU16(rsn.Capabilities)
	}
	return buf
}
