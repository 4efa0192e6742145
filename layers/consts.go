package layers

import "fmt"

// EtherType is the 16-bit next-protocol indicator carried by Ethernet II,
// 802.1Q, and PPPoE session headers.
type EtherType uint16

const (
	EtherTypeIPv4          EtherType = 0x0800
	EtherTypeARP           EtherType = 0x0806
	EtherTypeIPv6          EtherType = 0x86DD
	EtherTypeDot1Q         EtherType = 0x8100
	EtherTypeMPLSUnicast   EtherType = 0x8847
	EtherTypeMPLSMulticast EtherType = 0x8848
	EtherTypePPPoEDiscover EtherType = 0x8863
	EtherTypePPPoESession  EtherType = 0x8864
	EtherTypeEAPOL         EtherType = 0x888E
)

// IPProtocol is the 8-bit next-protocol indicator carried by IPv4 and every
// IPv6 extension header.
type IPProtocol uint8

const (
	IPProtocolICMPv4       IPProtocol = 1
	IPProtocolIPIP         IPProtocol = 4
	IPProtocolTCP          IPProtocol = 6
	IPProtocolUDP          IPProtocol = 17
	IPProtocolIPv6         IPProtocol = 41
	IPProtocolRouting      IPProtocol = 43
	IPProtocolFragment     IPProtocol = 44
	IPProtocolESP          IPProtocol = 50
	IPProtocolAH           IPProtocol = 51
	IPProtocolICMPv6       IPProtocol = 58
	IPProtocolNoNext       IPProtocol = 59
	IPProtocolDestOptions  IPProtocol = 60
	IPProtocolHopByHop     IPProtocol = 0
)

var etherTypeNames = map[EtherType]string{
	EtherTypeIPv4:          "IPv4",
	EtherTypeARP:           "ARP",
	EtherTypeIPv6:          "IPv6",
	EtherTypeDot1Q:         "802.1Q",
	EtherTypeMPLSUnicast:   "MPLS-Unicast",
	EtherTypeMPLSMulticast: "MPLS-Multicast",
	EtherTypePPPoEDiscover: "PPPoE-Discovery",
	EtherTypePPPoESession:  "PPPoE-Session",
	EtherTypeEAPOL:         "EAPOL",
}

// String renders the EtherType's well-known name, falling back to its
// hexadecimal value for anything unrecognized.
func (e EtherType) String() string {
	if name, ok := etherTypeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(e))
}

var ipProtocolNames = map[IPProtocol]string{
	IPProtocolHopByHop:    "HOPOPT",
	IPProtocolICMPv4:      "ICMP",
	IPProtocolIPIP:        "IPIP",
	IPProtocolTCP:         "TCP",
	IPProtocolUDP:         "UDP",
	IPProtocolIPv6:        "IPv6",
	IPProtocolRouting:     "Routing",
	IPProtocolFragment:    "Fragment",
	IPProtocolESP:         "ESP",
	IPProtocolAH:          "AH",
	IPProtocolICMPv6:      "ICMPv6",
	IPProtocolNoNext:      "NoNext",
	IPProtocolDestOptions: "DestOptions",
}

// String renders the IPProtocol's well-known name, falling back to its
// decimal value for anything unrecognized.
func (p IPProtocol) String() string {
	if name, ok := ipProtocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint8(p))
}
