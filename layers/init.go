package layers

import (
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/registry"
)

// init populates registry.Default with every built-in (parent-kind, id)
// dispatch mapping this module ships, per spec.md §4.2: DLT → outermost
// link layer, EtherType → link/network layer, IP protocol number →
// transport/network/extension layer. User code may call
// registry.Default.Register to add or override entries before the first
// Dissect call; a late caller sharing a Registry across goroutines must
// still finish registering before any concurrent Dissect begins.
func init() {
	reg := registry.Default

	reg.Register(layer.KindRoot, uint32(registry.DLTEN10MB), NewEthernetFromBytes)
	reg.Register(layer.KindRoot, uint32(registry.DLTNull), NewLoopbackFromBytes)
	reg.Register(layer.KindRoot, uint32(registry.DLTLinuxSLL), NewSLLFromBytes)
	reg.Register(layer.KindRoot, uint32(registry.DLTIEEE80211), NewDot11FromBytes)
	reg.Register(layer.KindRoot, uint32(registry.DLTIEEE80211Radio), NewRadioTapFromBytes)
	reg.Register(layer.KindRoot, uint32(registry.DLTPPI), NewPPIFromBytes)

	registerEtherTypes(reg, layer.KindEthernet)
	registerEtherTypes(reg, layer.KindDot1Q)
	registerEtherTypes(reg, layer.KindLLC)
	registerEtherTypes(reg, layer.KindSLL)

	registerIPProtocols(reg, layer.KindIPv4)
	registerIPProtocols(reg, layer.KindIPv6)
	registerIPProtocols(reg, layer.KindIPv6HopByHop)
	registerIPProtocols(reg, layer.KindIPv6Routing)
	registerIPProtocols(reg, layer.KindIPv6Fragment)
	registerIPProtocols(reg, layer.KindIPv6Destination)
	registerIPProtocols(reg, layer.KindAH)

	// PPI wraps a nested DLT, most commonly 802.11.
	reg.Register(layer.KindPPI, uint32(registry.DLTIEEE80211), NewDot11FromBytes)
	reg.Register(layer.KindPPI, uint32(registry.DLTEN10MB), NewEthernetFromBytes)

	// UDP's next-protocol indicator is a well-known port rather than a
	// header-carried id; dispatchUDPPayload keys the same registry table
	// on layer.KindUDP with the port as id.
	reg.Register(layer.KindUDP, DHCPv4ServerPort, NewDHCPv4FromBytes)
	reg.Register(layer.KindUDP, DHCPv4ClientPort, NewDHCPv4FromBytes)
	reg.Register(layer.KindUDP, DHCPv6ServerPort, NewDHCPv6FromBytes)
	reg.Register(layer.KindUDP, DHCPv6ClientPort, NewDHCPv6FromBytes)
}

// registerEtherTypes installs the EtherType → layer mappings shared by
// every parent kind whose next-protocol field is an EtherType (Ethernet
// II, 802.1Q, LLC/SNAP's embedded protocol ID, and Linux SLL's protocol
// field).
func registerEtherTypes(reg *registry.Registry, parent layer.Kind) {
	reg.Register(parent, uint32(EtherTypeIPv4), NewIPv4FromBytes)
	reg.Register(parent, uint32(EtherTypeIPv6), NewIPv6FromBytes)
	reg.Register(parent, uint32(EtherTypeARP), NewARPFromBytes)
	reg.Register(parent, uint32(EtherTypeDot1Q), NewDot1QFromBytes)
	reg.Register(parent, uint32(EtherTypeMPLSUnicast), NewMPLSFromBytes)
	reg.Register(parent, uint32(EtherTypeMPLSMulticast), NewMPLSFromBytes)
	reg.Register(parent, uint32(EtherTypePPPoEDiscover), NewPPPoEDiscoveryFromBytes)
	reg.Register(parent, uint32(EtherTypePPPoESession), NewPPPoESessionFromBytes)
}

// registerIPProtocols installs the IP-protocol-number → layer mappings
// shared by every parent kind whose next-protocol field is an IP protocol
// number (IPv4, IPv6, each of its extension headers, and AH).
func registerIPProtocols(reg *registry.Registry, parent layer.Kind) {
	reg.Register(parent, uint32(IPProtocolTCP), NewTCPFromBytes)
	reg.Register(parent, uint32(IPProtocolUDP), NewUDPFromBytes)
	reg.Register(parent, uint32(IPProtocolICMPv4), NewICMPv4FromBytes)
	reg.Register(parent, uint32(IPProtocolICMPv6), NewICMPv6FromBytes)
	reg.Register(parent, uint32(IPProtocolIPv6), NewIPv6FromBytes)
	reg.Register(parent, uint32(IPProtocolIPIP), NewIPv4FromBytes)
	reg.Register(parent, uint32(IPProtocolAH), NewAHFromBytes)
	reg.Register(parent, uint32(IPProtocolESP), NewESPFromBytes)
	reg.Register(parent, uint32(IPProtocolHopByHop), NewIPv6HopByHopFromBytes)
	reg.Register(parent, uint32(IPProtocolRouting), NewIPv6RoutingFromBytes)
	reg.Register(parent, uint32(IPProtocolFragment), NewIPv6FragmentFromBytes)
	reg.Register(parent, uint32(IPProtocolDestOptions), NewIPv6DestinationFromBytes)
}
