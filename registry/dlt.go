package registry

// DLT is a pcap-style data-link type identifying the outermost framing of a
// captured packet, the key used against layer.KindRoot to select the first
// Constructor a Dissect call invokes.
type DLT uint32

// The DLT values this module dispatches on, numbered per the libpcap
// link-type registry.
const (
	DLTNull           DLT = 0   // BSD loopback
	DLTEN10MB         DLT = 1   // Ethernet II
	DLTIEEE80211      DLT = 105 // 802.11
	DLTLinuxSLL       DLT = 113 // Linux cooked capture
	DLTIEEE80211Radio DLT = 127 // 802.11 + RadioTap preamble
	DLTPPI            DLT = 192
)
