// Package layer defines the protocol-entity contract every concrete codec in
// package layers implements: a chain of owned "inner" layers from outermost
// to innermost, uniform size/clone/serialize behavior, and kind-based
// traversal. It corresponds to the ProtocolLayer abstraction.
package layer

// Kind discriminates the closed set of concrete layer types. It plays the
// role of a sum-type tag: every constructor in package registry returns a
// Layer whose Kind() identifies which concrete type it is, letting callers
// type-switch or use Find without reflection.
type Kind int

// The closed set of layer kinds. KindRoot is never a real layer's Kind(); it
// is the synthetic "parent" used to key DLT dispatch in package registry,
// since the outermost layer of a captured frame has no enclosing layer.
const (
	KindRoot Kind = iota
	KindRaw

	KindEthernet
	KindDot3
	KindLLC
	KindLoopback
	KindSLL
	KindPPI
	KindRadioTap
	KindDot1Q
	KindMPLS
	KindPPPoEDiscovery
	KindPPPoESession

	KindARP
	KindIPv4
	KindIPv6
	KindIPv6HopByHop
	KindIPv6Routing
	KindIPv6Fragment
	KindIPv6Destination
	KindAH
	KindESP
	KindICMPv4
	KindICMPv6

	KindTCP
	KindUDP
	KindDHCPv4
	KindDHCPv6

	KindDot11
	KindDot11Management
	KindDot11Control
	KindDot11Data
)

//go:generate stringer -type=Kind

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

var kindNames = map[Kind]string{
	KindRoot:            "Root",
	KindRaw:             "Raw",
	KindEthernet:        "Ethernet",
	KindDot3:            "Dot3",
	KindLLC:             "LLC",
	KindLoopback:        "Loopback",
	KindSLL:             "SLL",
	KindPPI:             "PPI",
	KindRadioTap:        "RadioTap",
	KindDot1Q:           "Dot1Q",
	KindMPLS:            "MPLS",
	KindPPPoEDiscovery:  "PPPoEDiscovery",
	KindPPPoESession:    "PPPoESession",
	KindARP:             "ARP",
	KindIPv4:            "IPv4",
	KindIPv6:            "IPv6",
	KindIPv6HopByHop:    "IPv6HopByHop",
	KindIPv6Routing:     "IPv6Routing",
	KindIPv6Fragment:    "IPv6Fragment",
	KindIPv6Destination: "IPv6Destination",
	KindAH:              "AH",
	KindESP:             "ESP",
	KindICMPv4:          "ICMPv4",
	KindICMPv6:          "ICMPv6",
	KindTCP:             "TCP",
	KindUDP:             "UDP",
	KindDHCPv4:          "DHCPv4",
	KindDHCPv6:          "DHCPv6",
	KindDot11:           "Dot11",
	KindDot11Management: "Dot11Management",
	KindDot11Control:    "Dot11Control",
	KindDot11Data:       "Dot11Data",
}

// Category is a bitmask of abstract layer groupings, used by matchers that
// accept a whole family rather than one concrete Kind (e.g. "any 802.11
// management frame").
type Category uint32

const (
	CategoryNone Category = 0
	CategoryLink Category = 1 << iota
	CategoryNetwork
	CategoryTransport
	CategoryDot11Management
	CategoryDot11Control
	CategoryDot11Data
)

var kindCategories = map[Kind]Category{
	KindEthernet:        CategoryLink,
	KindDot3:            CategoryLink,
	KindLLC:             CategoryLink,
	KindLoopback:        CategoryLink,
	KindSLL:             CategoryLink,
	KindPPI:             CategoryLink,
	KindRadioTap:        CategoryLink,
	KindDot1Q:           CategoryLink,
	KindMPLS:            CategoryLink,
	KindPPPoEDiscovery:  CategoryLink,
	KindPPPoESession:    CategoryLink,
	KindARP:             CategoryNetwork,
	KindIPv4:            CategoryNetwork,
	KindIPv6:            CategoryNetwork,
	KindIPv6HopByHop:    CategoryNetwork,
	KindIPv6Routing:     CategoryNetwork,
	KindIPv6Fragment:    CategoryNetwork,
	KindIPv6Destination: CategoryNetwork,
	KindAH:              CategoryNetwork,
	KindESP:             CategoryNetwork,
	KindICMPv4:          CategoryNetwork,
	KindICMPv6:          CategoryNetwork,
	KindTCP:             CategoryTransport,
	KindUDP:             CategoryTransport,
	KindDot11:           CategoryLink,
	KindDot11Management: CategoryDot11Management,
	KindDot11Control:    CategoryDot11Control,
	KindDot11Data:       CategoryDot11Data,
}

// CategoryOf returns the abstract category a concrete kind belongs to, or
// CategoryNone if it has none.
func CategoryOf(k Kind) Category { return kindCategories[k] }

// Layer is the contract every concrete protocol entity implements: header
// and trailer sizes, total size, the owned inner chain, deep clone, and
// serialization into a caller-supplied, exactly-sized buffer.
type Layer interface {
	// Kind identifies the concrete type.
	Kind() Kind

	// HeaderSize is the number of bytes this layer contributes at the
	// front of its slot.
	HeaderSize() int

	// TrailerSize is the number of bytes this layer contributes at the
	// back of its slot (0 for most layers; nonzero for 802.1Q minimum-
	// frame padding and similar).
	TrailerSize() int

	// Size is HeaderSize + (Inner() != nil ? Inner().Size() : 0) +
	// TrailerSize.
	Size() int

	// Inner returns the owned next-protocol layer, or nil if this is the
	// innermost layer of the chain.
	Inner() Layer

	// SetInner replaces the owned inner layer, transferring ownership.
	SetInner(inner Layer)

	// Clone deep-copies this layer and its entire inner chain.
	Clone() Layer

	// Serialize writes this layer's header, then recurses into Inner,
	// then writes this layer's trailer, into buf (exactly Size() bytes
	// long). parent is the immediate enclosing layer, or nil at the
	// root; total is the size of the whole outermost chain, used by
	// layers like 802.1Q that pad relative to the complete frame.
	Serialize(buf []byte, parent Layer, total int) error
}

// Find walks the inner chain starting at l and returns the first layer
// whose Kind matches k, or nil. It satisfies the find_by_kind contract.
func Find(l Layer, k Kind) Layer {
	for cur := l; cur != nil; cur = cur.Inner() {
		if cur.Kind() == k {
			return cur
		}
	}
	return nil
}

// RFind is an alias of Find: the chain is singly linked, so "recursive
// through the inner chain" and "find starting here" are the same walk.
func RFind(l Layer, k Kind) Layer { return Find(l, k) }

// MatchCategory walks the inner chain starting at l and returns the first
// layer whose Kind belongs to category c, or nil.
func MatchCategory(l Layer, c Category) Layer {
	for cur := l; cur != nil; cur = cur.Inner() {
		if CategoryOf(cur.Kind())&c != 0 {
			return cur
		}
	}
	return nil
}

// SizeOf computes size() = header_size() + (inner ? inner.size() : 0) +
// trailer_size() for any Layer, the formula every concrete type's own
// Size() method delegates to.
func SizeOf(l Layer) int {
	s := l.HeaderSize() + l.TrailerSize()
	if in := l.Inner(); in != nil {
		s += in.Size()
	}
	return s
}

// Serialize allocates a buffer of root.Size() bytes and serializes the full
// chain into it, the entry point package netlayers exposes as Serialize.
func Serialize(root Layer) ([]byte, error) {
	total := root.Size()
	buf := make([]byte, total)
	if err := root.Serialize(buf, nil, total); err != nil {
		return nil, err
	}
	return buf, nil
}
