package tcpassembly

import (
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
)

// NewDataCallback is invoked with newly-delivered in-order bytes for one
// direction of a stream.
type NewDataCallback func(s *Stream, data []byte)

// OutOfOrderCallback is invoked when a segment arrives outside the
// flow's current window.
type OutOfOrderCallback func(s *Stream, tcp *layers.TCP)

// ClosedCallback is invoked once when a stream reaches IsFinished.
type ClosedCallback func(s *Stream)

// Stream is a bidirectional pair of TCP flows (C15): a client flow and a
// server flow, timestamps, observed link-layer addresses, callbacks, and
// an optional recovery-mode policy.
type Stream struct {
	Client *Flow
	Server *Flow

	CreatedAt  time.Time
	LastSeenAt time.Time

	// ClientHW and ServerHW are the observed link-layer source addresses
	// of the first packet seen traveling in each direction, zero until
	// observed.
	ClientHW, ServerHW addr.HW

	// PartialStream is true iff the stream was attached to mid-
	// conversation (no observed SYN).
	PartialStream bool

	OnClientData NewDataCallback
	OnServerData NewDataCallback
	OnClientOOO  OutOfOrderCallback
	OnServerOOO  OutOfOrderCallback
	OnClosed     ClosedCallback

	// AutoCleanupClient and AutoCleanupServer, when true (the default),
	// clear the corresponding flow's delivered payload after its data
	// callback returns.
	AutoCleanupClient bool
	AutoCleanupServer bool

	recoveryWindow        uint32
	recoveryRemaining     int
	recoveryOrigClientOOO OutOfOrderCallback
	recoveryOrigServerOOO OutOfOrderCallback
}

// NewStream constructs a stream from the first packet observed for a
// conversation: clientDst/serverDst are the packet's (dst, src) endpoints
// respectively, and clientSeq/serverSeq are TCP.SeqNum/TCP.AckNum of that
// first packet.
func NewStream(clientDst, serverDst addr.Endpoint, clientSeq, serverSeq uint32, partial bool, now time.Time) *Stream {
	return &Stream{
		Client:            NewFlow(clientDst, clientSeq),
		Server:            NewFlow(serverDst, serverSeq),
		CreatedAt:         now,
		LastSeenAt:        now,
		PartialStream:     partial,
		AutoCleanupClient: true,
		AutoCleanupServer: true,
	}
}

// ProcessPacket routes a captured frame containing a TCP segment to the
// matching flow (by destination address+port), advances LastSeenAt,
// invokes the configured callbacks, and returns an error only if root
// carries no TCP layer.
func (s *Stream) ProcessPacket(root layer.Layer, now time.Time) error {
	tcp, dstAddr, dstPort, srcAddr, err := extractTCP(root)
	if err != nil {
		return err
	}
	s.LastSeenAt = now

	var hw addr.HW
	if eth, ok := layer.Find(root, layer.KindEthernet).(*layers.Ethernet); ok {
		hw = eth.Src
	}

	var flow *Flow
	var isClient bool
	switch {
	case s.Client.PacketBelongs(dstAddr, dstPort):
		flow, isClient = s.Client, true
		if s.ClientHW == (addr.HW{}) {
			s.ClientHW = hw
		}
	case s.Server.PacketBelongs(dstAddr, dstPort):
		flow, isClient = s.Server, false
		if s.ServerHW == (addr.HW{}) {
			s.ServerHW = hw
		}
	default:
		// Packet does not belong to either observed direction; ignore.
		_ = srcAddr
		return nil
	}

	result := flow.ProcessSegment(tcp)

	if s.inRecovery() {
		s.handleRecovery(isClient, flow, tcp, result)
	}

	if result.OutOfOrder {
		s.fireOOO(isClient, tcp)
	}
	if result.DataDelivered {
		s.fireData(isClient, flow)
	}

	if s.IsFinished() && s.OnClosed != nil {
		s.OnClosed(s)
	}
	return nil
}

func (s *Stream) fireData(isClient bool, flow *Flow) {
	if isClient {
		if s.OnClientData != nil {
			s.OnClientData(s, flow.Data().Payload())
		}
		if s.AutoCleanupClient {
			flow.Data().Consume(len(flow.Data().Payload()))
		}
		return
	}
	if s.OnServerData != nil {
		s.OnServerData(s, flow.Data().Payload())
	}
	if s.AutoCleanupServer {
		flow.Data().Consume(len(flow.Data().Payload()))
	}
}

func (s *Stream) fireOOO(isClient bool, tcp *layers.TCP) {
	if isClient {
		if s.OnClientOOO != nil {
			s.OnClientOOO(s, tcp)
		}
		return
	}
	if s.OnServerOOO != nil {
		s.OnServerOOO(s, tcp)
	}
}

// IsFinished reports whether the stream has reached a terminal state:
// RST on either side, or FIN_SENT on both.
func (s *Stream) IsFinished() bool {
	if s.Client.State() == StateRstSent || s.Server.State() == StateRstSent {
		return true
	}
	return s.Client.State() == StateFinSent && s.Server.State() == StateFinSent
}

// EnableRecoveryMode installs a policy that bridges a hole when the next
// out-of-order segment in a direction arrives within
// (currentSeq, currentSeq+window]: it advances that flow's sequence
// number to the segment's own sequence instead of waiting for the
// missing bytes, and delivers the segment. The policy runs inside
// ProcessPacket ahead of the out-of-order callbacks. It ends after two
// out-of-window segments, counted across both directions, at which point
// OnClientOOO and OnServerOOO are reset to the values they held when
// recovery was enabled.
func (s *Stream) EnableRecoveryMode(window uint32) {
	s.recoveryWindow = window
	s.recoveryRemaining = 2
	s.recoveryOrigClientOOO = s.OnClientOOO
	s.recoveryOrigServerOOO = s.OnServerOOO
}

func (s *Stream) inRecovery() bool { return s.recoveryRemaining > 0 }

// handleRecovery implements the bridging/countdown policy described on
// EnableRecoveryMode, called before the ordinary OOO callback fires.
func (s *Stream) handleRecovery(isClient bool, flow *Flow, tcp *layers.TCP, result ProcessResult) {
	if !result.OutOfOrder {
		return
	}
	current := flow.Data().SeqNumber()
	recoveryEnd := current + s.recoveryWindow
	if SeqGreater(tcp.SeqNum, current) && SeqLessEq(tcp.SeqNum, recoveryEnd) {
		flow.Data().AdvanceSequence(tcp.SeqNum)
		// AdvanceSequence discards the chunk just buffered at tcp.SeqNum;
		// feed it again so it is delivered from the new sequence.
		if !flow.IgnoreData && flow.Data().ProcessPayload(tcp.SeqNum, tcpPayload(tcp)) {
			s.fireData(isClient, flow)
		}
		return
	}
	s.recoveryRemaining--
	if s.recoveryRemaining <= 0 {
		s.OnClientOOO = s.recoveryOrigClientOOO
		s.OnServerOOO = s.recoveryOrigServerOOO
	}
	_ = isClient
}

// extractTCP finds the TCP layer in root along with the destination
// (address, port) and source address the packet was addressed between,
// used to route the packet to the matching flow.
func extractTCP(root layer.Layer) (tcp *layers.TCP, dstAddr string, dstPort uint16, srcAddr string, err error) {
	t, ok := layer.Find(root, layer.KindTCP).(*layers.TCP)
	if !ok {
		return nil, "", 0, "", errInvalidPacketNoTCP
	}
	if ip4, ok := layer.Find(root, layer.KindIPv4).(*layers.IPv4); ok {
		return t, ip4.Dst.String(), uint16(t.DstPort), ip4.Src.String(), nil
	}
	if ip6, ok := layer.Find(root, layer.KindIPv6).(*layers.IPv6); ok {
		return t, ip6.Dst.String(), uint16(t.DstPort), ip6.Src.String(), nil
	}
	return nil, "", 0, "", errInvalidPacketNoTCP
}
