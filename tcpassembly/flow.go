package tcpassembly

import (
	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layers"
)

// State is a TCP flow's position in a simplified state machine driven
// from inspected segments.
type State int

const (
	StateUnknown State = iota
	StateSynSent
	StateEstablished
	StateFinSent
	StateRstSent
)

func (s State) String() string {
	switch s {
	case StateSynSent:
		return "SynSent"
	case StateEstablished:
		return "Established"
	case StateFinSent:
		return "FinSent"
	case StateRstSent:
		return "RstSent"
	default:
		return "Unknown"
	}
}

// Flow is one direction of a TCP stream (C14): its own destination
// endpoint, negotiated options, state, and data tracker, plus an
// optional ACK tracker enabled per-flow via EnableAckTracking.
type Flow struct {
	state State

	// Destination is the endpoint packets traveling in this flow's
	// direction are addressed to.
	Destination addr.Endpoint

	mss           int
	sackPermitted bool

	// IgnoreData suppresses data-tracker processing (and therefore the
	// data callback) while still driving the state machine; set by
	// Stream for a direction the caller has no interest in.
	IgnoreData bool

	data *DataTracker
	ack  *AckTracker
}

// NewFlow creates a flow addressed to dst, with its data tracker expecting
// the stream to begin at initialSeq.
func NewFlow(dst addr.Endpoint, initialSeq uint32) *Flow {
	return &Flow{
		Destination: dst,
		mss:         -1,
		data:        NewDataTracker(initialSeq),
	}
}

// State returns the flow's current FSM state.
func (f *Flow) State() State { return f.state }

// MSS returns the negotiated MSS, or -1 if never observed.
func (f *Flow) MSS() int { return f.mss }

// SACKPermitted reports whether this direction's SYN/SYN-ACK carried the
// SACK-permitted option.
func (f *Flow) SACKPermitted() bool { return f.sackPermitted }

// Data returns the flow's data tracker.
func (f *Flow) Data() *DataTracker { return f.data }

// Ack returns the flow's ACK tracker, or nil if ack tracking was never
// enabled.
func (f *Flow) Ack() *AckTracker { return f.ack }

// EnableAckTracking turns on SACK-aware ACK-interval tracking for this
// flow, starting from initialAck. Calling it again is a no-op.
func (f *Flow) EnableAckTracking(initialAck uint32) {
	if f.ack == nil {
		f.ack = NewAckTracker(initialAck)
	}
}

// forceEstablished jumps a never-yet-observed flow straight to
// Established, used by the follower when attaching to a partial stream
// (both flows start ESTABLISHED since no SYN was observed). It has no
// effect once the flow has already transitioned.
func (f *Flow) forceEstablished() {
	if f.state == StateUnknown {
		f.state = StateEstablished
	}
}

// PacketBelongs reports whether tcp's destination (derived from dstAddr,
// the enclosing IPv4/IPv6 destination address as a string) and dstPort
// matches this flow's Destination.
func (f *Flow) PacketBelongs(dstAddr string, dstPort uint16) bool {
	return f.Destination.Addr == dstAddr && f.Destination.Port == dstPort
}

// transition applies the flow's state machine given the observed flags,
// recording MSS/SACK-permitted on the SYN that opens the flow.
func (f *Flow) transition(tcp *layers.TCP) {
	switch {
	case tcp.Flags.RST:
		f.state = StateRstSent
	case tcp.Flags.FIN:
		f.state = StateFinSent
	case tcp.Flags.SYN:
		if f.state == StateUnknown {
			f.mss = tcp.MSS()
			f.sackPermitted = tcp.SACKPermitted()
			f.state = StateSynSent
			// The SYN itself consumes one sequence number; the data
			// stream proper begins at SeqNum+1.
			f.data.AdvanceSequence(tcp.SeqNum + 1)
		}
		if tcp.Flags.ACK && f.state == StateSynSent {
			f.state = StateEstablished
		}
	case tcp.Flags.ACK:
		if f.state == StateSynSent || f.state == StateUnknown {
			f.state = StateEstablished
		}
	}
}

// ProcessResult reports what ProcessSegment observed, so Stream can
// invoke the matching callback.
type ProcessResult struct {
	// DataDelivered is true iff in-order bytes advanced Payload().
	DataDelivered bool

	// OutOfOrder is true iff the segment's sequence range fell outside
	// the flow's current window (ended before, or started after, the
	// tracker's expected sequence).
	OutOfOrder bool
}

// ProcessSegment drives the flow's state machine with tcp, then (unless
// IgnoreData) feeds its payload through the data tracker and, if an ACK
// tracker is enabled, folds in the acknowledgment.
func (f *Flow) ProcessSegment(tcp *layers.TCP) ProcessResult {
	f.transition(tcp)

	var result ProcessResult
	payload := tcpPayload(tcp)
	if !f.IgnoreData && len(payload) > 0 {
		end := tcp.SeqNum + uint32(len(payload))
		if SeqLess(end, f.data.SeqNumber()) || SeqGreater(tcp.SeqNum, f.data.SeqNumber()) {
			result.OutOfOrder = true
		}
		if f.data.ProcessPayload(tcp.SeqNum, payload) {
			result.DataDelivered = true
		}
	}
	if f.ack != nil && tcp.Flags.ACK {
		f.ack.ProcessAck(tcp.AckNum, f.sackPermitted, sackBlocksOf(tcp))
	}
	return result
}

// tcpPayload returns the raw bytes carried by a TCP segment's inner Raw
// layer, or nil if there is none.
func tcpPayload(tcp *layers.TCP) []byte {
	raw, ok := tcp.Inner().(*layers.Raw)
	if !ok {
		return nil
	}
	return raw.Payload
}

// sackBlocksOf converts a TCP segment's SACK option blocks into the
// tracker's SackBlock type.
func sackBlocksOf(tcp *layers.TCP) []SackBlock {
	blocks := tcp.SACKBlocks()
	if len(blocks) == 0 {
		return nil
	}
	out := make([]SackBlock, len(blocks))
	for i, b := range blocks {
		out[i] = SackBlock{Left: b.Left, Right: b.Right}
	}
	return out
}
