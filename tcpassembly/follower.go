package tcpassembly

import (
	"log/slog"
	"sync"
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/neterr"
)

// StreamIdentifier is a direction-independent key for a TCP conversation:
// two (address, port) endpoints canonicalized so the lexicographically
// smaller one is Min, per spec.md §4.9.
type StreamIdentifier struct {
	Min, Max addr.Endpoint
}

func canonicalStreamID(a, b addr.Endpoint) StreamIdentifier {
	if a.Less(b) {
		return StreamIdentifier{Min: a, Max: b}
	}
	return StreamIdentifier{Min: b, Max: a}
}

// TerminationReason explains why the follower removed a stream.
type TerminationReason int

const (
	TerminationClosed TerminationReason = iota
	TerminationMaxBufferedChunks
	TerminationMaxBufferedBytes
	TerminationMaxSackedIntervals
	TerminationTimeout
)

func (r TerminationReason) String() string {
	switch r {
	case TerminationClosed:
		return "Closed"
	case TerminationMaxBufferedChunks:
		return "MaxBufferedChunks"
	case TerminationMaxBufferedBytes:
		return "MaxBufferedBytes"
	case TerminationMaxSackedIntervals:
		return "MaxSackedIntervals"
	case TerminationTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// NewStreamFunc is invoked once when the follower observes a previously-
// unseen conversation; the callback configures s's data/OOO/closed
// callbacks and auto-cleanup bits before the triggering packet is
// forwarded to it.
type NewStreamFunc func(id StreamIdentifier, s *Stream)

// TerminateFunc is invoked once when the follower removes a stream,
// whether because it finished normally, exceeded a resource limit, or
// went idle past KeepAlive.
type TerminateFunc func(s *Stream, reason TerminationReason)

// Config controls the follower's stream-attachment policy and resource
// limits.
type Config struct {
	// FollowPartialStreams, when true, lets a data-bearing segment on a
	// previously-unseen 5-tuple create a stream even without an
	// observed SYN (spec.md §4.9's "partial stream" case).
	FollowPartialStreams bool

	// MinPartialStreamPayload is the minimum payload length (in bytes)
	// spec.md §9's suggested tightening of the partial-stream
	// heuristic; 1 (the default, set by New) matches the spec's
	// literal "segment contains data" wording.
	MinPartialStreamPayload int

	// MaxBufferedChunks, MaxBufferedBytes, MaxSackedIntervals, when
	// positive, terminate a stream once either flow's data/ack tracker
	// exceeds the limit. Zero means unlimited.
	MaxBufferedChunks  int
	MaxBufferedBytes   int
	MaxSackedIntervals int

	// KeepAlive is the idle duration after which a stream is swept and
	// removed with TerminationTimeout.
	KeepAlive time.Duration
}

// Follower is the stream-follower (C16): a map of active Streams keyed
// by StreamIdentifier, with attachment policy, resource-limit eviction,
// and a keep-alive sweep piggy-backed on ProcessPacket calls.
type Follower struct {
	cfg     Config
	mu      sync.Mutex
	streams map[StreamIdentifier]*Stream
	logger  *slog.Logger

	OnNewStream NewStreamFunc
	OnTerminate TerminateFunc

	lastCleanup time.Time
}

// New creates a Follower. If cfg.MinPartialStreamPayload is zero, it
// defaults to 1.
func New(cfg Config, logger *slog.Logger) *Follower {
	if cfg.MinPartialStreamPayload == 0 {
		cfg.MinPartialStreamPayload = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		cfg:     cfg,
		streams: make(map[StreamIdentifier]*Stream),
		logger:  logger.With(slog.String("component", "tcpassembly")),
	}
}

// Len returns the number of active streams.
func (f *Follower) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

// FindStream looks up the stream for id, or returns ErrStreamNotFound.
func (f *Follower) FindStream(id StreamIdentifier) (*Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[id]
	if !ok {
		return nil, neterr.ErrStreamNotFound
	}
	return s, nil
}

// ProcessPacket implements spec.md §4.9: it extracts the TCP segment and
// its endpoints, routes it to an existing stream or creates one per the
// attachment policy, forwards the packet, then evicts the stream if it
// finished or exceeded a resource limit, and piggy-backs the keep-alive
// sweep.
func (f *Follower) ProcessPacket(root layer.Layer, now time.Time) error {
	tcp, dstAddr, dstPort, srcAddr, err := extractTCP(root)
	if err != nil {
		// The follower never terminates the whole process on a single
		// bad or non-TCP packet; it logs and continues.
		f.logger.Debug("dropping packet with no TCP layer", slog.Any("error", err))
		return nil
	}

	clientEP := addr.Endpoint{Addr: dstAddr, Port: dstPort}
	serverEP := addr.Endpoint{Addr: srcAddr, Port: uint16(tcp.SrcPort)}
	id := canonicalStreamID(clientEP, serverEP)

	f.mu.Lock()
	s, exists := f.streams[id]
	if !exists {
		strictSYN := tcp.Flags.SYN && !tcp.Flags.ACK && !tcp.Flags.FIN && !tcp.Flags.RST
		partial := f.cfg.FollowPartialStreams && len(tcpPayload(tcp)) >= f.cfg.MinPartialStreamPayload
		if !strictSYN && !partial {
			f.mu.Unlock()
			return nil
		}
		s = NewStream(clientEP, serverEP, tcp.SeqNum, tcp.AckNum, !strictSYN, now)
		if partial && !strictSYN {
			s.Client.forceEstablished()
			s.Server.forceEstablished()
		}
		if f.OnNewStream == nil {
			f.mu.Unlock()
			return neterr.ErrCallbackNotSet
		}
		f.OnNewStream(id, s)
		f.streams[id] = s
	}
	f.mu.Unlock()

	if err := s.ProcessPacket(root, now); err != nil {
		return err
	}

	f.mu.Lock()
	f.evictIfDone(id, s)
	f.sweepLocked(now)
	f.mu.Unlock()
	return nil
}

// evictIfDone removes id's stream and fires OnTerminate if it finished or
// exceeded a configured resource limit. Caller must hold f.mu.
func (f *Follower) evictIfDone(id StreamIdentifier, s *Stream) {
	reason, done := f.terminationReason(s)
	if !done {
		return
	}
	delete(f.streams, id)
	if f.OnTerminate != nil {
		f.OnTerminate(s, reason)
	}
}

func (f *Follower) terminationReason(s *Stream) (TerminationReason, bool) {
	if s.IsFinished() {
		return TerminationClosed, true
	}
	if f.cfg.MaxBufferedChunks > 0 {
		if s.Client.Data().BufferedChunks() > f.cfg.MaxBufferedChunks || s.Server.Data().BufferedChunks() > f.cfg.MaxBufferedChunks {
			return TerminationMaxBufferedChunks, true
		}
	}
	if f.cfg.MaxBufferedBytes > 0 {
		if s.Client.Data().TotalBufferedBytes() > f.cfg.MaxBufferedBytes || s.Server.Data().TotalBufferedBytes() > f.cfg.MaxBufferedBytes {
			return TerminationMaxBufferedBytes, true
		}
	}
	if f.cfg.MaxSackedIntervals > 0 {
		if sackCount(s.Client.Ack()) > f.cfg.MaxSackedIntervals || sackCount(s.Server.Ack()) > f.cfg.MaxSackedIntervals {
			return TerminationMaxSackedIntervals, true
		}
	}
	return 0, false
}

func sackCount(t *AckTracker) int {
	if t == nil {
		return 0
	}
	return len(t.SackedIntervals())
}

// sweepLocked removes every stream whose LastSeenAt is older than
// KeepAlive, at most once per KeepAlive interval. Caller must hold f.mu.
func (f *Follower) sweepLocked(now time.Time) {
	if f.cfg.KeepAlive <= 0 {
		return
	}
	if f.lastCleanup.IsZero() {
		f.lastCleanup = now
		return
	}
	if now.Sub(f.lastCleanup) < f.cfg.KeepAlive {
		return
	}
	f.lastCleanup = now
	for id, s := range f.streams {
		if now.Sub(s.LastSeenAt) >= f.cfg.KeepAlive {
			delete(f.streams, id)
			if f.OnTerminate != nil {
				f.OnTerminate(s, TerminationTimeout)
			}
		}
	}
}
