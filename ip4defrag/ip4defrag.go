// Package ip4defrag implements the IPv4 reassembler: a keyed store of
// in-progress fragmented datagrams with overlap-free reconstruction,
// completeness detection, per-stream capacity limits, and age-based
// eviction. It follows the same shape as a flap dampener: a mutex-
// protected map keyed by a canonicalized identity, an injectable clock
// for deterministic tests, and callbacks fired on the conditions a
// caller needs to observe (overflow, timeout) — generalized from a
// single per-peer penalty to an ordered list of fragment chunks per
// datagram.
package ip4defrag

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

// Result is the outcome of a single Process call.
type Result int

const (
	NotFragmented Result = iota
	Fragmented
	Reassembled
)

func (r Result) String() string {
	switch r {
	case NotFragmented:
		return "NotFragmented"
	case Fragmented:
		return "Fragmented"
	case Reassembled:
		return "Reassembled"
	default:
		return "Unknown"
	}
}

// OverlappingTechnique selects how the reassembler resolves a fragment
// whose byte range overlaps one already stored. NONE is the only policy
// this module implements: overlapping or duplicate fragments are treated
// as duplicates and the first-seen bytes win.
type OverlappingTechnique int

const (
	OverlappingNone OverlappingTechnique = iota
)

// StreamKey identifies one in-progress datagram, canonicalized so both
// directions of a conversation (were a reply to reuse the same
// identification, which never happens in practice, but the canonical
// form costs nothing) hash to the same entry.
type StreamKey struct {
	Identification uint16
	Lo, Hi         addr.IPv4
}

func canonicalKey(id uint16, a, b addr.IPv4) StreamKey {
	if a.Compare(b) <= 0 {
		return StreamKey{Identification: id, Lo: a, Hi: b}
	}
	return StreamKey{Identification: id, Lo: b, Hi: a}
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%d:%s<->%s", k.Identification, k.Lo, k.Hi)
}

// Config controls the reassembler's resource limits and eviction policy.
type Config struct {
	// Overlapping selects the overlap-resolution policy; only
	// OverlappingNone is implemented.
	Overlapping OverlappingTechnique

	// MaxFragmentsPerStream caps the number of fragments buffered for a
	// single datagram before OnOverflow fires and the entry is dropped.
	// Zero means unlimited.
	MaxFragmentsPerStream int

	// StreamTimeout is how long after its first fragment arrived an
	// incomplete datagram is kept before the periodic sweep evicts it.
	StreamTimeout time.Duration

	// SweepInterval is how often Process performs the age-based
	// eviction sweep (spec's time_to_check_s), piggy-backed onto calls
	// rather than run on a background goroutine.
	SweepInterval time.Duration

	// OnOverflow is invoked (if non-nil) when a datagram's fragment
	// count exceeds MaxFragmentsPerStream, just before the entry is
	// dropped.
	OnOverflow func(key StreamKey)

	// OnTimeout is invoked (if non-nil) once per entry the age-based
	// sweep evicts.
	OnTimeout func(key StreamKey)
}

type fragment struct {
	offset  int
	payload []byte
}

type streamEntry struct {
	fragments    []fragment
	first        *layers.IPv4 // header fields from the first-seen fragment
	firstSeen    time.Time
	receivedSize int
	totalSize    int // -1 until the MF=0 fragment is seen
	receivedEnd  bool
}

func fragmentOverlaps(existing []fragment, offset, length int) bool {
	end := offset + length
	for _, f := range existing {
		fEnd := f.offset + len(f.payload)
		if offset < fEnd && f.offset < end {
			return true
		}
	}
	return false
}

// Reassembler is a mutex-protected store of in-progress IPv4 datagrams.
// Safe for concurrent use.
type Reassembler struct {
	cfg       Config
	mu        sync.Mutex
	entries   map[StreamKey]*streamEntry
	logger    *slog.Logger
	now       func() time.Time
	lastSweep time.Time
}

// Option configures optional Reassembler parameters.
type Option func(*Reassembler)

// WithClock sets a custom time function, used in tests to control time
// progression without sleeping.
func WithClock(now func() time.Time) Option {
	return func(r *Reassembler) { r.now = now }
}

// New creates a reassembler with the given configuration.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reassembler{
		cfg:     cfg,
		entries: make(map[StreamKey]*streamEntry),
		logger:  logger.With(slog.String("component", "ip4defrag")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()
	return r
}

// Process finds the outermost IPv4 sublayer of root, feeds it through the
// reassembler, and reports whether the datagram was not fragmented, is
// still incomplete, or was just completed. On Reassembled, the IPv4 layer
// found in root is mutated in place: its fragmentation flags are cleared,
// its header fields are reset to the first-seen fragment's, and its inner
// layer becomes the result of re-dissecting the spliced payload via reg
// (registry.Default if reg is nil).
func (r *Reassembler) Process(root layer.Layer, reg *registry.Registry) (Result, error) {
	if reg == nil {
		reg = registry.Default
	}
	found := layer.Find(root, layer.KindIPv4)
	if found == nil {
		return NotFragmented, nil
	}
	ip, ok := found.(*layers.IPv4)
	if !ok {
		return NotFragmented, nil
	}
	if !ip.IsFragmented() {
		return NotFragmented, nil
	}

	var payload []byte
	if raw, ok := ip.Inner().(*layers.Raw); ok {
		payload = raw.Payload
	}
	offset := int(ip.FragmentOffset) * 8

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	key := canonicalKey(ip.Identification, ip.Src, ip.Dst)
	e, ok := r.entries[key]
	if !ok {
		e = &streamEntry{firstSeen: r.now(), totalSize: -1}
		r.entries[key] = e
	}

	if fragmentOverlaps(e.fragments, offset, len(payload)) {
		return Fragmented, nil
	}
	// The first MF=0 fragment fixes the length; a later fragment reaching
	// past it, or claiming to be the last one again, is dropped.
	if e.receivedEnd && (offset+len(payload) > e.totalSize || !ip.MoreFragments) {
		return Fragmented, nil
	}

	if e.first == nil {
		clone := ip.Clone().(*layers.IPv4)
		clone.SetInner(nil)
		e.first = clone
	}

	e.fragments = append(e.fragments, fragment{offset: offset, payload: append([]byte(nil), payload...)})
	sort.Slice(e.fragments, func(i, j int) bool { return e.fragments[i].offset < e.fragments[j].offset })
	e.receivedSize += len(payload)

	if !ip.MoreFragments && e.totalSize == -1 {
		e.totalSize = offset + len(payload)
		e.receivedEnd = true
		// Fragments stored earlier that reach past the end are dropped too.
		kept := e.fragments[:0]
		e.receivedSize = 0
		for _, f := range e.fragments {
			if f.offset+len(f.payload) <= e.totalSize {
				kept = append(kept, f)
				e.receivedSize += len(f.payload)
			}
		}
		e.fragments = kept
	}

	if e.receivedEnd && e.receivedSize == e.totalSize {
		full := make([]byte, e.totalSize)
		for _, f := range e.fragments {
			copy(full[f.offset:], f.payload)
		}
		delete(r.entries, key)

		ip.DSCP = e.first.DSCP
		ip.ECN = e.first.ECN
		ip.TTL = e.first.TTL
		ip.Protocol = e.first.Protocol
		ip.Src = e.first.Src
		ip.Dst = e.first.Dst
		ip.Options = e.first.Options.Clone()
		ip.MoreFragments = false
		ip.DontFragment = e.first.DontFragment
		ip.FragmentOffset = 0

		inner, err := layers.DispatchIPv4Payload(ip.Protocol, full, reg)
		if err != nil {
			return Fragmented, fmt.Errorf("%w: reassembled datagram %s failed to dissect: %v", neterr.ErrMalformedPacket, key, err)
		}
		ip.SetInner(inner)
		return Reassembled, nil
	}

	if r.cfg.MaxFragmentsPerStream > 0 && len(e.fragments) > r.cfg.MaxFragmentsPerStream {
		delete(r.entries, key)
		if r.cfg.OnOverflow != nil {
			r.cfg.OnOverflow(key)
		}
		r.logger.Warn("dropping datagram, fragment count exceeded limit",
			slog.String("stream", key.String()),
			slog.Int("limit", r.cfg.MaxFragmentsPerStream))
	}

	return Fragmented, nil
}

// sweepLocked evicts entries older than cfg.StreamTimeout, at most once
// per cfg.SweepInterval. Caller must hold r.mu.
func (r *Reassembler) sweepLocked() {
	if r.cfg.SweepInterval <= 0 || r.cfg.StreamTimeout <= 0 {
		return
	}
	now := r.now()
	if now.Sub(r.lastSweep) < r.cfg.SweepInterval {
		return
	}
	r.lastSweep = now
	for key, e := range r.entries {
		if now.Sub(e.firstSeen) >= r.cfg.StreamTimeout {
			delete(r.entries, key)
			if r.cfg.OnTimeout != nil {
				r.cfg.OnTimeout(key)
			}
			r.logger.Debug("evicted stale datagram", slog.String("stream", key.String()))
		}
	}
}

// Len returns the number of in-progress datagrams currently buffered.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
