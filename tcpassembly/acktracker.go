package tcpassembly

import "sort"

// ackInterval is a closed interval [Left, Right] over 32-bit sequence
// space, compared with RFC 1982 arithmetic.
type ackInterval struct {
	left, right uint32
}

// AckTracker is the optional per-flow cumulative-ACK and SACK-aware
// acknowledged-interval tracker (C13). The zero value is ready to use
// with AckNumber starting at 0; callers typically construct it via
// NewAckTracker with the flow's initial sequence number.
type AckTracker struct {
	ackNumber uint32
	intervals []ackInterval // sorted by left, pairwise disjoint, all strictly above ackNumber
}

// NewAckTracker creates a tracker with the given starting ACK number.
func NewAckTracker(initialAck uint32) *AckTracker {
	return &AckTracker{ackNumber: initialAck}
}

// AckNumber returns the current cumulative ACK.
func (t *AckTracker) AckNumber() uint32 { return t.ackNumber }

// SackedIntervals returns the current selectively-ACKed intervals, each
// strictly above AckNumber, sorted and disjoint. The caller must not
// mutate the returned slice.
func (t *AckTracker) SackedIntervals() []struct{ Left, Right uint32 } {
	out := make([]struct{ Left, Right uint32 }, len(t.intervals))
	for i, iv := range t.intervals {
		out[i] = struct{ Left, Right uint32 }{iv.left, iv.right}
	}
	return out
}

// SackBlock is one raw (left, right) pair as carried in a TCP SACK
// option, exclusive of right per RFC 2018 (right is one past the last
// acknowledged byte).
type SackBlock struct{ Left, Right uint32 }

// ProcessAck advances the cumulative ACK if ack strictly follows the
// current one (discarding subsumed SACK intervals), then folds in every
// SACK block when sackEnabled is true.
func (t *AckTracker) ProcessAck(ack uint32, sackEnabled bool, sacks []SackBlock) {
	if SeqGreater(ack, t.ackNumber) {
		t.advanceAck(ack)
	}
	if !sackEnabled {
		return
	}
	for _, b := range sacks {
		if b.Left == b.Right {
			continue
		}
		if b.Left < b.Right {
			t.foldBlock(b.Left, b.Right)
			continue
		}
		// Wrap-around range: split into two closed intervals.
		t.foldBlock(b.Left, 0) // [left, 2^32-1]
		if b.Right > 0 {
			t.foldBlock(0, b.Right)
		}
	}
}

// foldBlock folds the SACK-carried half-open range [left, right) (right
// may be the sentinel 0 meaning "wraps to 2^32-1", handled by the
// caller passing left<right==0 only for the upper half of a wrapped
// block) into the interval set as a closed interval, applying the usual
// subsumption and advancement rules.
func (t *AckTracker) foldBlock(left, right uint32) {
	var closedRight uint32
	if right == 0 {
		closedRight = 0xFFFFFFFF
	} else {
		closedRight = right - 1
	}
	if SeqLessEq(closedRight, t.ackNumber) {
		return
	}
	if SeqLessEq(left, t.ackNumber) {
		t.advanceAck(closedRight + 1)
		return
	}
	t.unionInterval(ackInterval{left: left, right: closedRight})
}

// advanceAck moves the cumulative ACK forward to newAck and discards any
// interval entirely at or below it.
func (t *AckTracker) advanceAck(newAck uint32) {
	t.ackNumber = newAck
	kept := t.intervals[:0]
	for _, iv := range t.intervals {
		if SeqGreater(iv.right, newAck) {
			if SeqLessEq(iv.left, newAck) {
				iv.left = newAck + 1
			}
			kept = append(kept, iv)
		}
	}
	t.intervals = kept
}

// adjacentOrOverlapping reports whether closed intervals a and b touch or
// overlap, so their union is a single contiguous interval.
func adjacentOrOverlapping(a, b ackInterval) bool {
	return SeqLessEq(a.left, b.right+1) && SeqLessEq(b.left, a.right+1)
}

// unionInterval merges iv into the sorted, disjoint interval set,
// coalescing any overlapping or adjacent intervals.
func (t *AckTracker) unionInterval(iv ackInterval) {
	merged := iv
	var rest []ackInterval
	for _, existing := range t.intervals {
		if adjacentOrOverlapping(merged, existing) {
			if SeqLess(existing.left, merged.left) {
				merged.left = existing.left
			}
			if SeqGreater(existing.right, merged.right) {
				merged.right = existing.right
			}
			continue
		}
		rest = append(rest, existing)
	}
	rest = append(rest, merged)
	sort.Slice(rest, func(i, j int) bool { return SeqLess(rest[i].left, rest[j].left) })
	t.intervals = rest
}

// IsSegmentAcked reports whether the closed byte range [seq, seq+len-1]
// is fully covered either by the cumulative ACK region or by a single
// entry in the SACK interval set. Zero-length segments are always
// acked.
func (t *AckTracker) IsSegmentAcked(seq uint32, length int) bool {
	if length == 0 {
		return true
	}
	end := seq + uint32(length) - 1
	if SeqLessEq(end, t.ackNumber) {
		return true
	}
	for _, iv := range t.intervals {
		if SeqLessEq(iv.left, seq) && SeqLessEq(end, iv.right) {
			return true
		}
	}
	return false
}
