package tcpassembly

import "sort"

// DataTracker is the per-direction sequence reassembler (C12): it holds
// the next contiguous sequence number expected, the in-order bytes
// already delivered and awaiting consumption, and a map of out-of-order
// chunks buffered for a future hole to close.
type DataTracker struct {
	// seqNumber is the next contiguous sequence number expected.
	seqNumber uint32
	started   bool

	// payload accumulates in-order bytes delivered by ProcessPayload,
	// awaiting Consume.
	payload []byte

	// buffered holds out-of-order chunks keyed by their starting
	// sequence number. Chunks at different keys may overlap; drain trims
	// a chunk that starts before seqNumber before delivering it.
	buffered           map[uint32][]byte
	totalBufferedBytes int
}

// NewDataTracker creates a tracker that expects the stream to begin at
// initialSeq.
func NewDataTracker(initialSeq uint32) *DataTracker {
	return &DataTracker{
		seqNumber: initialSeq,
		started:   true,
		buffered:  make(map[uint32][]byte),
	}
}

// SeqNumber returns the next contiguous sequence number expected.
func (t *DataTracker) SeqNumber() uint32 { return t.seqNumber }

// TotalBufferedBytes returns the sum of all out-of-order chunk sizes
// currently buffered.
func (t *DataTracker) TotalBufferedBytes() int { return t.totalBufferedBytes }

// BufferedChunks returns the number of distinct out-of-order chunks
// currently buffered.
func (t *DataTracker) BufferedChunks() int { return len(t.buffered) }

// Payload returns the in-order bytes delivered so far and not yet
// consumed. The caller must not mutate the returned slice.
func (t *DataTracker) Payload() []byte { return t.payload }

// Consume removes the first n bytes of the delivered payload, as a
// caller's data callback processes them. Auto-cleanup calls
// Consume(len(Payload())) after every callback.
func (t *DataTracker) Consume(n int) {
	if n >= len(t.payload) {
		t.payload = t.payload[:0]
		return
	}
	t.payload = append(t.payload[:0], t.payload[n:]...)
}

// ProcessPayload inserts bytes observed at seq into the tracker and
// reports whether in-order delivery advanced as a result (true iff any
// bytes were appended to Payload).
func (t *DataTracker) ProcessPayload(seq uint32, bytes []byte) bool {
	if !t.started {
		t.seqNumber = seq
		t.started = true
	}
	if len(bytes) == 0 {
		return false
	}

	end := seq + uint32(len(bytes))
	if SeqLess(end, t.seqNumber) {
		return false
	}
	if SeqLess(seq, t.seqNumber) {
		skip := int(t.seqNumber - seq)
		if skip >= len(bytes) {
			return false
		}
		bytes = bytes[skip:]
		seq = t.seqNumber
	}
	if len(bytes) == 0 {
		return false
	}

	t.insert(seq, bytes)
	return t.drain()
}

// insert stores (seq, bytes) in buffered, merging with any pre-existing
// chunk at the same key by keeping the longer.
func (t *DataTracker) insert(seq uint32, bytes []byte) {
	if existing, ok := t.buffered[seq]; ok {
		if len(bytes) > len(existing) {
			t.totalBufferedBytes += len(bytes) - len(existing)
			t.buffered[seq] = bytes
		}
		return
	}
	t.buffered[seq] = bytes
	t.totalBufferedBytes += len(bytes)
}

// drain appends every contiguous chunk starting at seqNumber onto
// payload, advancing seqNumber past each, and reports whether any bytes
// were delivered.
func (t *DataTracker) drain() bool {
	delivered := false
	for {
		chunk, ok := t.buffered[t.seqNumber]
		if !ok {
			// A buffered chunk may start before seqNumber when it
			// overlaps bytes another chunk already delivered; scan for
			// one.
			key, found := t.chunkCovering(t.seqNumber)
			if !found {
				return delivered
			}
			chunk = t.buffered[key]
			skip := int(t.seqNumber - key)
			delete(t.buffered, key)
			t.totalBufferedBytes -= len(chunk)
			chunk = chunk[skip:]
			if len(chunk) == 0 {
				continue
			}
			t.buffered[t.seqNumber] = chunk
			t.totalBufferedBytes += len(chunk)
			continue
		}
		delete(t.buffered, t.seqNumber)
		t.totalBufferedBytes -= len(chunk)
		t.payload = append(t.payload, chunk...)
		t.seqNumber += uint32(len(chunk))
		delivered = true
	}
}

// chunkCovering returns the key of a buffered chunk whose range covers
// seq, if any (used when an overlapping chunk starts before the current
// seqNumber).
func (t *DataTracker) chunkCovering(seq uint32) (uint32, bool) {
	keys := make([]uint32, 0, len(t.buffered))
	for k := range t.buffered {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return SeqLess(keys[i], keys[j]) })
	for _, k := range keys {
		if SeqGreater(k, seq) {
			break
		}
		chunk := t.buffered[k]
		chunkEnd := k + uint32(len(chunk))
		if SeqLess(seq, chunkEnd) {
			return k, true
		}
	}
	return 0, false
}

// AdvanceSequence is the recovery primitive: if newSeq strictly follows
// the current seqNumber, it discards every buffered chunk keyed at or
// below newSeq and jumps seqNumber forward. It is a no-op if newSeq does
// not strictly advance.
func (t *DataTracker) AdvanceSequence(newSeq uint32) {
	if !SeqGreater(newSeq, t.seqNumber) {
		return
	}
	for k, chunk := range t.buffered {
		if SeqLessEq(k, newSeq) {
			delete(t.buffered, k)
			t.totalBufferedBytes -= len(chunk)
		}
	}
	t.seqNumber = newSeq
}
