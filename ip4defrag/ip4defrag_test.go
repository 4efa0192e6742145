package ip4defrag_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/ip4defrag"
	"github.com/netlayers/netlayers/layers"
)

func mustIPv4(t *testing.T, s string) addr.IPv4 {
	t.Helper()
	a, err := addr.ParseIPv4(s)
	if err != nil {
		t.Fatalf("ParseIPv4(%q): %v", s, err)
	}
	return a
}

// fragmentOf builds one IPv4 fragment carrying a slice of payload. The
// protocol number (253, reserved for experimentation) has no registered
// dissector, so a reassembled payload is re-dissected as *layers.Raw.
func fragmentOf(src, dst addr.IPv4, id uint16, offsetBytes int, chunk []byte, more bool) *layers.IPv4 {
	ip := &layers.IPv4{
		TTL:             64,
		Protocol:        layers.IPProtocol(253),
		Src:             src,
		Dst:             dst,
		Identification:  id,
		MoreFragments:   more,
		FragmentOffset:  uint16(offsetBytes / 8),
	}
	ip.SetInner(layers.NewRaw(chunk))
	return ip
}

func makePayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

func TestReassemblerInOrderFragments(t *testing.T) {
	t.Parallel()

	src, dst := mustIPv4(t, "10.0.0.1"), mustIPv4(t, "10.0.0.2")
	payload := makePayload(48)

	r := ip4defrag.New(ip4defrag.Config{}, nil)

	first := fragmentOf(src, dst, 4242, 0, payload[:24], true)
	res, err := r.Process(first, nil)
	if err != nil {
		t.Fatalf("Process first fragment: %v", err)
	}
	if res != ip4defrag.Fragmented {
		t.Fatalf("Process() = %v, want Fragmented", res)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	last := fragmentOf(src, dst, 4242, 24, payload[24:], false)
	res, err = r.Process(last, nil)
	if err != nil {
		t.Fatalf("Process last fragment: %v", err)
	}
	if res != ip4defrag.Reassembled {
		t.Fatalf("Process() = %v, want Reassembled", res)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after reassembly, want 0", r.Len())
	}

	raw, ok := last.Inner().(*layers.Raw)
	if !ok {
		t.Fatalf("inner layer = %T, want *layers.Raw", last.Inner())
	}
	if !bytes.Equal(raw.Payload, payload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d", len(raw.Payload), len(payload))
	}
	if last.MoreFragments || last.FragmentOffset != 0 {
		t.Errorf("reassembled header not reset: MoreFragments=%v FragmentOffset=%d", last.MoreFragments, last.FragmentOffset)
	}
}

func TestReassemblerOutOfOrderFragments(t *testing.T) {
	t.Parallel()

	src, dst := mustIPv4(t, "10.0.0.1"), mustIPv4(t, "10.0.0.3")
	payload := makePayload(72)

	r := ip4defrag.New(ip4defrag.Config{}, nil)

	frags := []*layers.IPv4{
		fragmentOf(src, dst, 7, 48, payload[48:], false),
		fragmentOf(src, dst, 7, 0, payload[:24], true),
		fragmentOf(src, dst, 7, 24, payload[24:48], true),
	}

	var last ip4defrag.Result
	var lastFrag *layers.IPv4
	for _, f := range frags {
		res, err := r.Process(f, nil)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		last = res
		lastFrag = f
	}
	if last != ip4defrag.Reassembled {
		t.Fatalf("final Process() = %v, want Reassembled", last)
	}
	raw := lastFrag.Inner().(*layers.Raw)
	if !bytes.Equal(raw.Payload, payload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d", len(raw.Payload), len(payload))
	}
}

func TestReassemblerNotFragmentedPassesThrough(t *testing.T) {
	t.Parallel()

	ip := &layers.IPv4{TTL: 64, Protocol: layers.IPProtocolUDP, Src: mustIPv4(t, "10.0.0.1"), Dst: mustIPv4(t, "10.0.0.2")}
	ip.SetInner(layers.NewRaw([]byte("hello")))

	r := ip4defrag.New(ip4defrag.Config{}, nil)
	res, err := r.Process(ip, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res != ip4defrag.NotFragmented {
		t.Fatalf("Process() = %v, want NotFragmented", res)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestReassemblerOverlappingFragmentIgnored(t *testing.T) {
	t.Parallel()

	src, dst := mustIPv4(t, "10.0.0.1"), mustIPv4(t, "10.0.0.4")
	payload := makePayload(24)

	r := ip4defrag.New(ip4defrag.Config{}, nil)

	if _, err := r.Process(fragmentOf(src, dst, 99, 0, payload, true), nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// A duplicate covering the same range must be dropped silently, not
	// appended as a second fragment.
	res, err := r.Process(fragmentOf(src, dst, 99, 0, payload, true), nil)
	if err != nil {
		t.Fatalf("Process duplicate: %v", err)
	}
	if res != ip4defrag.Fragmented {
		t.Fatalf("Process() = %v, want Fragmented", res)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (duplicate must not create a second entry)", r.Len())
	}
}

func TestReassemblerOverflowDropsEntry(t *testing.T) {
	t.Parallel()

	src, dst := mustIPv4(t, "10.0.0.1"), mustIPv4(t, "10.0.0.5")

	var overflowed ip4defrag.StreamKey
	var overflowCount int
	r := ip4defrag.New(ip4defrag.Config{
		MaxFragmentsPerStream: 2,
		OnOverflow: func(key ip4defrag.StreamKey) {
			overflowed = key
			overflowCount++
		},
	}, nil)

	for i := 0; i < 3; i++ {
		chunk := makePayload(8)
		if _, err := r.Process(fragmentOf(src, dst, 55, i*8, chunk, true), nil); err != nil {
			t.Fatalf("Process fragment %d: %v", i, err)
		}
	}
	if overflowCount != 1 {
		t.Fatalf("OnOverflow fired %d times, want 1", overflowCount)
	}
	if overflowed.Identification != 55 {
		t.Errorf("overflowed key identification = %d, want 55", overflowed.Identification)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after overflow, want 0", r.Len())
	}
}

func TestReassemblerTimeoutSweep(t *testing.T) {
	t.Parallel()

	src, dst := mustIPv4(t, "10.0.0.1"), mustIPv4(t, "10.0.0.6")

	var timedOut bool
	r := ip4defrag.New(ip4defrag.Config{
		StreamTimeout: time.Second,
		SweepInterval: time.Millisecond,
		OnTimeout:     func(ip4defrag.StreamKey) { timedOut = true },
	}, nil, ip4defrag.WithClock(func() time.Time { return clockNow }))

	clockNow = time.Unix(0, 0)
	if _, err := r.Process(fragmentOf(src, dst, 11, 0, makePayload(8), true), nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	clockNow = clockNow.Add(2 * time.Second)
	// A second, unrelated datagram triggers the piggy-backed sweep.
	if _, err := r.Process(fragmentOf(src, dst, 12, 0, makePayload(8), true), nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !timedOut {
		t.Fatal("stale datagram was never evicted by the sweep")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after sweep, want 1 (only the fresh datagram)", r.Len())
	}
}

// clockNow backs the injectable clock used by TestReassemblerTimeoutSweep.
var clockNow time.Time
