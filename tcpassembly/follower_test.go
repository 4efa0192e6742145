package tcpassembly_test

import (
	"errors"
	"testing"
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layers"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/tcpassembly"
)

func TestFollowerStrictSYNCreatesStream(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{}, nil)
	var newStreamCalls int
	f.OnNewStream = func(_ tcpassembly.StreamIdentifier, _ *tcpassembly.Stream) { newStreamCalls++ }

	syn := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40010, 80, 1000, 0, layers.TCPFlags{SYN: true}, nil)
	now := time.Unix(0, 0)
	if err := f.ProcessPacket(syn, now); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}
	if newStreamCalls != 1 {
		t.Fatalf("new-stream callback fired %d times, want 1", newStreamCalls)
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}

	// A non-SYN packet on an unseen 5-tuple is ignored, not attached.
	other := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40011, 80, 2000, 0, layers.TCPFlags{ACK: true}, nil)
	if err := f.ProcessPacket(other, now); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d after unrelated ACK-only packet, want still 1", f.Len())
	}
}

func TestFollowerCallbackNotSetError(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{}, nil)
	syn := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40012, 80, 1000, 0, layers.TCPFlags{SYN: true}, nil)
	err := f.ProcessPacket(syn, time.Unix(0, 0))
	if !errors.Is(err, neterr.ErrCallbackNotSet) {
		t.Fatalf("ProcessPacket() error = %v, want ErrCallbackNotSet", err)
	}
}

func TestFollowerPartialStreamAttachment(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{FollowPartialStreams: true}, nil)
	var attached *tcpassembly.Stream
	f.OnNewStream = func(_ tcpassembly.StreamIdentifier, s *tcpassembly.Stream) { attached = s }

	dataOnly := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40020, 80, 9000, 8000, layers.TCPFlags{ACK: true}, []byte("mid-stream"))
	if err := f.ProcessPacket(dataOnly, time.Unix(0, 0)); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}
	if attached == nil {
		t.Fatal("partial stream was not attached")
	}
	if !attached.PartialStream {
		t.Error("PartialStream = false, want true for a mid-conversation attachment")
	}
	if attached.Client.State() != tcpassembly.StateEstablished || attached.Server.State() != tcpassembly.StateEstablished {
		t.Errorf("client=%v server=%v, want both Established on partial attachment", attached.Client.State(), attached.Server.State())
	}
}

func TestFollowerWithoutPartialStreamsIgnoresNonSYN(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{}, nil)
	f.OnNewStream = func(_ tcpassembly.StreamIdentifier, _ *tcpassembly.Stream) {
		t.Fatal("new-stream callback should not fire without FollowPartialStreams")
	}

	dataOnly := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40021, 80, 9000, 8000, layers.TCPFlags{ACK: true}, []byte("mid-stream"))
	if err := f.ProcessPacket(dataOnly, time.Unix(0, 0)); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}
	if f.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", f.Len())
	}
}

func TestFollowerKeepAliveSweep(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{KeepAlive: time.Minute}, nil)
	var terminatedReason tcpassembly.TerminationReason
	var terminated bool
	f.OnNewStream = func(_ tcpassembly.StreamIdentifier, _ *tcpassembly.Stream) {}
	f.OnTerminate = func(_ *tcpassembly.Stream, reason tcpassembly.TerminationReason) {
		terminated = true
		terminatedReason = reason
	}

	start := time.Unix(0, 0)
	syn := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40030, 80, 1000, 0, layers.TCPFlags{SYN: true}, nil)
	if err := f.ProcessPacket(syn, start); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}

	// A later packet on an unrelated stream, long past KeepAlive, must
	// trigger the sweep and evict the idle stream.
	later := start.Add(2 * time.Minute)
	unrelated := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, 40031, 81, 5000, 0, layers.TCPFlags{SYN: true}, nil)
	if err := f.ProcessPacket(unrelated, later); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}

	if !terminated {
		t.Fatal("idle stream was never evicted by the keep-alive sweep")
	}
	if terminatedReason != tcpassembly.TerminationTimeout {
		t.Errorf("termination reason = %v, want Timeout", terminatedReason)
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d after sweep, want 1 (only the fresh unrelated stream)", f.Len())
	}
}

func TestFollowerFindStreamNotFound(t *testing.T) {
	t.Parallel()

	f := tcpassembly.New(tcpassembly.Config{}, nil)
	_, err := f.FindStream(tcpassembly.StreamIdentifier{
		Min: addr.Endpoint{Addr: "10.0.0.1", Port: 1},
		Max: addr.Endpoint{Addr: "10.0.0.2", Port: 2},
	})
	if !errors.Is(err, neterr.ErrStreamNotFound) {
		t.Fatalf("FindStream() error = %v, want ErrStreamNotFound", err)
	}
}
