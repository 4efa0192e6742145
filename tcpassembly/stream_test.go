package tcpassembly_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
	"github.com/netlayers/netlayers/tcpassembly"
)

var (
	testClientIP = mustIPv4("10.0.0.1")
	testServerIP = mustIPv4("10.0.0.2")
	testClientHW = addr.HW{0, 1, 2, 3, 4, 5}
	testServerHW = addr.HW{0, 6, 7, 8, 9, 10}
)

func mustIPv4(s string) addr.IPv4 {
	a, err := addr.ParseIPv4(s)
	if err != nil {
		panic(err)
	}
	return a
}

// buildSegment assembles an Ethernet/IPv4/TCP(/payload) chain representing
// one segment traveling srcHW/srcIP:srcPort -> dstHW/dstIP:dstPort.
func buildSegment(srcHW, dstHW addr.HW, srcIP, dstIP addr.IPv4, srcPort, dstPort uint16, seq, ack uint32, flags layers.TCPFlags, payload []byte) layer.Layer {
	eth := &layers.Ethernet{Src: srcHW, Dst: dstHW}
	ip := &layers.IPv4{TTL: 64, Src: srcIP, Dst: dstIP}
	tcp := &layers.TCP{
		SrcPort: uint32(srcPort),
		DstPort: uint32(dstPort),
		SeqNum:  seq,
		AckNum:  ack,
		Flags:   flags,
		Window:  65535,
	}
	eth.SetInner(ip)
	ip.SetInner(tcp)
	if len(payload) > 0 {
		tcp.SetInner(layers.NewRaw(payload))
	}
	return eth
}

func TestStreamReassemblyWithReordering(t *testing.T) {
	t.Parallel()

	const clientPort, serverPort = 40000, 80
	clientSeq, serverSeq := uint32(1000), uint32(2000)

	syn := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort,
		clientSeq, 0, layers.TCPFlags{SYN: true}, nil)
	synAck := buildSegment(testServerHW, testClientHW, testServerIP, testClientIP, serverPort, clientPort,
		serverSeq, clientSeq+1, layers.TCPFlags{SYN: true, ACK: true}, nil)
	ack := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort,
		clientSeq+1, serverSeq+1, layers.TCPFlags{ACK: true}, nil)

	payload := makePayload(200)
	chunks := splitChunks(payload, clientSeq+1, 5)
	// A fixed non-trivial permutation, as in the data-tracker test.
	order := make([]int, len(chunks))
	for i := range order {
		order[i] = len(chunks) - 1 - i
	}
	order = append(order[len(order)/2:], order[:len(order)/2]...)

	var delivered []byte
	var oooCount int
	s := tcpassembly.NewStream(
		addr.Endpoint{Addr: testServerIP.String(), Port: serverPort},
		addr.Endpoint{Addr: testClientIP.String(), Port: clientPort},
		clientSeq, 0, false, time.Unix(0, 0))
	s.OnClientData = func(_ *tcpassembly.Stream, data []byte) { delivered = append(delivered, data...) }
	s.OnClientOOO = func(_ *tcpassembly.Stream, _ *layers.TCP) { oooCount++ }

	now := time.Unix(0, 0)
	for _, pkt := range []layer.Layer{syn, synAck, ack} {
		if err := s.ProcessPacket(pkt, now); err != nil {
			t.Fatalf("ProcessPacket handshake: %v", err)
		}
	}
	for _, idx := range order {
		c := chunks[idx]
		seg := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort,
			c.seq, serverSeq+1, layers.TCPFlags{ACK: true}, c.data)
		if err := s.ProcessPacket(seg, now); err != nil {
			t.Fatalf("ProcessPacket data segment: %v", err)
		}
	}

	if !bytes.Equal(delivered, payload) {
		t.Fatalf("delivered %d bytes, want %d matching original payload", len(delivered), len(payload))
	}
	if s.Client.Data().BufferedChunks() != 0 {
		t.Errorf("BufferedChunks() = %d, want 0 once reassembly completes", s.Client.Data().BufferedChunks())
	}
	if s.Client.State() != tcpassembly.StateEstablished {
		t.Errorf("client state = %v, want Established", s.Client.State())
	}
}

func TestStreamHandshakeAndClose(t *testing.T) {
	t.Parallel()

	const clientPort, serverPort = 40001, 80
	clientSeq, serverSeq := uint32(5000), uint32(6000)

	s := tcpassembly.NewStream(
		addr.Endpoint{Addr: testServerIP.String(), Port: serverPort},
		addr.Endpoint{Addr: testClientIP.String(), Port: clientPort},
		clientSeq, 0, false, time.Unix(0, 0))

	var closed bool
	s.OnClosed = func(_ *tcpassembly.Stream) { closed = true }

	now := time.Unix(0, 0)
	segments := []layer.Layer{
		buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort, clientSeq, 0, layers.TCPFlags{SYN: true}, nil),
		buildSegment(testServerHW, testClientHW, testServerIP, testClientIP, serverPort, clientPort, serverSeq, clientSeq+1, layers.TCPFlags{SYN: true, ACK: true}, nil),
		buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort, clientSeq+1, serverSeq+1, layers.TCPFlags{ACK: true}, nil),
	}
	for _, seg := range segments {
		if err := s.ProcessPacket(seg, now); err != nil {
			t.Fatalf("ProcessPacket: %v", err)
		}
	}
	if s.Client.State() != tcpassembly.StateEstablished || s.Server.State() != tcpassembly.StateEstablished {
		t.Fatalf("client=%v server=%v, want both Established", s.Client.State(), s.Server.State())
	}
	if s.IsFinished() {
		t.Fatal("IsFinished() = true before any FIN")
	}

	finClient := buildSegment(testClientHW, testServerHW, testClientIP, testServerIP, clientPort, serverPort, clientSeq+1, serverSeq+1, layers.TCPFlags{FIN: true, ACK: true}, nil)
	finServer := buildSegment(testServerHW, testClientHW, testServerIP, testClientIP, serverPort, clientPort, serverSeq+1, clientSeq+2, layers.TCPFlags{FIN: true, ACK: true}, nil)
	if err := s.ProcessPacket(finClient, now); err != nil {
		t.Fatal(err)
	}
	if s.IsFinished() {
		t.Fatal("IsFinished() = true after only one side FIN_SENT")
	}
	if err := s.ProcessPacket(finServer, now); err != nil {
		t.Fatal(err)
	}
	if !s.IsFinished() {
		t.Fatal("IsFinished() = false after both sides FIN_SENT")
	}
	if !closed {
		t.Error("OnClosed callback was never invoked")
	}
}
