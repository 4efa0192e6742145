package httpapi_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/netlayers/netlayers/internal/httpapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStatus struct {
	reassembled int
	streams     int
}

func (f fakeStatus) ReassemblerLen() int { return f.reassembled }
func (f fakeStatus) FollowerLen() int    { return f.streams }

func TestServerServesMetricsAndStatus(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	srv := &httpapi.Server{
		Addr:   addr,
		Path:   "/metrics",
		Reg:    reg,
		Status: fakeStatus{reassembled: 3, streams: 5},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	waitForListener(t, addr)

	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	want := `{"fragmented_datagrams":3,"active_streams":5}`
	if string(body) != want {
		t.Errorf("/status body = %q, want %q", body, want)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after graceful shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestServerNilStatusProviderReturnsEmptyObject(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	srv := &httpapi.Server{Addr: addr, Path: "/metrics", Reg: reg}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	waitForListener(t, addr)

	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "{}" {
		t.Errorf("/status body = %q, want {}", body)
	}

	cancel()
	<-done
}

// waitForListener polls until addr accepts connections or the test times out.
func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/status")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server at %s never started listening", addr)
}

// freePort asks the OS for an unused TCP port by binding to :0 and closing
// immediately; a small race window exists but is acceptable for test use.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
