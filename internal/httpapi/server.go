// Package httpapi runs the metrics and status HTTP listener used by the
// netlayersctl `serve` subcommand, coordinating graceful shutdown with
// golang.org/x/sync/errgroup the way the teacher's cmd/gobfd/main.go
// coordinates its gRPC and metrics servers.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/netlayers/netlayers/ip4defrag"
	"github.com/netlayers/netlayers/tcpassembly"
)

// shutdownTimeout bounds how long Run waits for the listener to drain
// in-flight requests once its context is cancelled.
const shutdownTimeout = 10 * time.Second

// StatusProvider supplies a point-in-time snapshot of the running
// reassembler/follower for the /status endpoint.
type StatusProvider interface {
	ReassemblerLen() int
	FollowerLen() int
}

// Server serves Prometheus metrics and a small JSON status endpoint over
// HTTP, mirroring the shape of the teacher's metrics-only HTTP listener
// (newMetricsServer/listenAndServe in cmd/gobfd/main.go).
type Server struct {
	Addr   string
	Path   string
	Reg    *prometheus.Registry
	Status StatusProvider
	Logger *slog.Logger
}

// Run starts the HTTP listener and blocks until ctx is cancelled, then
// drains in-flight requests within shutdownTimeout. Intended to be run
// inside an errgroup.Group.Go closure alongside the packet-processing
// goroutine driven by the `serve` subcommand.
func (s *Server) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "httpapi"))

	mux := http.NewServeMux()
	mux.Handle(s.Path, promhttp.HandlerFor(s.Reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", s.handleStatus)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", s.Addr), slog.String("path", s.Path))
		return listenAndServe(gCtx, srv, s.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// handleStatus writes a minimal JSON snapshot of reassembler/follower
// occupancy. Errors are swallowed after headers are written, matching
// http.ResponseWriter's own contract.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.Status == nil {
		fmt.Fprint(w, `{}`)
		return
	}
	fmt.Fprintf(w, `{"fragmented_datagrams":%d,"active_streams":%d}`,
		s.Status.ReassemblerLen(), s.Status.FollowerLen())
}

// listenAndServe creates a listener via net.ListenConfig (for context
// propagation) and serves until ctx is cancelled or the listener errors.
func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// reassemblerStatus adapts the library's concrete reassembler and follower
// types to StatusProvider without requiring either package to know about
// HTTP.
type reassemblerStatus struct {
	r *ip4defrag.Reassembler
	f *tcpassembly.Follower
}

// NewStatusProvider wraps a reassembler and a follower as a StatusProvider.
// Either may be nil; a nil component reports 0.
func NewStatusProvider(r *ip4defrag.Reassembler, f *tcpassembly.Follower) StatusProvider {
	return &reassemblerStatus{r: r, f: f}
}

func (s *reassemblerStatus) ReassemblerLen() int {
	if s.r == nil {
		return 0
	}
	return s.r.Len()
}

func (s *reassemblerStatus) FollowerLen() int {
	if s.f == nil {
		return 0
	}
	return s.f.Len()
}
