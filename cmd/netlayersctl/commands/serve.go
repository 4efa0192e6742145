package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netlayers/netlayers"
	"github.com/netlayers/netlayers/capture"
	"github.com/netlayers/netlayers/internal/config"
	"github.com/netlayers/netlayers/internal/httpapi"
	"github.com/netlayers/netlayers/internal/metrics"
	"github.com/netlayers/netlayers/ip4defrag"
	"github.com/netlayers/netlayers/registry"
	"github.com/netlayers/netlayers/tcpassembly"
)

// serveCmd runs a live capture loop off an interface, feeding frames through
// the IPv4 reassembler and TCP stream follower while exposing Prometheus
// metrics and a status endpoint, structured like the teacher's cmd/gobfd
// main.go: load config, build a metrics registry, start an errgroup of
// goroutines under a signal-aware context, and wait.
func serveCmd() *cobra.Command {
	var configPath string
	var iface string
	var dltFlag uint32

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Capture from an interface and serve reassembly metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, iface, registry.DLT(dltFlag))
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (YAML)")
	cmd.Flags().StringVar(&iface, "iface", "", "interface to capture from")
	cmd.Flags().Uint32Var(&dltFlag, "dlt", uint32(registry.DLTEN10MB), "link-layer type (libpcap DLT numbering)")
	_ = cmd.MarkFlagRequired("iface")

	return cmd
}

func runServe(ctx context.Context, configPath, iface string, dlt registry.DLT) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	logger.Info("netlayersctl serve starting",
		slog.String("iface", iface),
		slog.String("metrics_addr", cfg.Metrics.Addr))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	defrag := ip4defrag.New(ip4defrag.Config{
		MaxFragmentsPerStream: cfg.Reassembly.MaxFragmentsPerStream,
		StreamTimeout:         cfg.Reassembly.StreamTimeout,
		SweepInterval:         cfg.Reassembly.SweepInterval,
		OnOverflow:            func(ip4defrag.StreamKey) { collector.RecordDatagramDropped("overflow") },
		OnTimeout:             func(ip4defrag.StreamKey) { collector.RecordDatagramDropped("timeout") },
	}, logger)

	follower := tcpassembly.New(tcpassembly.Config{
		FollowPartialStreams:    cfg.Follower.FollowPartialStreams,
		MinPartialStreamPayload: cfg.Follower.MinPartialStreamPayload,
		MaxBufferedChunks:       cfg.Follower.MaxBufferedChunks,
		MaxBufferedBytes:        cfg.Follower.MaxBufferedBytes,
		MaxSackedIntervals:      cfg.Follower.MaxSackedIntervals,
		KeepAlive:               cfg.Follower.KeepAlive,
	}, logger)
	follower.OnNewStream = func(tcpassembly.StreamIdentifier, *tcpassembly.Stream) { collector.RecordStreamStarted() }
	follower.OnTerminate = func(_ *tcpassembly.Stream, reason tcpassembly.TerminationReason) {
		collector.RecordStreamTerminated(reason.String())
	}

	src, err := capture.NewLinuxRawSocketSource(iface)
	if err != nil {
		return fmt.Errorf("serve: open capture source: %w", err)
	}
	defer src.Close()

	httpSrv := &httpapi.Server{
		Addr:   cfg.Metrics.Addr,
		Path:   cfg.Metrics.Path,
		Reg:    reg,
		Status: httpapi.NewStatusProvider(defrag, follower),
		Logger: logger,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)
	g.Go(func() error { return httpSrv.Run(gCtx) })
	g.Go(func() error { return captureLoop(gCtx, src, dlt, defrag, follower, collector, logger) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("netlayersctl serve stopped")
	return nil
}

// captureLoop reads frames from src until ctx is cancelled, feeding each
// through the reassembler and stream follower.
func captureLoop(
	ctx context.Context,
	src capture.Source,
	dlt registry.DLT,
	defrag *ip4defrag.Reassembler,
	follower *tcpassembly.Follower,
	collector *metrics.Collector,
	logger *slog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, ts, err := src.Next()
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}

		root, err := netlayers.Dissect(dlt, raw, registry.Default)
		if err != nil {
			logger.Debug("dropping undissectable frame", slog.Any("error", err))
			continue
		}

		result, err := defrag.Process(root, registry.Default)
		if err != nil {
			logger.Warn("defrag error", slog.Any("error", err))
			continue
		}
		if result == ip4defrag.Fragmented {
			collector.RecordFragmentStarted()
		} else if result == ip4defrag.Reassembled {
			collector.RecordReassembled()
		}

		if err := follower.ProcessPacket(root, ts); err != nil {
			logger.Warn("follower error", slog.Any("error", err))
		}
		collector.SetBufferedBytes(defrag.Len())
	}
}
