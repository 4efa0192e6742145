package commands

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/netlayers/netlayers"
	"github.com/netlayers/netlayers/ip4defrag"
	"github.com/netlayers/netlayers/registry"
	"github.com/netlayers/netlayers/tcpassembly"
)

// reassembleCmd replays a file of hex-encoded frames (one per line, blank
// lines and '#'-prefixed comments ignored) through the IPv4 reassembler and
// TCP stream follower, then prints a summary of completed streams. This is
// the offline counterpart to `serve`, which does the same work against a
// live capture.Source.
func reassembleCmd() *cobra.Command {
	var dltFlag uint32

	cmd := &cobra.Command{
		Use:   "reassemble <file>",
		Short: "Replay a file of hex-encoded frames through defrag and stream following",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			frames, err := readHexFrames(args[0])
			if err != nil {
				return err
			}

			return runReassembly(registry.DLT(dltFlag), frames)
		},
	}

	cmd.Flags().Uint32Var(&dltFlag, "dlt", uint32(registry.DLTEN10MB), "link-layer type (libpcap DLT numbering)")
	return cmd
}

// readHexFrames loads one frame per non-empty, non-comment line of path.
func readHexFrames(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reassemble: open %s: %w", path, err)
	}
	defer f.Close()

	var frames [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("reassemble: decode frame: %w", err)
		}
		frames = append(frames, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reassemble: scan %s: %w", path, err)
	}
	return frames, nil
}

type completedStream struct {
	ClientBytes int
	ServerBytes int
	Reason      string
}

func runReassembly(dlt registry.DLT, frames [][]byte) error {
	logger := slog.Default()

	defrag := ip4defrag.New(ip4defrag.Config{
		MaxFragmentsPerStream: 64,
		StreamTimeout:         30 * time.Second,
		SweepInterval:         5 * time.Second,
	}, logger)

	follower := tcpassembly.New(tcpassembly.Config{
		FollowPartialStreams: true,
	}, logger)

	var completed []completedStream
	follower.OnNewStream = func(tcpassembly.StreamIdentifier, *tcpassembly.Stream) {}
	follower.OnTerminate = func(s *tcpassembly.Stream, reason tcpassembly.TerminationReason) {
		completed = append(completed, completedStream{
			ClientBytes: s.Client.Data().TotalBufferedBytes(),
			ServerBytes: s.Server.Data().TotalBufferedBytes(),
			Reason:      reason.String(),
		})
	}

	now := time.Now()
	for _, raw := range frames {
		root, err := netlayers.Dissect(dlt, raw, registry.Default)
		if err != nil {
			logger.Warn("skipping undissectable frame", slog.Any("error", err))
			continue
		}

		if _, err := defrag.Process(root, registry.Default); err != nil {
			logger.Warn("defrag error", slog.Any("error", err))
			continue
		}

		if err := follower.ProcessPacket(root, now); err != nil {
			logger.Warn("follower error", slog.Any("error", err))
		}
	}

	fmt.Printf("%d frame(s) processed, %d stream(s) completed, %d still active\n",
		len(frames), len(completed), follower.Len())
	for i, c := range completed {
		fmt.Printf("  stream %d: client=%dB server=%dB reason=%s\n", i, c.ClientBytes, c.ServerBytes, c.Reason)
	}
	return nil
}
