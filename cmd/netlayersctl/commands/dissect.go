package commands

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netlayers/netlayers"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/registry"
)

var errDissectInputRequired = errors.New("dissect: provide --hex or a file argument")

func dissectCmd() *cobra.Command {
	var hexInput string
	var dltFlag uint32

	cmd := &cobra.Command{
		Use:   "dissect [file]",
		Short: "Dissect a captured frame and print its layer chain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := readFrameBytes(hexInput, args)
			if err != nil {
				return err
			}

			root, err := netlayers.Dissect(registry.DLT(dltFlag), raw, registry.Default)
			if err != nil {
				return fmt.Errorf("dissect: %w", err)
			}

			return printChain(root, outputFormat)
		},
	}

	cmd.Flags().StringVar(&hexInput, "hex", "", "hex-encoded frame bytes")
	cmd.Flags().Uint32Var(&dltFlag, "dlt", uint32(registry.DLTEN10MB), "link-layer type (libpcap DLT numbering)")

	return cmd
}

// readFrameBytes resolves the input frame from --hex or a hex-encoded file,
// trimming surrounding whitespace.
func readFrameBytes(hexInput string, args []string) ([]byte, error) {
	if hexInput != "" {
		return decodeHex(hexInput)
	}
	if len(args) == 1 {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", args[0], err)
		}
		return decodeHex(string(content))
	}
	return nil, errDissectInputRequired
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", ""))
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// layerSummary is the printable representation of a single layer in a
// dissected chain.
type layerSummary struct {
	Kind       string `json:"kind"`
	HeaderSize int    `json:"header_size"`
	Size       int    `json:"size"`
}

// printChain walks root's inner chain and renders it as text or JSON.
func printChain(root layer.Layer, format string) error {
	var summaries []layerSummary
	for cur := root; cur != nil; cur = cur.Inner() {
		summaries = append(summaries, layerSummary{
			Kind:       cur.Kind().String(),
			HeaderSize: cur.HeaderSize(),
			Size:       cur.Size(),
		})
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	for i, s := range summaries {
		fmt.Printf("%s%s (header=%d, size=%d)\n", strings.Repeat("  ", i), s.Kind, s.HeaderSize, s.Size)
	}
	return nil
}
