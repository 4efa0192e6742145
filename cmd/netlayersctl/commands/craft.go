package commands

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
)

// craftPreset is a named, serializable packet template loaded from a YAML
// fixture file, resolved the same way the teacher's config layer resolves
// on-disk settings: parse once, validate, then build runtime state from it.
type craftPreset struct {
	Ethernet *craftEthernet `yaml:"ethernet"`
	IPv4     *craftIPv4     `yaml:"ipv4"`
	TCP      *craftTCP      `yaml:"tcp"`
	UDP      *craftUDP      `yaml:"udp"`
	Payload  string         `yaml:"payload"`
}

type craftEthernet struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
}

type craftIPv4 struct {
	Src      string `yaml:"src"`
	Dst      string `yaml:"dst"`
	TTL      uint8  `yaml:"ttl"`
	Protocol uint8  `yaml:"protocol"`
}

type craftTCP struct {
	SrcPort uint32 `yaml:"src_port"`
	DstPort uint32 `yaml:"dst_port"`
	SeqNum  uint32 `yaml:"seq_num"`
	AckNum  uint32 `yaml:"ack_num"`
	SYN     bool   `yaml:"syn"`
	ACK     bool   `yaml:"ack"`
	FIN     bool   `yaml:"fin"`
}

type craftUDP struct {
	SrcPort uint32 `yaml:"src_port"`
	DstPort uint32 `yaml:"dst_port"`
}

func craftCmd() *cobra.Command {
	var presetFile string
	var presetName string

	cmd := &cobra.Command{
		Use:   "craft",
		Short: "Build a frame from a named YAML preset and print it as hex",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			presets, err := loadCraftPresets(presetFile)
			if err != nil {
				return err
			}

			preset, ok := presets[presetName]
			if !ok {
				return fmt.Errorf("craft: preset %q not found in %s", presetName, presetFile)
			}

			root, err := buildLayerChain(preset)
			if err != nil {
				return fmt.Errorf("craft: %w", err)
			}

			out, err := layer.Serialize(root)
			if err != nil {
				return fmt.Errorf("craft: serialize: %w", err)
			}

			fmt.Println(hex.EncodeToString(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&presetFile, "presets", "", "path to a YAML file of named crafting presets")
	cmd.Flags().StringVar(&presetName, "preset", "", "name of the preset to build")
	_ = cmd.MarkFlagRequired("presets")
	_ = cmd.MarkFlagRequired("preset")

	return cmd
}

// loadCraftPresets reads a YAML fixture mapping preset names to craftPreset
// definitions.
func loadCraftPresets(path string) (map[string]craftPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("craft: read %s: %w", path, err)
	}

	var presets map[string]craftPreset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("craft: parse %s: %w", path, err)
	}
	return presets, nil
}

// buildLayerChain assembles a Layer chain from a preset's fields, innermost
// layer last so each SetInner call nests correctly.
func buildLayerChain(p craftPreset) (layer.Layer, error) {
	var chain []layer.Layer

	if p.Ethernet != nil {
		src, err := addr.ParseHW(p.Ethernet.Src)
		if err != nil {
			return nil, fmt.Errorf("ethernet.src: %w", err)
		}
		dst, err := addr.ParseHW(p.Ethernet.Dst)
		if err != nil {
			return nil, fmt.Errorf("ethernet.dst: %w", err)
		}
		chain = append(chain, &layers.Ethernet{Src: src, Dst: dst})
	}

	if p.IPv4 != nil {
		src, err := addr.ParseIPv4(p.IPv4.Src)
		if err != nil {
			return nil, fmt.Errorf("ipv4.src: %w", err)
		}
		dst, err := addr.ParseIPv4(p.IPv4.Dst)
		if err != nil {
			return nil, fmt.Errorf("ipv4.dst: %w", err)
		}
		ttl := p.IPv4.TTL
		if ttl == 0 {
			ttl = 64
		}
		chain = append(chain, &layers.IPv4{
			Src:      src,
			Dst:      dst,
			TTL:      ttl,
			Protocol: layers.IPProtocol(p.IPv4.Protocol),
		})
	}

	switch {
	case p.TCP != nil:
		chain = append(chain, &layers.TCP{
			SrcPort: p.TCP.SrcPort,
			DstPort: p.TCP.DstPort,
			SeqNum:  p.TCP.SeqNum,
			AckNum:  p.TCP.AckNum,
			Flags: layers.TCPFlags{
				SYN: p.TCP.SYN,
				ACK: p.TCP.ACK,
				FIN: p.TCP.FIN,
			},
		})
	case p.UDP != nil:
		chain = append(chain, &layers.UDP{SrcPort: p.UDP.SrcPort, DstPort: p.UDP.DstPort})
	}

	if p.Payload != "" {
		payload, err := hex.DecodeString(p.Payload)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		chain = append(chain, layers.NewRaw(payload))
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("preset has no layers")
	}

	for i := 0; i < len(chain)-1; i++ {
		chain[i].SetInner(chain[i+1])
	}
	return chain[0], nil
}
