package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netlayers/netlayers/layer"
)

const testPresetsYAML = `
syn:
  ethernet:
    src: "02:00:00:00:00:01"
    dst: "02:00:00:00:00:02"
  ipv4:
    src: "10.0.0.1"
    dst: "10.0.0.2"
    ttl: 64
  tcp:
    src_port: 51000
    dst_port: 443
    seq_num: 1000
    syn: true

udp_payload:
  ipv4:
    src: "10.0.0.1"
    dst: "10.0.0.2"
  udp:
    src_port: 5000
    dst_port: 53
  payload: "48656c6c6f"
`

func writePresetsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(path, []byte(testPresetsYAML), 0o600); err != nil {
		t.Fatalf("write presets file: %v", err)
	}
	return path
}

func TestLoadCraftPresets(t *testing.T) {
	path := writePresetsFile(t)

	presets, err := loadCraftPresets(path)
	if err != nil {
		t.Fatalf("loadCraftPresets: %v", err)
	}

	if len(presets) != 2 {
		t.Fatalf("len(presets) = %d, want 2", len(presets))
	}

	syn, ok := presets["syn"]
	if !ok {
		t.Fatal("missing preset \"syn\"")
	}
	if syn.TCP == nil || !syn.TCP.SYN {
		t.Errorf("syn preset TCP.SYN = %+v, want SYN true", syn.TCP)
	}
}

func TestLoadCraftPresetsMissingFile(t *testing.T) {
	if _, err := loadCraftPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loadCraftPresets with missing file: want error, got nil")
	}
}

func TestBuildLayerChainFullStack(t *testing.T) {
	path := writePresetsFile(t)
	presets, err := loadCraftPresets(path)
	if err != nil {
		t.Fatalf("loadCraftPresets: %v", err)
	}

	root, err := buildLayerChain(presets["syn"])
	if err != nil {
		t.Fatalf("buildLayerChain: %v", err)
	}

	var kinds []layer.Kind
	for cur := root; cur != nil; cur = cur.Inner() {
		kinds = append(kinds, cur.Kind())
	}

	want := []layer.Kind{layer.KindEthernet, layer.KindIPv4, layer.KindTCP}
	if len(kinds) != len(want) {
		t.Fatalf("chain length = %d, want %d (%v)", len(kinds), len(want), kinds)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("layer %d kind = %v, want %v", i, kinds[i], k)
		}
	}

	out, err := layer.Serialize(root)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(out) == 0 {
		t.Error("Serialize produced no bytes")
	}
}

func TestBuildLayerChainUDPPayload(t *testing.T) {
	path := writePresetsFile(t)
	presets, err := loadCraftPresets(path)
	if err != nil {
		t.Fatalf("loadCraftPresets: %v", err)
	}

	root, err := buildLayerChain(presets["udp_payload"])
	if err != nil {
		t.Fatalf("buildLayerChain: %v", err)
	}

	var last layer.Layer
	for cur := root; cur != nil; cur = cur.Inner() {
		last = cur
	}
	if last.Kind() != layer.KindRaw {
		t.Errorf("innermost layer kind = %v, want KindRaw", last.Kind())
	}
}

func TestBuildLayerChainEmptyPreset(t *testing.T) {
	if _, err := buildLayerChain(craftPreset{}); err == nil {
		t.Error("buildLayerChain with no layers: want error, got nil")
	}
}
