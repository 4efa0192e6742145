package netlayers_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/netlayers/netlayers"
	"github.com/netlayers/netlayers/addr"
	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/layers"
	"github.com/netlayers/netlayers/neterr"
	"github.com/netlayers/netlayers/registry"
)

func TestDissectUnknownDLTWrapsRaw(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	got, err := netlayers.Dissect(registry.DLT(0xFFFF), data, nil)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	raw, ok := got.(*layers.Raw)
	if !ok {
		t.Fatalf("Dissect() = %T, want *layers.Raw for an unknown DLT", got)
	}
	if !bytes.Equal(raw.Payload, data) {
		t.Errorf("Raw.Payload = % x, want % x", raw.Payload, data)
	}
}

func TestDissectEmptyBytesErrsMalformedPacket(t *testing.T) {
	if _, err := netlayers.Dissect(registry.DLTEN10MB, nil, nil); !errors.Is(err, neterr.ErrMalformedPacket) {
		t.Errorf("Dissect(empty) err = %v, want ErrMalformedPacket", err)
	}
}

func TestDissectEthernetUsesDefaultRegistry(t *testing.T) {
	eth := &layers.Ethernet{
		Dst: mustHW("aa:bb:cc:dd:ee:ff"),
		Src: mustHW("11:22:33:44:55:66"),
	}
	eth.SetInner(layers.NewRaw([]byte{1, 2, 3}))

	encoded, err := netlayers.Serialize(eth)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := netlayers.Dissect(registry.DLTEN10MB, encoded, nil)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if got.Kind() != layer.KindEthernet {
		t.Fatalf("Dissect() Kind = %v, want Ethernet", got.Kind())
	}

	reencoded, err := netlayers.Serialize(got)
	if err != nil {
		t.Fatalf("Serialize (re-encode): %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("dissect->serialize round trip mismatch:\n got % x\nwant % x", reencoded, encoded)
	}
}

func TestDissectWithExplicitRegistryIgnoresDefault(t *testing.T) {
	empty := registry.New()
	data := []byte{1, 2, 3}
	got, err := netlayers.Dissect(registry.DLTEN10MB, data, empty)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if _, ok := got.(*layers.Raw); !ok {
		t.Fatalf("Dissect() with an empty registry = %T, want *layers.Raw", got)
	}
}

func mustHW(s string) addr.HW {
	hw, err := addr.ParseHW(s)
	if err != nil {
		panic(err)
	}
	return hw
}
