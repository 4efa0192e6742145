package registry_test

import (
	"testing"

	"github.com/netlayers/netlayers/layer"
	"github.com/netlayers/netlayers/registry"
)

func TestRegisterAndLookup(t *testing.T) {
	r := registry.New()
	ctor := func(data []byte, reg *registry.Registry) (layer.Layer, error) { return nil, nil }
	r.Register(layer.KindEthernet, 0x0800, ctor)

	got, ok := r.Lookup(layer.KindEthernet, 0x0800)
	if !ok || got == nil {
		t.Fatal("Lookup() did not find the registered constructor")
	}
	if _, ok := r.Lookup(layer.KindEthernet, 0x86DD); ok {
		t.Error("Lookup() found an entry that was never registered")
	}
	if _, ok := r.Lookup(layer.KindIPv4, 0x0800); ok {
		t.Error("Lookup() matched across different parent kinds with the same id")
	}
}

func TestRegisterOverridesExistingEntry(t *testing.T) {
	r := registry.New()
	var called string
	first := func(data []byte, reg *registry.Registry) (layer.Layer, error) { called = "first"; return nil, nil }
	second := func(data []byte, reg *registry.Registry) (layer.Layer, error) { called = "second"; return nil, nil }

	r.Register(layer.KindIPv4, 6, first)
	r.Register(layer.KindIPv4, 6, second)

	// Func values can't be compared with ==, so call the looked-up
	// constructor and check which one ran: the override must have
	// replaced the first entry.
	got, ok := r.Lookup(layer.KindIPv4, 6)
	if !ok {
		t.Fatal("Lookup() after override did not find an entry")
	}
	_, _ = got(nil, r)
	if called != "second" {
		t.Errorf("Lookup() after override returned the %q constructor, want \"second\"", called)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := registry.New()
	ctor := func(data []byte, reg *registry.Registry) (layer.Layer, error) { return nil, nil }
	r.Register(layer.KindIPv4, 6, ctor)

	c := r.Clone()
	c.Register(layer.KindIPv4, 17, ctor)

	if _, ok := r.Lookup(layer.KindIPv4, 17); ok {
		t.Error("registering on a clone mutated the original registry")
	}
	if _, ok := c.Lookup(layer.KindIPv4, 6); !ok {
		t.Error("Clone() did not carry over pre-existing entries")
	}
}
