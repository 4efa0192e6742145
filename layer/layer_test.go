package layer_test

import (
	"testing"

	"github.com/netlayers/netlayers/layer"
)

// fakeLayer is a minimal Layer implementation for exercising the contract
// helpers (Find, MatchCategory, SizeOf, Serialize) without any real codec.
type fakeLayer struct {
	layer.Base
	kind   layer.Kind
	header int
	trail  int
}

func (f *fakeLayer) Kind() layer.Kind { return f.kind }
func (f *fakeLayer) HeaderSize() int  { return f.header }
func (f *fakeLayer) TrailerSize() int { return f.trail }
func (f *fakeLayer) Size() int        { return layer.SizeOf(f) }
func (f *fakeLayer) Clone() layer.Layer {
	c := *f
	c.SetInner(f.CloneInner())
	return &c
}
func (f *fakeLayer) Serialize(buf []byte, parent layer.Layer, total int) error {
	for i := range buf[:f.header] {
		buf[i] = byte(f.kind)
	}
	if in := f.Inner(); in != nil {
		if err := in.Serialize(buf[f.header:f.header+in.Size()], f, total); err != nil {
			return err
		}
	}
	for i := f.header + sizeOfInner(f); i < len(buf); i++ {
		buf[i] = 0xEE
	}
	return nil
}

func sizeOfInner(f *fakeLayer) int {
	if in := f.Inner(); in != nil {
		return in.Size()
	}
	return 0
}

func chain(kinds ...layer.Kind) layer.Layer {
	var root *fakeLayer
	var cur *fakeLayer
	for _, k := range kinds {
		l := &fakeLayer{kind: k, header: 2}
		if root == nil {
			root = l
			cur = l
			continue
		}
		cur.SetInner(l)
		cur = l
	}
	return root
}

func TestFindLocatesInnerLayer(t *testing.T) {
	c := chain(layer.KindEthernet, layer.KindIPv4, layer.KindTCP)
	found := layer.Find(c, layer.KindTCP)
	if found == nil || found.Kind() != layer.KindTCP {
		t.Fatalf("Find(TCP) = %v, want a TCP layer", found)
	}
	if layer.Find(c, layer.KindUDP) != nil {
		t.Error("Find(UDP) found a kind that isn't in the chain")
	}
}

func TestRFindMatchesFind(t *testing.T) {
	c := chain(layer.KindEthernet, layer.KindIPv4, layer.KindTCP)
	if layer.RFind(c, layer.KindIPv4) != layer.Find(c, layer.KindIPv4) {
		t.Error("RFind and Find disagree on a singly linked chain")
	}
}

func TestMatchCategoryFindsFirstOfFamily(t *testing.T) {
	c := chain(layer.KindEthernet, layer.KindIPv4, layer.KindTCP)
	got := layer.MatchCategory(c, layer.CategoryTransport)
	if got == nil || got.Kind() != layer.KindTCP {
		t.Fatalf("MatchCategory(Transport) = %v, want TCP", got)
	}
	got = layer.MatchCategory(c, layer.CategoryNetwork)
	if got == nil || got.Kind() != layer.KindIPv4 {
		t.Fatalf("MatchCategory(Network) = %v, want IPv4", got)
	}
	if layer.MatchCategory(c, layer.CategoryDot11Data) != nil {
		t.Error("MatchCategory found a category absent from the chain")
	}
}

func TestSizeOfSumsHeaderTrailerAndInner(t *testing.T) {
	inner := &fakeLayer{kind: layer.KindTCP, header: 20}
	outer := &fakeLayer{kind: layer.KindIPv4, header: 20, trail: 4}
	outer.SetInner(inner)

	if got, want := layer.SizeOf(inner), 20; got != want {
		t.Errorf("SizeOf(inner) = %d, want %d", got, want)
	}
	if got, want := layer.SizeOf(outer), 44; got != want {
		t.Errorf("SizeOf(outer) = %d, want %d (20 header + 20 inner + 4 trailer)", got, want)
	}
}

func TestSerializeAllocatesExactSizeAndWritesWholeChain(t *testing.T) {
	c := chain(layer.KindEthernet, layer.KindIPv4, layer.KindTCP)
	buf, err := layer.Serialize(c)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(buf) != c.Size() {
		t.Fatalf("Serialize() produced %d bytes, want Size() = %d", len(buf), c.Size())
	}
	if buf[0] != byte(layer.KindEthernet) || buf[2] != byte(layer.KindIPv4) || buf[4] != byte(layer.KindTCP) {
		t.Errorf("Serialize() = % x, want each layer's header tagged with its own Kind byte", buf)
	}
}

func TestCloneDeepCopiesInnerChain(t *testing.T) {
	c := chain(layer.KindEthernet, layer.KindIPv4, layer.KindTCP).(*fakeLayer)
	clone := c.Clone().(*fakeLayer)

	innerOrig := c.Inner().(*fakeLayer)
	innerClone := clone.Inner().(*fakeLayer)
	if innerOrig == innerClone {
		t.Fatal("Clone() shared the same inner layer pointer as the original")
	}
	innerClone.header = 99
	if innerOrig.header == 99 {
		t.Error("mutating the clone's inner layer mutated the original's")
	}
}
