package addr_test

import (
	"testing"

	"github.com/netlayers/netlayers/addr"
)

func TestIPv4ParseFormatRoundTrip(t *testing.T) {
	a, err := addr.ParseIPv4("192.168.1.10")
	if err != nil {
		t.Fatalf("ParseIPv4: %v", err)
	}
	if got := a.String(); got != "192.168.1.10" {
		t.Errorf("String() = %q, want %q", got, "192.168.1.10")
	}
	if a.Uint32() != 0xC0A8010A {
		t.Errorf("Uint32() = 0x%08x, want 0xc0a8010a", a.Uint32())
	}
}

func TestIPv4InvalidRejected(t *testing.T) {
	if _, err := addr.ParseIPv4("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid IPv4")
	}
	if _, err := addr.ParseIPv4("::1"); err == nil {
		t.Fatal("expected error parsing an IPv6 literal as IPv4")
	}
}

func TestIPv4Compare(t *testing.T) {
	a := addr.IPv4FromBytes([]byte{10, 0, 0, 1})
	b := addr.IPv4FromBytes([]byte{10, 0, 0, 2})
	if a.Compare(b) >= 0 {
		t.Errorf("Compare(a, b) = %d, want negative", a.Compare(b))
	}
	if !a.Equal(a) {
		t.Error("a.Equal(a) = false")
	}
}

func TestIPv6RoundTrip(t *testing.T) {
	a, err := addr.ParseIPv6("2001:db8::1")
	if err != nil {
		t.Fatalf("ParseIPv6: %v", err)
	}
	if got := a.String(); got != "2001:db8::1" {
		t.Errorf("String() = %q, want %q", got, "2001:db8::1")
	}
	if _, err := addr.ParseIPv6("10.0.0.1"); err == nil {
		t.Fatal("expected error parsing an IPv4 literal as IPv6")
	}
}

func TestHWRoundTrip(t *testing.T) {
	hw, err := addr.ParseHW("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseHW: %v", err)
	}
	if got := hw.String(); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("String() = %q, want %q", got, "aa:bb:cc:dd:ee:ff")
	}
	if !addr.Broadcast.IsMulticast() {
		t.Error("Broadcast.IsMulticast() = false, want true")
	}
	unicast := addr.HWFromBytes([]byte{0x02, 0, 0, 0, 0, 1})
	if unicast.IsMulticast() {
		t.Error("unicast.IsMulticast() = true, want false")
	}
}

func TestEndpointLess(t *testing.T) {
	a := addr.Endpoint{Addr: "10.0.0.1", Port: 80}
	b := addr.Endpoint{Addr: "10.0.0.1", Port: 443}
	c := addr.Endpoint{Addr: "10.0.0.2", Port: 1}
	if !a.Less(b) {
		t.Error("a.Less(b) = false, want true (same addr, lower port)")
	}
	if !a.Less(c) {
		t.Error("a.Less(c) = false, want true (lower addr)")
	}
	if c.Less(a) {
		t.Error("c.Less(a) = true, want false")
	}
}
