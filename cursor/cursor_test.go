package cursor_test

import (
	"errors"
	"testing"

	"github.com/netlayers/netlayers/cursor"
	"github.com/netlayers/netlayers/neterr"
)

func TestReaderFixedWidthRoundTrip(t *testing.T) {
	buf := []byte{0x01, 0xAB, 0xCD, 0x11, 0x22, 0x33, 0x44, 0x01, 0x02, 0x03, 0xFF, 0xEE}
	r := cursor.NewReader(buf)

	u8, err := r.U8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("U8() = %d, %v; want 1, nil", u8, err)
	}
	u16, err := r.U16()
	if err != nil || u16 != 0xABCD {
		t.Fatalf("U16() = 0x%04x, %v; want 0xabcd, nil", u16, err)
	}
	u32, err := r.U32()
	if err != nil || u32 != 0x11223344 {
		t.Fatalf("U32() = 0x%08x, %v; want 0x11223344, nil", u32, err)
	}
	u24, err := r.U24()
	if err != nil || u24 != 0x010203 {
		t.Fatalf("U24() = 0x%06x, %v; want 0x010203, nil", u24, err)
	}
	rest, err := r.Bytes(2)
	if err != nil || rest[0] != 0xFF || rest[1] != 0xEE {
		t.Fatalf("Bytes(2) = %v, %v; want [0xff 0xee], nil", rest, err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestReaderShortReadsErrMalformedPacket(t *testing.T) {
	r := cursor.NewReader([]byte{0x01})
	if _, err := r.U16(); !errors.Is(err, neterr.ErrMalformedPacket) {
		t.Errorf("U16() on short buffer: err = %v, want ErrMalformedPacket", err)
	}
	r2 := cursor.NewReader(nil)
	if _, err := r2.U8(); !errors.Is(err, neterr.ErrMalformedPacket) {
		t.Errorf("U8() on empty buffer: err = %v, want ErrMalformedPacket", err)
	}
}

func TestWriterRoundTripsWithReader(t *testing.T) {
	buf := make([]byte, 3+2+4+3)
	w := cursor.NewWriter(buf)
	w.PutU24(0x0A0B0C)
	w.PutU16(0xBEEF)
	w.PutU32(0xDEADBEEF)
	w.PutBytes([]byte{1, 2, 3})

	r := cursor.NewReader(buf)
	if v, _ := r.U24(); v != 0x0A0B0C {
		t.Errorf("U24() = 0x%06x, want 0x0a0b0c", v)
	}
	if v, _ := r.U16(); v != 0xBEEF {
		t.Errorf("U16() = 0x%04x, want 0xbeef", v)
	}
	if v, _ := r.U32(); v != 0xDEADBEEF {
		t.Errorf("U32() = 0x%08x, want 0xdeadbeef", v)
	}
	tail, _ := r.Bytes(3)
	if tail[0] != 1 || tail[1] != 2 || tail[2] != 3 {
		t.Errorf("Bytes(3) = %v, want [1 2 3]", tail)
	}
}

func TestWriterOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("PutU32 into a 2-byte buffer should panic")
		}
	}()
	w := cursor.NewWriter(make([]byte, 2))
	w.PutU32(1)
}

func TestChecksum16KnownValue(t *testing.T) {
	// RFC 1071 worked example: 0x0001 0xf203 0xf4f5 0xf6f7 -> checksum 0x220d
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	got := cursor.Checksum16(data)
	want := uint16(0x220d)
	if got != want {
		t.Errorf("Checksum16() = 0x%04x, want 0x%04x", got, want)
	}
}

func TestChecksumPartsMatchesSingleBufferAcrossSplits(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x3c, 0x1c, 0x46, 0x40, 0x00, 0x40, 0x06,
		0x00, 0x00, 0xac, 0x10, 0x0a, 0x63, 0xac, 0x10, 0x0a, 0x0c}
	whole := cursor.Checksum16(data)

	for split := 0; split <= len(data); split++ {
		got := cursor.ChecksumParts(data[:split], data[split:])
		if got != whole {
			t.Errorf("ChecksumParts split at %d = 0x%04x, want 0x%04x (matches Checksum16 on whole buffer)", split, got, whole)
		}
	}
}

func TestChecksumPartsThreeWaySplit(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7}
	whole := cursor.Checksum16(data)
	got := cursor.ChecksumParts(data[:1], data[1:5], data[5:])
	if got != whole {
		t.Errorf("ChecksumParts three-way split = 0x%04x, want 0x%04x", got, whole)
	}
}
