package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeHex(t *testing.T) {
	b, err := decodeHex("0a0b\n0c0d\n")
	if err != nil {
		t.Fatalf("decodeHex: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("len = %d, want 4", len(b))
	}
}

func TestDecodeHexInvalid(t *testing.T) {
	if _, err := decodeHex("not hex"); err == nil {
		t.Error("decodeHex with invalid input: want error, got nil")
	}
}

func TestReadFrameBytesFromFlag(t *testing.T) {
	b, err := readFrameBytes("deadbeef", nil)
	if err != nil {
		t.Fatalf("readFrameBytes: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("len = %d, want 4", len(b))
	}
}

func TestReadFrameBytesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.hex")
	if err := os.WriteFile(path, []byte("cafebabe"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	b, err := readFrameBytes("", []string{path})
	if err != nil {
		t.Fatalf("readFrameBytes: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("len = %d, want 4", len(b))
	}
}

func TestReadFrameBytesRequiresInput(t *testing.T) {
	if _, err := readFrameBytes("", nil); err != errDissectInputRequired {
		t.Errorf("err = %v, want errDissectInputRequired", err)
	}
}
