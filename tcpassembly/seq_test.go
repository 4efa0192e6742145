package tcpassembly_test

import (
	"testing"

	"github.com/netlayers/netlayers/tcpassembly"
)

func TestSeqCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b uint32
		want int
	}{
		{"equal", 100, 100, 0},
		{"a before b, small gap", 100, 200, -1},
		{"a after b, small gap", 200, 100, 1},
		{"wrap: a just before rollover, b just after", 0xFFFFFFFF, 0, -1},
		{"wrap: b just before rollover, a just after", 0, 0xFFFFFFFF, 1},
		{"boundary: diff exactly 2^31 treated as a>b", 0, 1 << 31, 1},
		{"boundary: diff just under 2^31 treated as a<b", 0, (1 << 31) - 1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tcpassembly.SeqCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("SeqCompare(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSeqHelpers(t *testing.T) {
	t.Parallel()

	if !tcpassembly.SeqLess(10, 20) {
		t.Error("SeqLess(10, 20) = false, want true")
	}
	if tcpassembly.SeqLess(20, 10) {
		t.Error("SeqLess(20, 10) = true, want false")
	}
	if !tcpassembly.SeqGreaterEq(20, 20) {
		t.Error("SeqGreaterEq(20, 20) = false, want true")
	}
	if !tcpassembly.SeqLessEq(20, 20) {
		t.Error("SeqLessEq(20, 20) = false, want true")
	}
}
