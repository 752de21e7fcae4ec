package textscan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanIdent(t *testing.T) {
	tests := []struct {
		in   string
		pos  int
		want int
	}{
		{"abc", 0, 3},
		{"_a1b2", 0, 5},
		{"a+b", 0, 1},
		{"1abc", 0, 0},
		{"x 9y", 2, 2},
		{"", 0, 0},
	}
	for _, tt := range tests {
		if got := ScanIdent(tt.in, tt.pos); got != tt.want {
			t.Errorf("ScanIdent(%q, %d) = %d, want %d", tt.in, tt.pos, got, tt.want)
		}
	}
}

func TestSkipString(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`"abc"x`, 5},
		{`"a\"b"x`, 6},
		{`"a\\"x`, 5},
		{`"open`, 5},
	}
	for _, tt := range tests {
		if got := SkipString(tt.in, 0); got != tt.want {
			t.Errorf("SkipString(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSkipNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123+4", "123"},
		{"0x1Fu)", "0x1Fu"},
		{"10UL,", "10UL"},
		{"1.5e3;", "1.5e3"},
	}
	for _, tt := range tests {
		end := SkipNumber(tt.in, 0)
		if diff := cmp.Diff(tt.want, tt.in[:end]); diff != "" {
			t.Errorf("SkipNumber(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestSkipParens(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"(a, b)x", 6, true},
		{"(a, (b, c))x", 11, true},
		{`(a, "x,(")y`, 10, true},
		{"(a, 'x')", 8, true},
		{"(a, (b)", 7, false},
	}
	for _, tt := range tests {
		got, ok := SkipParens(tt.in, 0)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SkipParens(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
