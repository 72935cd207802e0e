package utils

import (
	"math"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("héllo wörld", 7); got != "héllo w..." {
		t.Errorf("multibyte: got %q", got)
	}
	if got := Truncate("日本語", 3); got != "日本語" {
		t.Errorf("exact rune count: got %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"  a  b\n\tc ", "a b c"},
		{"already clean", "already clean"},
	}
	for _, tt := range tests {
		if got := CollapseWhitespace(tt.in); got != tt.want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{3, 4}
	NormalizeL2(a)
	if d := CosineDistance(a, a); math.Abs(d) > 1e-6 {
		t.Errorf("self distance = %f, want 0", d)
	}
	b := []float32{-0.6, -0.8}
	if d := CosineDistance(a, b); math.Abs(d-2) > 1e-6 {
		t.Errorf("opposite distance = %f, want 2", d)
	}
	if Dot([]float32{1}, []float32{1, 2}) != 0 {
		t.Error("length mismatch should yield 0")
	}
}
