package game

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestGenerateDistinct(t *testing.T) {
	g := NewIDGenerator(DefaultIDLength)
	seen := make(map[string]int, 1000)
	for i := 0; i < 1000; i++ {
		id := g.Generate(strconv.Itoa(i))
		if len(id) != DefaultIDLength {
			t.Fatalf("expected length %d, got %q", DefaultIDLength, id)
		}
		if prev, ok := seen[id]; ok {
			t.Fatalf("id %s produced for salts %d and %d", id, prev, i)
		}
		seen[id] = i
	}
}

func TestGenerateFrozenClock(t *testing.T) {
	g := NewIDGenerator(DefaultIDLength)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < nonceSpace; i++ {
		id := g.Generate("same")
		if seen[id] {
			t.Fatalf("duplicate id %s at call %d", id, i)
		}
		seen[id] = true
	}
}

func TestGenerateDigitsOnly(t *testing.T) {
	g := NewIDGenerator(8)
	for i := 0; i < 200; i++ {
		id := g.Generate(strconv.Itoa(i))
		for _, r := range id {
			if !strings.ContainsRune(idDigits, r) {
				t.Fatalf("id %q contains non-digit %q", id, r)
			}
		}
	}
}

func TestIDLengthClamped(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, minIDLength},
		{2, minIDLength},
		{5, 5},
		{12, 12},
		{40, maxIDLength},
	}
	for _, tt := range tests {
		g := NewIDGenerator(tt.in)
		if g.Length() != tt.want {
			t.Fatalf("NewIDGenerator(%d).Length() = %d, want %d", tt.in, g.Length(), tt.want)
		}
		if got := len(g.Generate("x")); got != tt.want {
			t.Fatalf("length %d generator produced %d chars", tt.in, got)
		}
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12345", "12345"},
		{" 12345\n", "12345"},
		{"\t007", "007"},
		{"abc12", "ABC12"},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
