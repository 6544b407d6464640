package session

import (
	"strings"
	"testing"
)

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := newCode()
		if len(code) != codeLength {
			t.Fatalf("newCode() = %q, want %d characters", code, codeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune("0123456789ABCDEF", r) {
				t.Fatalf("newCode() = %q, unexpected character %q", code, r)
			}
		}
	}
}

func TestNewCodeCaseNormalized(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := newCode()
		if code != strings.ToUpper(code) {
			t.Fatalf("newCode() = %q, want upper-cased", code)
		}
	}
}

func TestNewCodeDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := newCode()
		if seen[code] {
			t.Fatalf("duplicate code %q after %d generations", code, i)
		}
		seen[code] = true
	}
}
