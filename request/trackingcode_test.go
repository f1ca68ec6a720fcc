package request

import (
	"strings"
	"testing"
)

func TestNewTrackingCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code, err := NewTrackingCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(trackingCodeAlphabet, r) {
				t.Fatalf("code %q uses %q outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}

	// 200 draws from a 31^8 space colliding would point at a broken generator.
	if len(seen) < 199 {
		t.Fatalf("expected near-unique codes, got %d distinct of 200", len(seen))
	}
}

func TestTrackingCodeAlphabetOmitsConfusables(t *testing.T) {
	for _, r := range "0O1IL" {
		if strings.ContainsRune(trackingCodeAlphabet, r) {
			t.Fatalf("alphabet must omit confusable %q", r)
		}
	}
}
