package game

import (
	"errors"
	"testing"
)

// TestIDRegistryUnique tests that ids are eight characters and never repeat
func TestIDRegistryUnique(t *testing.T) {
	r := NewIDRegistry()
	seen := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		id, err := r.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		s := id.String()
		if len(s) != 8 {
			t.Fatalf("Expected 8 characters, got %q", s)
		}
		if seen[s] {
			t.Fatalf("Duplicate id %q", s)
		}
		seen[s] = true
	}
	if r.Issued() != 2000 {
		t.Errorf("Expected 2000 issued, got %d", r.Issued())
	}
}

// TestIDRegistryRetriesCollisions tests that a repeated draw is skipped
func TestIDRegistryRetriesCollisions(t *testing.T) {
	draws := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	r := NewIDRegistry()
	r.generate = func() (string, error) {
		s := draws[0]
		draws = draws[1:]
		return s, nil
	}

	first, _ := r.Next()
	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.String() != "aaaaaaaa" || second.String() != "bbbbbbbb" {
		t.Errorf("Expected aaaaaaaa then bbbbbbbb, got %s then %s", first, second)
	}
}

// TestIDRegistryExhausted tests the retry bound
func TestIDRegistryExhausted(t *testing.T) {
	r := NewIDRegistry()
	r.generate = func() (string, error) { return "samesame", nil }

	if _, err := r.Next(); err != nil {
		t.Fatalf("First Next failed: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrIDSpaceExhausted) {
		t.Errorf("Expected ErrIDSpaceExhausted, got %v", err)
	}
}
