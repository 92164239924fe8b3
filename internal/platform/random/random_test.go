package random

import "testing"

func TestNewPepperShape(t *testing.T) {
	t.Parallel()

	pepper, err := NewPepper()
	if err != nil {
		t.Fatalf("new pepper: %v", err)
	}
	if len(pepper) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(pepper))
	}
}

func TestNewIDUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(id) != 32 {
			t.Fatalf("expected 32 hex chars, got %d", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
