package domain

import "testing"

func TestDealSeed(t *testing.T) {
	t.Parallel()

	secret := []byte("seed-test-secret")

	if DealSeed(secret, "pepper", 3) != DealSeed(secret, "pepper", 3) {
		t.Error("same inputs produced different seeds")
	}
	if DealSeed(secret, "pepper", 3) == DealSeed(secret, "pepper", 4) {
		t.Error("different turns produced the same seed")
	}
	if DealSeed(secret, "pepper", 3) == DealSeed(secret, "other", 3) {
		t.Error("different peppers produced the same seed")
	}
	if DealSeed(secret, "pepper", 3) == DealSeed([]byte("other"), "pepper", 3) {
		t.Error("different secrets produced the same seed")
	}
}

func TestNewDealRNGReproducible(t *testing.T) {
	t.Parallel()

	secret := []byte("seed-test-secret")
	a := NewDealRNG(secret, "pepper", 9)
	b := NewDealRNG(secret, "pepper", 9)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(50), b.IntN(50); x != y {
			t.Fatalf("draw %d diverged: %d vs %d", i, x, y)
		}
	}
}
