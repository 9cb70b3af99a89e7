package security

import "testing"

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4) // min cost keeps the test fast
	hash, err := h.Hash([]byte("s3cret-Passw0rd!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("s3cret-Passw0rd!")); err != nil {
		t.Errorf("Compare with correct password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Error("Compare should fail for wrong password")
	}
}

func TestNewHasher_ClampsCost(t *testing.T) {
	for _, cost := range []int{-1, 0, 1, 99} {
		h := NewHasher(cost)
		if _, err := h.Hash([]byte("x")); err != nil {
			t.Errorf("Hash with constructor cost %d: %v", cost, err)
		}
	}
}
