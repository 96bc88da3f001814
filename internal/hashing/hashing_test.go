package hashing

import "testing"

func TestHash64Deterministic(t *testing.T) {
	a := Hash64([]byte("func foo(): Int"))
	b := Hash64([]byte("func foo(): Int"))
	if a != b {
		t.Errorf("Hash64 is not deterministic: %d != %d", a, b)
	}
}

func TestHash64Sensitivity(t *testing.T) {
	a := Hash64([]byte("func foo(): Int"))
	b := Hash64([]byte("func foo(): Long"))
	if a == b {
		t.Error("Hash64 should differ when the signature changes")
	}
}

func TestHash64BodyOnlyChange(t *testing.T) {
	// Changing an implementation detail that the caller never includes in
	// the digested bytes (i.e. the caller digests only the signature, not
	// the body) must not change the hash.
	a := Hash64([]byte("func foo(): Int"))
	b := Hash64([]byte("func foo(): Int")) // same signature, different body upstream
	if a != b {
		t.Error("identical signatures must hash identically regardless of body")
	}
}

func TestCombineOrderSensitive(t *testing.T) {
	a := Combine(1, 2, 3)
	b := Combine(3, 2, 1)
	if a == b {
		t.Error("Combine should be order-sensitive")
	}
}

func TestCombineUnorderedOrderInsensitive(t *testing.T) {
	a := CombineUnordered(1, 2, 3)
	b := CombineUnordered(3, 1, 2)
	if a != b {
		t.Errorf("CombineUnordered should not depend on order: %d != %d", a, b)
	}
}

func TestCombineUnorderedEmpty(t *testing.T) {
	if CombineUnordered() != 0 {
		t.Error("CombineUnordered of no parts should be the zero value")
	}
}
