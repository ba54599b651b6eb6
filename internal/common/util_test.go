package common

import (
	"bytes"
	"testing"
)

func TestGenerateRandByteArray_SizeAndEntropy(t *testing.T) {
	const n = 32
	a := GenerateRandByteArray(n)
	b := GenerateRandByteArray(n)
	if len(a) != n || len(b) != n {
		t.Fatalf("expected %d bytes, got %d and %d", n, len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two random arrays should not be equal")
	}
}

func TestWipeByteArray(t *testing.T) {
	b := []byte("sensitive")
	WipeByteArray(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %v", i, v)
		}
	}

	// nil must not panic
	WipeByteArray(nil)
}
