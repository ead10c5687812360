package memzero

import "testing"

func TestZero(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4}
	Zero(a, nil, b)
	for i, v := range append(a, b...) {
		if v != 0 {
			t.Fatalf("byte %d = %d after Zero", i, v)
		}
	}
}
