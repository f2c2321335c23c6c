package dht

import (
	"strings"
	"testing"
)

func mustID(t *testing.T, s string) IDHash {
	t.Helper()
	id, err := IDFromHex(s)
	if err != nil {
		t.Fatalf("IDFromHex(%q): %v", s, err)
	}
	return id
}

func TestIDFromHexRoundTrip(t *testing.T) {
	hexStr := strings.Repeat("ab", IDLength)
	id := mustID(t, hexStr)
	if id.String() != hexStr {
		t.Errorf("String() = %q, want %q", id.String(), hexStr)
	}
}

func TestIDFromHexRejectsWrongLength(t *testing.T) {
	cases := []string{
		"",
		"ab",
		strings.Repeat("ab", IDLength) + "ab",
		strings.Repeat("ab", IDLength-1),
	}
	for _, c := range cases {
		if _, err := IDFromHex(c); err != ErrInvalidID {
			t.Errorf("IDFromHex(%q) err = %v, want ErrInvalidID", c, err)
		}
	}
}

func TestIDFromHexRejectsNonHex(t *testing.T) {
	bad := strings.Repeat("zz", IDLength)
	if _, err := IDFromHex(bad); err != ErrInvalidID {
		t.Errorf("IDFromHex(%q) err = %v, want ErrInvalidID", bad, err)
	}
}

func TestXORSelfIsZero(t *testing.T) {
	id := mustID(t, strings.Repeat("42", IDLength))
	zero := id.XOR(id)
	for _, b := range zero {
		if b != 0 {
			t.Fatalf("x xor x = %x, want all zero", zero)
		}
	}
}

func TestXORWithZeroIsIdentity(t *testing.T) {
	id := mustID(t, strings.Repeat("42", IDLength))
	var zero IDHash
	if id.XOR(zero) != id {
		t.Fatalf("x xor 0 = %v, want %v", id.XOR(zero), id)
	}
}

func TestXORIsCommutative(t *testing.T) {
	a := mustID(t, strings.Repeat("11", IDLength))
	b := mustID(t, strings.Repeat("22", IDLength))
	if a.XOR(b) != b.XOR(a) {
		t.Fatalf("xor(a,b) != xor(b,a)")
	}
}

func TestCompareTotalOrder(t *testing.T) {
	low := mustID(t, strings.Repeat("0", IDLength*2-1)+"1")
	high := mustID(t, strings.Repeat("f", IDLength*2))
	if !low.Less(high) {
		t.Fatal("expected low < high")
	}
	if high.Less(low) {
		t.Fatal("expected high not < low")
	}
	if !low.LessOrEqual(low) {
		t.Fatal("expected low <= low")
	}
	if low.Compare(low) != 0 {
		t.Fatal("expected low == low")
	}
}

func TestMaxIDHash(t *testing.T) {
	max := MaxIDHash()
	for _, b := range max {
		if b != 0xFF {
			t.Fatalf("MaxIDHash() = %v, want all 0xff", max)
		}
	}
}
