package field_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/hhanh00/shielded-vote/field"
)

func TestLEBytesRoundTrip(t *testing.T) {
	e := field.FromUint64(424242)
	b := e.Bytes()
	got, err := field.FromLEBytes(b[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(e) {
		t.Fatal("round trip changed value")
	}
}

func TestFromLEBytesRejectsNonCanonical(t *testing.T) {
	p := new(big.Int).Add(field.MaxValue().BigInt(), big.NewInt(1))
	be := p.Bytes()
	var raw [32]byte
	for i := 0; i < len(be); i++ {
		raw[i] = be[len(be)-1-i]
	}
	if _, err := field.FromLEBytes(raw[:]); err == nil {
		t.Fatal("expected an error decoding a value >= the field characteristic")
	}
}

func TestFromLEBytesRejectsWrongLength(t *testing.T) {
	if _, err := field.FromLEBytes(make([]byte, 31)); err == nil {
		t.Fatal("expected an error for a non-32-byte input")
	}
}

func TestCmpTotalOrder(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	if a.Cmp(b) >= 0 {
		t.Fatal("expected 1 < 2")
	}
	if b.Cmp(a) <= 0 {
		t.Fatal("expected 2 > 1")
	}
	if a.Cmp(a) != 0 {
		t.Fatal("expected equal elements to compare equal")
	}
}

func TestMaxValueIsFieldCharacteristicMinusOne(t *testing.T) {
	max := field.MaxValue()
	one := field.One()
	sum := max.Add(one)
	if !sum.Equal(field.Zero()) {
		t.Fatal("expected p-1 + 1 to wrap to 0")
	}
}

func TestAddSubNegIdentities(t *testing.T) {
	a := field.FromUint64(17)
	b := field.FromUint64(5)
	if !a.Sub(b).Add(b).Equal(a) {
		t.Fatal("(a-b)+b != a")
	}
	if !a.Add(a.Neg()).Equal(field.Zero()) {
		t.Fatal("a + (-a) != 0")
	}
}

func TestBytesAreLittleEndian(t *testing.T) {
	e := field.FromUint64(1)
	b := e.Bytes()
	want := make([]byte, 32)
	want[0] = 1
	if !bytes.Equal(b[:], want) {
		t.Fatalf("expected little-endian encoding of 1, got %x", b)
	}
}
