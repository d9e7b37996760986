package merklehash_test

import (
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
)

func TestCmxHashDeterministic(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	h1 := merklehash.CmxHash(3, a, b)
	h2 := merklehash.CmxHash(3, a, b)
	if !h1.Equal(h2) {
		t.Fatal("CmxHash is not deterministic")
	}
}

func TestCmxHashLayerIsDomainSeparated(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	h0 := merklehash.CmxHash(0, a, b)
	h1 := merklehash.CmxHash(1, a, b)
	if h0.Equal(h1) {
		t.Fatal("expected different layers to hash the same children to different outputs")
	}
}

func TestCmxHashNotCommutative(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	if merklehash.CmxHash(0, a, b).Equal(merklehash.CmxHash(0, b, a)) {
		t.Fatal("expected left/right order to matter")
	}
}

// TestEmptyHashRecursion matches spec §3: empty_hash(i+1) =
// cmx_hash(i, empty_hash(i), empty_hash(i)).
func TestEmptyHashRecursion(t *testing.T) {
	for i := 0; i < 5; i++ {
		got := merklehash.EmptyHashAt(i + 1)
		want := merklehash.CmxHash(uint8(i), merklehash.EmptyHashAt(i), merklehash.EmptyHashAt(i))
		if !got.Equal(want) {
			t.Fatalf("layer %d: empty_hash recursion does not hold", i+1)
		}
	}
}

func TestNullifierAndDomainNullifierDiffer(t *testing.T) {
	cmx := field.FromUint64(10)
	rho := field.FromUint64(20)
	fvkHash := field.FromUint64(30)
	nf := merklehash.Nullifier(cmx, rho, fvkHash)

	domainA := merklehash.ElectionDomain([]byte("election-a"))
	domainB := merklehash.ElectionDomain([]byte("election-b"))

	dnfA := merklehash.DomainNullifier(nf, domainA)
	dnfB := merklehash.DomainNullifier(nf, domainB)

	if dnfA.Equal(dnfB) {
		t.Fatal("expected different election domains to yield different domain-nullifiers for the same note")
	}
	if dnfA.Equal(nf) {
		t.Fatal("expected the domain-nullifier to differ from the bare nullifier")
	}
}

func TestNoteCommitmentDeterministic(t *testing.T) {
	var d [11]byte
	copy(d[:], "diversifier")
	rho := field.FromUint64(1)
	var rseed [32]byte
	rseed[0] = 7
	fvkHash := field.FromUint64(42)

	c1 := merklehash.NoteCommitment(d, 100, rho, rseed, fvkHash)
	c2 := merklehash.NoteCommitment(d, 100, rho, rseed, fvkHash)
	if !c1.Equal(c2) {
		t.Fatal("NoteCommitment is not deterministic")
	}

	c3 := merklehash.NoteCommitment(d, 101, rho, rseed, fvkHash)
	if c1.Equal(c3) {
		t.Fatal("expected a different value to change the commitment")
	}
}
