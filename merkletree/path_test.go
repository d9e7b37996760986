package merkletree_test

import (
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/merkletree"
)

// TestBuildPathsVerifiesAgainstFrontierRoot matches spec §8: "for all Merkle
// paths produced by §4.D over CMXs and an absolute position p, verifying
// the path against cmx_root with the leaf at p yields true."
func TestBuildPathsVerifiesAgainstFrontierRoot(t *testing.T) {
	leaves := []field.Element{
		field.FromUint64(1), field.FromUint64(2), field.FromUint64(3),
	}
	frontier := merkletree.NewFrontier()
	var root field.Element
	for _, l := range leaves {
		root = frontier.Append(l)
	}

	paths, err := merkletree.BuildPaths(leaves, []uint64{0, 1, 2})
	if err != nil {
		t.Fatalf("build paths: %v", err)
	}
	for pos, leaf := range leaves {
		p, ok := paths[uint64(pos)]
		if !ok {
			t.Fatalf("missing path for position %d", pos)
		}
		if p.Position != uint64(pos) {
			t.Fatalf("path position mismatch: want %d got %d", pos, p.Position)
		}
		got := p.Root(leaf)
		if !got.Equal(root) {
			t.Fatalf("position %d: path does not verify against frontier root", pos)
		}
	}
}

// TestBuildPathsRejectsOutOfRangePosition matches spec §4.E's OutOfRange
// failure mode: a target position beyond the snapshot's leaf count.
func TestBuildPathsRejectsOutOfRangePosition(t *testing.T) {
	leaves := []field.Element{field.FromUint64(1)}
	if _, err := merkletree.BuildPaths(leaves, []uint64{5}); err == nil {
		t.Fatal("expected an error for an out-of-range position")
	}
}

// TestOddLeafCountPadsWithEmptyHash matches spec §8 scenario 3: CMXs=[a,b,c]
// pads with empty_hash(0); root = cmx_hash(1, cmx_hash(0,a,b), cmx_hash(0,c,empty)).
func TestOddLeafCountPadsWithEmptyHash(t *testing.T) {
	a := field.FromUint64(11)
	b := field.FromUint64(22)
	c := field.FromUint64(33)

	root, err := merkletree.RootOf([]field.Element{a, b, c})
	if err != nil {
		t.Fatalf("root of: %v", err)
	}

	left := merklehash.CmxHash(0, a, b)
	right := merklehash.CmxHash(0, c, merklehash.EmptyHashAt(0))
	layer1 := merklehash.CmxHash(1, left, right)

	want := layer1
	for i := 2; i < 32; i++ {
		want = merklehash.CmxHash(uint8(i), want, merklehash.EmptyHashAt(i))
	}

	if !root.Equal(want) {
		t.Fatal("odd-length leaf set did not pad and fold as expected")
	}
}

func TestEmptyTreeRootIsEmptyHashAtDepth(t *testing.T) {
	root, err := merkletree.RootOf(nil)
	if err != nil {
		t.Fatalf("root of: %v", err)
	}
	if !root.Equal(merklehash.EmptyHashAt(32)) {
		t.Fatal("empty tree root should equal empty_hash(32)")
	}
}

func TestRootOfMatchesFrontierRoot(t *testing.T) {
	leaves := []field.Element{
		field.FromUint64(4), field.FromUint64(5), field.FromUint64(6), field.FromUint64(7),
	}
	frontier := merkletree.NewFrontier()
	var frontierRoot field.Element
	for _, l := range leaves {
		frontierRoot = frontier.Append(l)
	}
	rootOf, err := merkletree.RootOf(leaves)
	if err != nil {
		t.Fatalf("root of: %v", err)
	}
	if !rootOf.Equal(frontierRoot) {
		t.Fatal("RootOf and incremental Frontier disagree on the same leaf sequence")
	}
}
