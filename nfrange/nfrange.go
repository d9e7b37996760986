// Package nfrange builds and searches the nullifier-range tree: a
// fixed-depth Merkle tree whose leaves are the endpoints of inclusive
// ranges of nullifier values that have NOT been spent. Proving a note's
// nullifier falls inside one of these ranges is a non-membership proof
// against the spent-nullifier set, without ever revealing which spent
// nullifiers exist (spec §3, §4.C).
package nfrange

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hhanh00/shielded-vote/field"
)

// Range is one inclusive span [Start, End] of unspent nullifier values,
// sitting between two consecutive spent nullifiers (or between 0/the field
// maximum and the nearest spent nullifier at the ends).
type Range struct {
	Start field.Element
	End   field.Element
}

var one = big.NewInt(1)

// Build computes the sorted list of unspent ranges from a set of spent
// nullifiers, mirroring original_source/src/trees.rs's build_nf_ranges:
// sort the spent set, then emit the gap before each spent value and,
// finally, the gap after the last one up to the field maximum.
func Build(spent []field.Element) []Range {
	sorted := make([]field.Element, len(spent))
	copy(sorted, spent)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	var ranges []Range
	prev := big.NewInt(0)
	for i, s := range sorted {
		if i > 0 && s.Equal(sorted[i-1]) {
			continue // duplicate spend record, collapse it
		}
		sBI := s.BigInt()
		if sBI.Cmp(prev) > 0 {
			end := new(big.Int).Sub(sBI, one)
			ranges = append(ranges, Range{
				Start: field.MustFromLEBytes(leBytes(prev)),
				End:   field.MustFromLEBytes(leBytes(end)),
			})
		}
		prev = new(big.Int).Add(sBI, one)
	}

	max := field.MaxValue().BigInt()
	if prev.Cmp(max) <= 0 {
		ranges = append(ranges, Range{
			Start: field.MustFromLEBytes(leBytes(prev)),
			End:   field.MaxValue(),
		})
	}
	return ranges
}

func leBytes(bi *big.Int) []byte {
	be := bi.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(be):], be)
	// reverse to little-endian
	for i, j := 0, 31; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Leaves flattens the range list into the tree's leaf sequence:
// [start_0, end_0, start_1, end_1, ...], the order Build and Search agree
// on and the order fed to merkletree.BuildPaths/Frontier to compute the
// nullifier-range root (spec §4.C: "tree over range endpoints").
func Leaves(ranges []Range) []field.Element {
	leaves := make([]field.Element, 0, 2*len(ranges))
	for _, r := range ranges {
		leaves = append(leaves, r.Start, r.End)
	}
	return leaves
}

// ErrDoubleNullifier is returned when a nullifier is found to already be
// spent: it lands strictly between two ranges rather than on a boundary or
// inside a range.
var ErrDoubleNullifier = fmt.Errorf("nfrange: nullifier already spent")

// Search locates nf among a range list's flattened leaves and returns the
// leaf position to use as the Merkle-path witness. An exact hit on a leaf
// is valid and coerces to that leaf's own position (boundary values are
// themselves unspent, per spec §4.C's "inclusive" ranges). A non-exact hit
// landing at an odd insertion index is inside a range's interior and is
// valid; landing at an even insertion index falls in the gap between two
// ranges — i.e. among already-spent values — and reports
// ErrDoubleNullifier, mirroring original_source/src/proof.rs's witness
// lookup (SPEC_FULL.md §12, "nf_start/nf_position witness coercion").
func Search(ranges []Range, nf field.Element) (uint64, error) {
	leaves := Leaves(ranges)
	n := len(leaves)
	if n == 0 {
		return 0, fmt.Errorf("nfrange: empty range set")
	}

	idx := sort.Search(n, func(i int) bool { return leaves[i].Cmp(nf) >= 0 })
	if idx < n && leaves[idx].Equal(nf) {
		if idx%2 == 1 {
			// exact hit on a range's End: coerce to that range's Start.
			return uint64(idx - 1), nil
		}
		return uint64(idx), nil
	}

	if idx%2 == 1 {
		// strictly inside [leaves[idx-1], leaves[idx]] == a range's interior.
		return uint64(idx - 1), nil
	}
	return 0, ErrDoubleNullifier
}
