// Package merkletree maintains the append-only cmx commitment tree as an
// incremental frontier (spec §3, §4.D) rather than a fully materialized
// tree: only the "last left sibling at each layer" is kept, which is all a
// new leaf's Merkle path needs once earlier leaves have been folded upward.
package merkletree

import (
	"fmt"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
)

// Frontier is the incremental cursor over an append-only, fixed-depth
// commitment tree: for each layer, the hash of the left sibling still
// waiting to be paired with a right sibling, or nil if that layer is
// currently "empty" (the next node written there will become a left
// sibling). This mirrors original_source's PreviousHashes{lefts:[Option<Hash>;DEPTH]}.
type Frontier struct {
	// Lefts[i] is the pending left-hand hash at layer i, or nil.
	Lefts [config.Depth]*field.Element
	// Size is the number of leaves appended so far.
	Size uint64
}

// NewFrontier returns an empty frontier (an empty cmx tree).
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Position returns the 0-based leaf index the next Append call will assign,
// mirroring PreviousHashes::position() in original_source/src/prevhash.rs.
func (f *Frontier) Position() uint64 {
	return f.Size
}

// Append inserts one leaf hash into the frontier, cascading the
// left/right-pairing fold upward exactly as a full tree insertion would,
// and returns the new root (spec §4.D: "the tree root is recomputed
// incrementally").
func (f *Frontier) Append(leaf field.Element) field.Element {
	cur := leaf
	for i := 0; i < config.Depth; i++ {
		if f.Lefts[i] == nil {
			l := cur
			f.Lefts[i] = &l
			cur = merklehash.CmxHash(uint8(i), cur, merklehash.EmptyHashAt(i))
			break
		}
		parent := merklehash.CmxHash(uint8(i), *f.Lefts[i], cur)
		f.Lefts[i] = nil
		cur = parent
	}
	f.Size++
	return f.Root()
}

// Root recomputes the current tree root from the frontier state, padding
// every still-pending layer with its empty-subtree hash, without needing
// the full set of leaves (spec §4.D).
func (f *Frontier) Root() field.Element {
	var cur field.Element
	haveCur := false
	for i := 0; i < config.Depth; i++ {
		if f.Lefts[i] != nil {
			if !haveCur {
				cur = merklehash.CmxHash(uint8(i), *f.Lefts[i], merklehash.EmptyHashAt(i))
				haveCur = true
			} else {
				cur = merklehash.CmxHash(uint8(i), *f.Lefts[i], cur)
			}
		} else if haveCur {
			cur = merklehash.CmxHash(uint8(i), cur, merklehash.EmptyHashAt(i))
		}
	}
	if !haveCur {
		return merklehash.EmptyHashAt(config.Depth)
	}
	return cur
}

// TreeStateLeaf describes one layer's reported state from a block-stream
// source's tree-state response: the left leaf hash at that layer and,
// separately, a right leaf hash if the source reports both siblings filled
// at the same layer simultaneously (possible when resuming from a tree
// snapshot that already folded a full subtree).
type TreeStateLeaf struct {
	Layer int
	Left  *field.Element
	Right *field.Element
}

// FoldTreeState reconstructs a frontier from a block-stream source's
// reported per-layer state, folding any layer reporting both a left and a
// right leaf into a carry that cascades into higher layers — the
// merge-on-read behavior original_source/src/prevhash.rs implements in
// fetch_tree_state for exactly this situation ("§12 SUPPLEMENTED FEATURES"
// in SPEC_FULL.md).
func FoldTreeState(leaves []TreeStateLeaf, size uint64) (*Frontier, error) {
	f := &Frontier{Size: size}
	var carry *field.Element
	carryLayer := -1

	for _, ts := range leaves {
		if ts.Layer >= config.Depth {
			return nil, fmt.Errorf("merkletree: tree-state layer %d out of range", ts.Layer)
		}
		left := ts.Left
		if carry != nil && carryLayer == ts.Layer {
			if left != nil {
				return nil, fmt.Errorf("merkletree: tree-state layer %d reports a left leaf and an incoming carry simultaneously", ts.Layer)
			}
			left = carry
			carry = nil
		}

		switch {
		case left != nil && ts.Right != nil:
			parent := merklehash.CmxHash(uint8(ts.Layer), *left, *ts.Right)
			carry = &parent
			carryLayer = ts.Layer + 1
		case left != nil:
			f.Lefts[ts.Layer] = left
		case ts.Right != nil:
			return nil, fmt.Errorf("merkletree: tree-state layer %d reports a right leaf with no left", ts.Layer)
		}
	}

	if carry != nil {
		if carryLayer >= config.Depth {
			return nil, fmt.Errorf("merkletree: tree-state carry overflowed past depth %d", config.Depth)
		}
		f.Lefts[carryLayer] = carry
	}
	return f, nil
}
