package merkletree

import (
	"fmt"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
)

// MerklePath is a leaf's inclusion witness against a fixed-depth tree: one
// sibling hash per layer plus the leaf's position, which also encodes
// left/right at every layer (bit i of Position selects the sibling side at
// layer i). Root() recomputes the anchor the same way spec §4.D describes.
type MerklePath struct {
	Position uint64
	Siblings [config.Depth]field.Element
}

// Root folds the path's siblings up from the leaf to recover the tree root,
// used by both the ballot builder (to populate a circuit witness) and
// Go-level sanity checks against an expected anchor.
func (p MerklePath) Root(leaf field.Element) field.Element {
	cur := leaf
	pos := p.Position
	for i := 0; i < config.Depth; i++ {
		sib := p.Siblings[i]
		if pos&1 == 0 {
			cur = merklehash.CmxHash(uint8(i), cur, sib)
		} else {
			cur = merklehash.CmxHash(uint8(i), sib, cur)
		}
		pos >>= 1
	}
	return cur
}

// BuildPaths computes inclusion paths for a set of target leaf positions
// against the tree formed by appending leaves in order, starting from an
// empty tree (spec §4.D, "Merkle-Path engine"). It folds the leaf array
// layer by layer exactly as Frontier.Append does internally, so a path
// produced here always verifies against Frontier.Root() computed over the
// same leaf sequence — this mirrors the layer-folding loop in
// original_source/src/path.rs's calculate_merkle_paths, generalized from
// operating on the running frontier alone to operating on the full window
// of leaves a caller has on hand (e.g. everything back to the last
// checkpointed anchor).
func BuildPaths(leaves []field.Element, targets []uint64) (map[uint64]MerklePath, error) {
	for _, t := range targets {
		if t >= uint64(len(leaves)) {
			return nil, fmt.Errorf("merkletree: target position %d out of range (have %d leaves)", t, len(leaves))
		}
	}

	paths := make(map[uint64]MerklePath, len(targets))
	for _, t := range targets {
		paths[t] = MerklePath{Position: t}
	}

	layer := make([]field.Element, len(leaves))
	copy(layer, leaves)
	layerTargets := make([]uint64, len(targets))
	copy(layerTargets, targets)

	for i := 0; i < config.Depth; i++ {
		n := len(layer)
		next := make([]field.Element, (n+1)/2)
		for j := 0; j < len(next); j++ {
			li := 2 * j
			ri := 2*j + 1
			left := layer[li]
			var right field.Element
			if ri < n {
				right = layer[ri]
			} else {
				right = merklehash.EmptyHashAt(i)
			}
			next[j] = merklehash.CmxHash(uint8(i), left, right)
		}

		for k, t := range layerTargets {
			mp := paths[targets[k]]
			pos := t
			if pos%2 == 0 {
				if int(pos+1) < n {
					mp.Siblings[i] = layer[pos+1]
				} else {
					mp.Siblings[i] = merklehash.EmptyHashAt(i)
				}
			} else {
				mp.Siblings[i] = layer[pos-1]
			}
			paths[targets[k]] = mp
			layerTargets[k] = pos / 2
		}

		layer = next
	}

	return paths, nil
}

// RootOf computes the root of the fixed-depth tree formed by appending
// leaves in order, without needing a path for any particular leaf — the
// CLI uses this once per snapshot to populate an election's cmx_root and
// nf_root (spec §6: "cmx_root"/"nf_root" anchors).
func RootOf(leaves []field.Element) (field.Element, error) {
	if len(leaves) == 0 {
		return merklehash.EmptyHashAt(config.Depth), nil
	}
	paths, err := BuildPaths(leaves, []uint64{0})
	if err != nil {
		return field.Element{}, err
	}
	return paths[0].Root(leaves[0]), nil
}
