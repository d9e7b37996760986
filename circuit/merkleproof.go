// Package circuit defines the PLONK circuits and their compile/setup/prove/
// verify plumbing for ballot actions and tally reveals (spec §4.E, §4.F,
// §4.G). It follows the teacher's gnark conventions throughout: circuits
// are frontend.Circuit values with frontend.Variable fields, hashing inside
// a circuit goes through the std/permutation/poseidon2 gadget, and equality
// constraints are asserted with api.AssertIsEqual.
package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/hhanh00/shielded-vote/config"
)

// newInCircuitHasher builds the same Poseidon2 Merkle-Damgård hasher shape
// the teacher's circuits use (poseidon2.NewPoseidon2FromParameters(api, 2,
// 6, 50) wrapped by hash.NewMerkleDamgardHasher), so host-side
// merklehash.CmxHash and this in-circuit hash are the same function.
func newInCircuitHasher(api frontend.API) (hash.FieldHasher, error) {
	perm, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return nil, err
	}
	return hash.NewMerkleDamgardHasher(api, perm, 0), nil
}

// cmxHashGadget re-derives merklehash.CmxHash inside the circuit: a domain
// tag carrying the layer index, then the two children.
func cmxHashGadget(api frontend.API, layer int, left, right frontend.Variable) (frontend.Variable, error) {
	h, err := newInCircuitHasher(api)
	if err != nil {
		return nil, err
	}
	tag := config.DomainTagMerkleNode<<8 | layer
	h.Write(tag, left, right)
	return h.Sum(), nil
}

// MerkleProofCircuit is a standalone fixed-depth Merkle-membership circuit
// built on foldMerklePath. It generalizes the teacher's
// circuits/poi/merkle.go MerkleProofCircuit, which was hard-wired to one
// fixed leaf role, into a component whose leaf is an ordinary input. No
// other circuit in this repo embeds it: BallotActionCircuit calls
// foldMerklePath directly for each of its memberships.
type MerkleProofCircuit struct {
	Leaf      frontend.Variable
	Siblings  [config.Depth]frontend.Variable
	PathBits  [config.Depth]frontend.Variable // 0 = leaf is left child, 1 = leaf is right child
	Root      frontend.Variable
}

// Define asserts that folding Leaf up through Siblings according to
// PathBits yields Root, matching merkletree.MerklePath.Root's Go-level
// folding exactly. BallotActionCircuit does not use this type: it calls
// foldMerklePath directly for its commitment-tree path and its two
// nullifier-range paths, so all three memberships share one Define without
// a sub-circuit boundary.
func (c *MerkleProofCircuit) Define(api frontend.API) error {
	root, err := foldMerklePath(api, c.Leaf, c.Siblings[:], c.PathBits[:])
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.Root)
	return nil
}

// foldMerklePath folds leaf up through siblings according to pathBits and
// returns the resulting root variable, without asserting equality itself —
// the caller (BallotActionCircuit, or MerkleProofCircuit.Define above)
// decides what the computed root is checked against.
func foldMerklePath(api frontend.API, leaf frontend.Variable, siblings []frontend.Variable, pathBits []frontend.Variable) (frontend.Variable, error) {
	cur := leaf
	for i := 0; i < config.Depth; i++ {
		api.AssertIsBoolean(pathBits[i])
		left := api.Select(pathBits[i], siblings[i], cur)
		right := api.Select(pathBits[i], cur, siblings[i])
		next, err := cmxHashGadget(api, i, left, right)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
