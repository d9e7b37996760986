// Package merklehash implements the personalized Merkle-node hash and its
// empty-subtree constants (spec §4.A), plus the note-commitment and
// nullifier derivations that feed the cmx tree and the nullifier-range tree.
//
// Hashing is Poseidon2 over the BN254 scalar field, matching the teacher's
// pkg/crypto.Hash/HashWithDomainTag — domain-tagged so that an interior node
// hash, a note commitment and a nullifier never collide by construction.
package merklehash

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
)

// CmxHash is the personalized Merkle-node hash: cmx_hash(layer, left, right).
// The layer index is mixed in as a domain tag so that a node at layer i and
// one at layer j hash to different values even given identical children —
// the teacher's HashWithDomainTag pattern, with the tag carrying the layer
// instead of a fixed real/padding flag.
func CmxHash(layer uint8, left, right field.Element) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()

	var tag fr.Element
	tag.SetInt64(int64(config.DomainTagMerkleNode)<<8 | int64(layer))
	tagBytes := tag.Bytes()
	h.Write(tagBytes[:])

	lb := left.Bytes()
	rb := right.Bytes()
	// Poseidon2 takes big-endian field bytes; our Element.Bytes is
	// little-endian canonical (spec §3), so reverse before feeding the
	// hasher — the hasher's internal encoding is not spec-visible.
	lbe := reverse32(lb)
	rbe := reverse32(rb)
	h.Write(lbe[:])
	h.Write(rbe[:])

	sum := h.Sum(nil)
	var out fr.Element
	out.SetBytes(sum)
	return beFrToElement(out)
}

func reverse32(b [32]byte) [32]byte {
	var out [32]byte
	for i := 0; i < 32; i++ {
		out[i] = b[31-i]
	}
	return out
}

func beFrToElement(e fr.Element) field.Element {
	be := e.Bytes()
	return field.MustFromLEBytes(reverseSlice(be[:]))
}

func reverseSlice(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

var (
	emptyOnce   sync.Once
	emptyHashes [config.Depth + 1]field.Element
)

// emptyHash0 is the protocol constant empty_hash(0) (spec §3): the
// domain-separated hash of an all-zero padding leaf, mirroring the
// teacher's ComputeZeroLeafHash.
func emptyHash0() field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	var tag fr.Element
	tag.SetInt64(int64(config.DomainTagMerkleNode))
	tagBytes := tag.Bytes()
	h.Write(tagBytes[:])
	var zero fr.Element
	zb := zero.Bytes()
	h.Write(zb[:])
	sum := h.Sum(nil)
	var out fr.Element
	out.SetBytes(sum)
	return beFrToElement(out)
}

func initEmptyHashes() {
	emptyHashes[0] = emptyHash0()
	for i := 0; i < config.Depth; i++ {
		emptyHashes[i+1] = CmxHash(uint8(i), emptyHashes[i], emptyHashes[i])
	}
}

// EmptyHashAt returns empty_hash(i), the hash of an all-empty subtree rooted
// at layer i (spec §3).
func EmptyHashAt(layer int) field.Element {
	emptyOnce.Do(initEmptyHashes)
	return emptyHashes[layer]
}

// NoteCommitment derives cmx from the note's ownership-bearing attributes and
// the owner's full viewing key's effective spend validating key, mirroring
// the teacher's DerivePublicKey/DeriveCommitment pattern generalized to the
// note's field set (spec §3: "Note ... deterministically derives cmx").
func NoteCommitment(diversifier [11]byte, value uint64, rho field.Element, rseed [32]byte, fvkHash field.Element) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	tag(h, config.DomainTagNoteCommit)
	write(h, bytesToField(diversifier[:]))
	write(h, field.FromUint64(value))
	write(h, rho)
	write(h, bytesToField(rseed[:]))
	write(h, fvkHash)
	return sumToElement(h)
}

// Nullifier derives a note's nullifier from its commitment, rho and the
// owning full viewing key (spec §3: "derives its ... nullifier nf:F").
func Nullifier(cmx field.Element, rho field.Element, fvkHash field.Element) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	tag(h, config.DomainTagNullifier)
	write(h, cmx)
	write(h, rho)
	write(h, fvkHash)
	return sumToElement(h)
}

// DomainNullifier computes domain_nf = Hash_domain(nf, election_domain)
// (spec §4.E step 2(v), GLOSSARY "Domain-nullifier").
func DomainNullifier(nf field.Element, domain field.Element) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	tag(h, config.DomainTagDomainNF)
	write(h, nf)
	write(h, domain)
	return sumToElement(h)
}

// ElectionDomain derives the per-election field element mixed into every
// nullifier so the same note yields different domain_nf values across
// elections (GLOSSARY "Domain").
func ElectionDomain(electionName []byte) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	tag(h, config.DomainTagElectionDom)
	buf := make([]byte, 0, len(electionName)+8)
	buf = append(buf, electionName...)
	h.Write(padTo32Multiple(buf))
	return sumToElement(h)
}

// OwnershipCommit binds a randomized spend-authorization key's pre-image
// (ask, alpha) the same way BallotActionCircuit.ownershipCommitGadget does
// in-circuit, so a builder's off-circuit Action.Rk and the circuit's
// RkCommit public input are always the same value (spec §4.E step 2(vi)).
func OwnershipCommit(ask, alpha field.Element) field.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	tag(h, config.DomainTagMerkleNode+100)
	write(h, ask)
	write(h, alpha)
	return sumToElement(h)
}

func tag(h interface{ Write(...[]byte) }, t int) {
	var e fr.Element
	e.SetInt64(int64(t))
	b := e.Bytes()
	h.Write(b[:])
}

func write(h interface{ Write(...[]byte) }, e field.Element) {
	b := e.Bytes()
	be := reverse32(b)
	h.Write(be[:])
}

func sumToElement(h interface {
	Write(...[]byte)
	Sum([]byte) []byte
}) field.Element {
	sum := h.Sum(nil)
	var out fr.Element
	out.SetBytes(sum)
	return beFrToElement(out)
}

func bytesToField(b []byte) field.Element {
	bi := new(big.Int).SetBytes(b)
	var e fr.Element
	e.SetBigInt(bi)
	return beFrToElement(e)
}

func padTo32Multiple(b []byte) []byte {
	if len(b)%32 == 0 {
		return b
	}
	out := make([]byte, ((len(b)/32)+1)*32)
	copy(out, b)
	return out
}
