// Package config holds protocol-wide constants shared by every layer of the
// ballot engine: tree depth, domain-separation tags, and encoding widths.
package config

const (
	// Depth is the fixed Merkle tree depth used for both the cmx tree and
	// the nullifier-range tree (spec §3, §4.D: "Fixed tree depth D = 32").
	Depth = 32

	// HashSize is the canonical little-endian byte width of a field element
	// or a Merkle-node hash.
	HashSize = 32

	// DiversifierSize is the byte width of a note's diversifier.
	DiversifierSize = 11

	// CiphertextSize is the byte width of a compact note ciphertext as
	// carried in a ballot action ("enc:[84]" in spec §3).
	CiphertextSize = 84

	// AddressSize is the byte width of a unified shielded payment address
	// as recorded in an election's candidate list (spec §3: "address[43]").
	AddressSize = 43
)

// Domain separation tags mixed into Poseidon2 hashes so that leaf hashes,
// interior node hashes, nullifiers and note commitments never collide by
// construction, matching the teacher's DomainTagReal/DomainTagPadding split
// (pkg/crypto in the teacher repo) generalized to the handful of distinct
// object kinds this protocol hashes.
// DomainTagValueCommit (5) was the Poseidon2 domain tag for the old
// merklehash.ValueCommit. Value commitments are now EC Pedersen commitments
// (see the pedersen package), which domain-separate their two generators by
// hash-to-curve tag rather than a Poseidon2 integer tag, so 5 is retired
// rather than reassigned — reusing it for an unrelated hash would make an
// old ValueCommit-tagged hash collide with whatever takes its place.
const (
	DomainTagMerkleNode  = 0
	DomainTagNoteCommit  = 1
	DomainTagNullifier   = 2
	DomainTagDomainNF    = 3
	DomainTagElectionDom = 4
)

// SighashPersonal is the 16-byte BLAKE2b personalization string for a
// ballot's sighash (spec §4.A).
var SighashPersonal = [16]byte{'Z', 'c', 'a', 's', 'h', '_', 'V', 'o', 't', 'e', 'B', 'a', 'l', 'l', 'o', 't'}
