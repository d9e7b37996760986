package note

import (
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
)

// Note is a single shielded value-bearing record: a diversified address, a
// value, and the nonce/randomness pair that lets its owner, and only its
// owner, derive the note's commitment and nullifier (spec §3: "Note").
type Note struct {
	D      Diversifier
	Value  uint64
	Rho    field.Element
	Rseed  [32]byte
	FvkSum field.Element // owning FVK's Hash(), cached so Cmx/Nullifier don't need the key material
}

// New constructs a note owned by fvk at diversifier d, value, and the
// given rho/rseed pair. The ballot builder creates its output notes with
// NewForRecipient instead, with rho set to the paired input's nullifier
// and a fresh random rseed.
func New(fvk FullViewingKey, d Diversifier, value uint64, rho field.Element, rseed [32]byte) Note {
	return Note{D: d, Value: value, Rho: rho, Rseed: rseed, FvkSum: fvk.Hash()}
}

// NewForRecipient is New without the recipient's secret key material: a
// ballot builder constructing an output note for someone else's address
// never holds that address owner's FullViewingKey, only the fvkHash a
// candidate's address publishes alongside itself (spec §4.E step 1; see
// election.CandidateFullViewingKey, which any participant can re-derive
// from the election's public seed).
func NewForRecipient(d Diversifier, value uint64, rho field.Element, rseed [32]byte, fvkHash field.Element) Note {
	return Note{D: d, Value: value, Rho: rho, Rseed: rseed, FvkSum: fvkHash}
}

// Cmx is the note's commitment, the leaf value this note occupies in the
// commitment tree once its creating ballot is accepted (spec §3, §4.A).
func (n Note) Cmx() field.Element {
	var d [11]byte
	copy(d[:], n.D[:])
	return merklehash.NoteCommitment(d, n.Value, n.Rho, n.Rseed, n.FvkSum)
}

// Nullifier is the value this note's spend reveals in place of its
// commitment, preventing the same note from being spent twice without
// linking the spend back to the commitment itself (spec §3).
func (n Note) Nullifier() field.Element {
	return merklehash.Nullifier(n.Cmx(), n.Rho, n.FvkSum)
}
