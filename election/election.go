// Package election holds the public description of a vote: its question,
// candidate list, validity window, and the snapshot anchors ballots are
// proved against (spec §3: "Election", "Snapshot").
package election

import (
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/note"
)

// CandidateChoice is one selectable option on the ballot: the payout
// address a vote for this candidate ultimately routes value to, and the
// candidate's ordinal choice index.
type CandidateChoice struct {
	Address note.Address
	Choice  uint32
}

// Election is the public, signed description of a single vote: enough for
// any participant to build and validate ballots against the same anchors
// without a central coordinator mediating each submission (spec §3).
type Election struct {
	ID                string
	Name              string
	StartHeight       uint64
	EndHeight         uint64
	Question          string
	Candidates        []CandidateChoice
	SignatureRequired bool

	// Snapshot anchors: the commitment-tree root and nullifier-range-tree
	// root ballots built against this election must match (spec §3,
	// §4.D/§4.C).
	CmxRoot field.Element
	NfRoot  field.Element

	// CmxFrontier is the incremental cursor a new ballot's output notes
	// extend from once the election closes and unconfirmed outputs are
	// folded into the next snapshot (mirrors election.rs's cmx_frontier).
	CmxFrontier []byte
}

// Domain derives the per-election field element mixed into every
// nullifier this election's ballots reveal, so the same note spent in two
// different elections produces unlinkable nullifiers (GLOSSARY "Domain",
// original_source/src/election.rs's domain()).
func (e Election) Domain() field.Element {
	return merklehash.ElectionDomain([]byte(e.ID))
}

// CandidateAddress derives a deterministic payout address for candidate
// index i from the election's own seed material rather than requiring each
// candidate to pre-register an address out of band, mirroring
// original_source/src/refs.rs's get_candidate_fvk/get_candidate_address,
// which derives one ZIP-32-style child account per candidate index from a
// shared election seed (SPEC_FULL.md §12).
func CandidateAddress(electionSeed []byte, candidateIndex uint32) (note.Address, error) {
	fvk, err := CandidateFullViewingKey(electionSeed, candidateIndex)
	if err != nil {
		return note.Address{}, err
	}
	d := candidateDiversifier(electionSeed, candidateIndex)
	return note.DeriveAddress(fvk.IVK(), d), nil
}

// CandidateFullViewingKey re-derives the full viewing key behind a
// candidate's payout address. Anyone building a ballot needs this to
// construct the candidate's output note (note.NewForRecipient needs the
// recipient's FVK hash, which only the address owner would normally be
// able to supply) — legitimate here because a candidate's address is
// itself deterministically derived from the election's public seed, not a
// secret the candidate holds (SPEC_FULL.md §12).
func CandidateFullViewingKey(electionSeed []byte, candidateIndex uint32) (note.FullViewingKey, error) {
	sk, err := candidateSpendingKey(electionSeed, candidateIndex)
	if err != nil {
		return note.FullViewingKey{}, err
	}
	return note.DeriveFullViewingKey(sk), nil
}
