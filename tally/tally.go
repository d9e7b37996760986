// Package tally implements spec §4.G's tallier: it accepts validated
// ballots, attributes each action's output note to a candidate by trial
// decryption, and publishes a per-candidate reveal proof once counting
// closes.
package tally

import (
	"fmt"
	"math/big"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/election"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/note"
	"github.com/hhanh00/shielded-vote/pedersen"
)

// candidateState is the running count this package maintains per
// candidate. commitment is the homomorphic sum of every accepted action's
// own cv_out (pedersen.Commitment's Add), so S_k = Commit(T_k, R_k) falls
// out of the ballots themselves rather than being invented at reveal time;
// trapdoor tracks the matching sum of the rcv_out values DecryptNote
// recovers alongside each note, so Reveal can open the real commitment
// rather than a freshly drawn one (spec §4.G: "S_k = Commit(T_k, R_k)").
type candidateState struct {
	total      uint64
	trapdoor   field.Element
	commitment pedersen.Commitment
}

// Tally accumulates validated ballots into per-candidate totals (spec
// §4.G). A single Tally is not safe for concurrent use; callers that want
// to ingest ballots concurrently should partition by candidate or serialize
// calls to Accept.
type Tally struct {
	electionSeed []byte
	domain       field.Element
	candidateIVK []note.IncomingViewingKey
	state        []candidateState
	seenDomainNf map[field.Element]bool
}

// New creates a Tally for an election with the given public seed (the same
// seed election.CandidateAddress/CandidateFullViewingKey derive payout
// addresses from) and candidate count.
func New(electionSeed []byte, domain field.Element, numCandidates int) (*Tally, error) {
	ivks := make([]note.IncomingViewingKey, numCandidates)
	for k := 0; k < numCandidates; k++ {
		fvk, err := election.CandidateFullViewingKey(electionSeed, uint32(k))
		if err != nil {
			return nil, fmt.Errorf("tally: derive candidate %d viewing key: %w", k, err)
		}
		ivks[k] = fvk.IVK()
	}
	state := make([]candidateState, numCandidates)
	for k := range state {
		state[k].commitment = pedersen.Identity()
	}
	return &Tally{
		electionSeed: electionSeed,
		domain:       domain,
		candidateIVK: ivks,
		state:        state,
		seenDomainNf: make(map[field.Element]bool),
	}, nil
}

// Accept validates b against params, rejects it if params.Domain doesn't
// match the election this Tally was created for or if any revealed
// domain-nullifier collides with one already accepted (spec §3: "unique
// across accepted ballots"), and otherwise attributes every action's
// output note to whichever candidate it decrypts against. Actions that
// decrypt under no candidate key (pure change back to the voter) are
// silently skipped — they carry no tally weight.
func (t *Tally) Accept(b *ballot.Ballot, params ballot.ValidateParams) error {
	if !params.Domain.Equal(t.domain) {
		return fmt.Errorf("tally: %w: params domain does not match this election", ballot.ErrBadDomain)
	}

	domainNfs, err := ballot.Validate(b, params)
	if err != nil {
		return fmt.Errorf("tally: reject ballot: %w", err)
	}

	for _, dnf := range domainNfs {
		if t.seenDomainNf[dnf] {
			return fmt.Errorf("tally: %w: domain-nullifier already accepted", ballot.ErrDoubleNullifier)
		}
	}

	for _, a := range b.Data.Actions {
		k, n, rcvOut, ok := t.attribute(a)
		if !ok {
			continue
		}
		t.state[k].total += n.Value
		t.state[k].trapdoor = t.state[k].trapdoor.Add(rcvOut)
		commitment, err := t.state[k].commitment.Add(a.CvOut)
		if err != nil {
			return fmt.Errorf("tally: candidate %d: accumulate cv_out: %w", k, err)
		}
		t.state[k].commitment = commitment
	}

	for _, dnf := range domainNfs {
		t.seenDomainNf[dnf] = true
	}
	return nil
}

// attribute attempts trial decryption of a's output note against every
// candidate's incoming viewing key, the same mechanism the ingestor uses
// for own-note detection (spec §4.B), scoped to External since a
// candidate's payout address is always an external recipient (builder.go
// only ever addresses change back to the spender at the Internal scope).
// rcvOut is the trapdoor a.CvOut was built with (note.DecryptNote recovers
// it alongside the note), so the tally can keep its running commitment and
// its running trapdoor in exact lockstep with the actions it accumulates.
func (t *Tally) attribute(a ballot.Action) (candidate uint32, n note.Note, rcvOut field.Element, ok bool) {
	for k, ivk := range t.candidateIVK {
		if decoded, trapdoor, decrypted := note.DecryptNote(a.Enc, a.Epk, ivk, note.External); decrypted {
			return uint32(k), decoded, trapdoor, true
		}
	}
	return 0, note.Note{}, field.Element{}, false
}

// Commitment returns candidate k's running value commitment S_k without
// revealing its cleartext total: the homomorphic sum of every accepted
// action's cv_out attributed to k (spec §4.G: "S_k").
func (t *Tally) Commitment(k uint32) pedersen.Commitment {
	return t.state[k].commitment
}

// Result is one candidate's published outcome: its cleartext total and a
// zero-knowledge proof that the total matches the running commitment S_k
// (spec §4.G: "CountProof_k").
type Result struct {
	Candidate  uint32
	Total      uint64
	Commitment pedersen.Commitment
	Proof      []byte
}

// Reveal builds, for each candidate, a CountRevealCircuit proof attesting
// that its published cleartext total matches the commitment accumulated
// from accepted ballots (spec §4.G). Candidates are revealed in index
// order; a failure partway through returns no results, only the error,
// matching the builder's all-or-nothing failure policy (spec §7).
func (t *Tally) Reveal() ([]Result, error) {
	results := make([]Result, len(t.state))
	for k, s := range t.state {
		commitmentX, commitmentY, err := s.commitment.XY()
		if err != nil {
			return nil, fmt.Errorf("tally: candidate %d: decompress commitment: %w", k, err)
		}

		assignment := &circuit.CountRevealCircuit{
			CommitmentX: commitmentX,
			CommitmentY: commitmentY,
			Tally:       new(big.Int).SetUint64(s.total),
			Blind:       s.trapdoor.BigInt(),
		}
		proof, _, err := circuit.Prove(circuit.CountCircuit, assignment)
		if err != nil {
			return nil, fmt.Errorf("tally: candidate %d: prove count reveal: %w", k, err)
		}
		serialized, err := circuit.SerializeProof(proof)
		if err != nil {
			return nil, fmt.Errorf("tally: candidate %d: serialize proof: %w", k, err)
		}

		results[k] = Result{
			Candidate:  uint32(k),
			Total:      s.total,
			Commitment: s.commitment,
			Proof:      serialized,
		}
	}
	return results, nil
}

// VerifyReveal checks a published Result against its own claimed
// commitment, independent of any Tally state — a third party auditing a
// published result only needs the result itself (spec §4.G: "published
// verifiable totals").
func VerifyReveal(r Result) error {
	proof, err := circuit.DeserializeProof(r.Proof)
	if err != nil {
		return fmt.Errorf("tally: candidate %d: deserialize proof: %w", r.Candidate, err)
	}
	commitmentX, commitmentY, err := r.Commitment.XY()
	if err != nil {
		return fmt.Errorf("tally: candidate %d: decompress commitment: %w", r.Candidate, err)
	}
	assignment := &circuit.CountRevealCircuit{
		CommitmentX: commitmentX,
		CommitmentY: commitmentY,
		Tally:       new(big.Int).SetUint64(r.Total),
	}
	if err := circuit.Verify(circuit.CountCircuit, proof, assignment); err != nil {
		return fmt.Errorf("tally: candidate %d: %w", r.Candidate, err)
	}
	return nil
}
