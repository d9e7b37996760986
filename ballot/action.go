// Package ballot implements the ballot construction, serialization, and
// validation engine at the heart of this repo (spec §3, §4.E, §4.F): one
// `Action` per spent note, aggregated into `Data` and signed into a
// `Ballot`, in the teacher's plain-struct-plus-exported-methods style.
package ballot

import (
	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/pedersen"
	"github.com/hhanh00/shielded-vote/spendauth"
)

// Action is one spend/output pair inside a ballot, carrying everything a
// validator needs to check the action's ZK proof and reveal its
// domain-nullifier (spec §3: "Ballot action").
//
// CvNet is a genuine EC Pedersen commitment (pedersen.Commitment) to the
// action's net value change (value_in - value_out), additively homomorphic
// so the validator can recompute the ballot's total_cv by summing the
// actions' own CvNet fields (spec §4.F step 3) rather than trusting a
// verifying key the builder supplies. CvOut is the same kind of commitment
// to the output note's value alone — the per-candidate weight the tally
// authority accumulates across every accepted ballot (spec §4.G) — kept
// separate from CvNet because a net value cannot be un-mixed back into its
// two addends after the fact. Rk stays a Poseidon-hash commitment
// (field.Element): it is checked per-action against a spend-authorization
// signature, never summed, so it does not need to be homomorphic.
//
// Epk is a raw 32-byte secp256k1 X coordinate (note.EncryptNote's output),
// not a field.Element: a uniformly random secp256k1 X coordinate is not
// reliably below the BN254 scalar field's characteristic, so decoding it
// through field.FromLEBytes would spuriously fail canonicity roughly four
// times out of five. It is still exactly 32 bytes on the wire, so
// Data.Encode's layout is unaffected.
type Action struct {
	CvNet pedersen.Commitment
	CvOut pedersen.Commitment
	Rk    field.Element
	Nf    field.Element
	Cmx   field.Element
	Epk   [32]byte
	Enc   [config.CiphertextSize]byte
}

// Anchors are the two Merkle roots a ballot's actions are proved against
// (spec §3: "the two anchors cmx_root:H and nf_root:H").
type Anchors struct {
	Cmx field.Element
	Nf  field.Element
}

// Data is the signed portion of a ballot: everything the sighash commits
// to (spec §3: "data = { version, domain, actions, anchors }").
type Data struct {
	Version uint32
	Domain  field.Element
	Actions []Action
	Anchors Anchors
}

// Witnesses carries the ballot's proofs and signatures (spec §3:
// "witnesses"). Unlike SpSignatures' secp256k1 keys, the binding
// signature's verifying key is never carried on the wire: because CvNet is
// now a genuine homomorphic commitment, ballot.Validate recomputes
// total_cv = Σ Actions[i].CvNet - Commit(0,0) itself and uses that as the
// verifying key BindingSignature must check against (spec §4.F step 3) —
// trusting a builder-supplied key here is exactly the hole that let a
// builder mint arbitrary candidate weight.
type Witnesses struct {
	// Proofs holds one serialized PLONK proof per action, in action order.
	Proofs [][]byte

	// SpAuthVerifyingKeys[i] is the compressed secp256k1 pubkey
	// Actions[i]'s optional spend-authorization signature verifies
	// against. Present (same length as Actions) iff SpSignatures is.
	SpAuthVerifyingKeys [][]byte
	SpSignatures        []spendauth.Signature

	BindingSignature pedersen.Signature
}

// Ballot is the full immutable unit a voter submits (spec §3: "Ballot").
type Ballot struct {
	Data      Data
	Witnesses Witnesses
}
