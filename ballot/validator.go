package ballot

import (
	"context"
	"fmt"

	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"

	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/pedersen"
	"github.com/hhanh00/shielded-vote/spendauth"
)

// ValidateParams is the snapshot and policy context a ballot is checked
// against: the election's own anchors (which must byte-exactly match the
// ballot's own Anchors, spec §4.F step 5) and its signature policy.
type ValidateParams struct {
	Domain            field.Element
	Anchors           Anchors
	SignatureRequired bool
}

// Validate checks a ballot against params and returns the domain-bound
// nullifiers it reveals (spec §4.F, GLOSSARY "Domain-nullifier"). Checking
// those against previously accepted ballots for duplicates is the caller's
// responsibility (store/ingest hold that cross-ballot state; a validator
// call only ever sees one ballot at a time, spec §7: "DoubleNullifier" is
// raised by whichever layer holds the spent-set). Validate itself only
// rejects a nullifier repeated within this one ballot, with
// ErrDoubleNullifier.
//
// Every action's proof is checked even after an earlier one fails (spec
// §7: "Validator evaluates all proofs independently... aggregates into a
// single failure") so a caller gets a complete picture of what's wrong with
// a malformed ballot in one pass.
func Validate(b *Ballot, params ValidateParams) ([]field.Element, error) {
	if b.Data.Anchors.Cmx.Bytes() != params.Anchors.Cmx.Bytes() || b.Data.Anchors.Nf.Bytes() != params.Anchors.Nf.Bytes() {
		return nil, ErrBadAnchor
	}

	// A ballot's Domain is part of the public instance every action's proof
	// is checked against (spec §4.F step 4: "election.domain"); rejecting a
	// mismatch here before any proof is even deserialized stops a ballot
	// built against one election's domain from being relayed under another
	// (spec GLOSSARY "Domain": "the same note yields different domain_nf
	// across elections").
	if !b.Data.Domain.Equal(params.Domain) {
		return nil, ErrBadDomain
	}

	n := len(b.Data.Actions)
	if len(b.Witnesses.Proofs) != n {
		return nil, ErrActionArityMismatch
	}

	sighash := b.Data.Sighash()

	if params.SignatureRequired {
		if len(b.Witnesses.SpSignatures) != n || len(b.Witnesses.SpAuthVerifyingKeys) != n {
			return nil, ErrMissingSignature
		}
		for i := range b.Data.Actions {
			ok, err := spendauth.Verify(b.Witnesses.SpAuthVerifyingKeys[i], sighash, b.Witnesses.SpSignatures[i])
			if err != nil || !ok {
				return nil, fmt.Errorf("%w: action %d", ErrInvalidSignature, i)
			}
		}
	}

	// The binding verifying key is never taken from the ballot's witnesses:
	// it is recomputed by summing the ballot's own per-action cv_net
	// commitments (spec §4.F step 3). Because cv_net is now a genuine
	// homomorphic Pedersen commitment, this sum equals Commit(Σnet_i,
	// Σrcv_i); only when Σnet_i == 0 does that collapse to a pure multiple
	// of H that BindingSignature can verify against, so a builder cannot
	// mint value by supplying its own fabricated key the way an
	// unauthenticated witness field would have allowed.
	cvNets := make([]pedersen.Commitment, n)
	for i, a := range b.Data.Actions {
		cvNets[i] = a.CvNet
	}
	totalCv, err := pedersen.Sum(cvNets)
	if err != nil {
		return nil, fmt.Errorf("ballot: sum cv_net commitments: %w", err)
	}
	bindingOK, err := pedersen.Verify(totalCv, sighash, b.Witnesses.BindingSignature)
	if err != nil || !bindingOK {
		return nil, fmt.Errorf("%w: binding signature", ErrInvalidSignature)
	}

	proofs := make([]plonk.Proof, n)
	publicAssignments := make([]frontend.Circuit, n)
	for i, a := range b.Data.Actions {
		proof, err := circuit.DeserializeProof(b.Witnesses.Proofs[i])
		if err != nil {
			return nil, fmt.Errorf("%w: action %d: %v", ErrInvalidProof, i, err)
		}
		proofs[i] = proof

		cvNetX, cvNetY, err := a.CvNet.XY()
		if err != nil {
			return nil, fmt.Errorf("%w: action %d: cv_net: %v", ErrInvalidProof, i, err)
		}
		cvOutX, cvOutY, err := a.CvOut.XY()
		if err != nil {
			return nil, fmt.Errorf("%w: action %d: cv_out: %v", ErrInvalidProof, i, err)
		}

		domainNf := merklehash.DomainNullifier(a.Nf, b.Data.Domain)

		publicAssignments[i] = &circuit.BallotActionCircuit{
			CmxRoot:  b.Data.Anchors.Cmx.BigInt(),
			NfRoot:   b.Data.Anchors.Nf.BigInt(),
			Domain:   b.Data.Domain.BigInt(),
			Nf:       a.Nf.BigInt(),
			DomainNf: domainNf.BigInt(),
			CvNetX:   cvNetX,
			CvNetY:   cvNetY,
			CvOutX:   cvOutX,
			CvOutY:   cvOutY,
			CmxOut:   a.Cmx.BigInt(),
			RkCommit: a.Rk.BigInt(),
		}
	}

	errs := circuit.VerifyAll(context.Background(), circuit.BallotCircuit, proofs, publicAssignments)
	var failed []int
	for i, e := range errs {
		if e != nil {
			failed = append(failed, i)
		}
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: actions %v", ErrInvalidProof, failed)
	}

	// Intra-ballot double-spend: the same note's nullifier cannot be
	// revealed twice within one ballot, independent of any cross-ballot
	// state (spec §3: "uniqueness... within a ballot").
	seen := make(map[field.Element]bool, n)
	domainNfs := make([]field.Element, n)
	for i, a := range b.Data.Actions {
		if seen[a.Nf] {
			return nil, fmt.Errorf("%w: action %d", ErrDoubleNullifier, i)
		}
		seen[a.Nf] = true
		domainNfs[i] = merklehash.DomainNullifier(a.Nf, b.Data.Domain)
	}

	return domainNfs, nil
}
