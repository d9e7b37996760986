package ballot_test

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/merkletree"
	"github.com/hhanh00/shielded-vote/nfrange"
	"github.com/hhanh00/shielded-vote/note"
)

// devSetupBallotCircuit compiles and dev-sets-up the ballot circuit into a
// fresh temporary key directory on every call, mirroring the teacher's
// TestPoICircuitEndToEnd: compile, PLONK setup, then prove and verify
// against real witnesses.
func devSetupBallotCircuit(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	if err := circuit.DevSetup(circuit.BallotCircuit, dir); err != nil {
		t.Fatalf("dev setup ballot circuit: %v", err)
	}
	circuit.SetKeyDir(dir)
}

// buildSpendableNote creates a note owned by fvk, appends its commitment to
// the given frontier, and returns the note alongside the position it was
// assigned.
func buildSpendableNote(t *testing.T, fvk note.FullViewingKey, value uint64, frontier *merkletree.Frontier) (note.Note, uint64) {
	t.Helper()
	d := fvk.IVK().DefaultDiversifier(note.External)
	var rho field.Element
	var rseed [32]byte
	if _, err := rand.Read(rseed[:]); err != nil {
		t.Fatalf("read rseed: %v", err)
	}
	n := note.New(fvk, d, value, rho, rseed)
	position := frontier.Position()
	frontier.Append(n.Cmx())
	return n, position
}

func TestBuildAndValidateBallot(t *testing.T) {
	devSetupBallotCircuit(t)

	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)

	frontier := merkletree.NewFrontier()
	spent, position := buildSpendableNote(t, fvk, 100, frontier)
	cmxLeaves := []field.Element{spent.Cmx()}

	ranges := nfrange.Build(nil) // nothing spent yet: one all-covering range
	nfLeaves := nfrange.Leaves(ranges)
	nfFrontier := merkletree.NewFrontier()
	for _, l := range nfLeaves {
		nfFrontier.Append(l)
	}

	recipientSk := note.SpendingKey{1}
	recipientFvk := note.DeriveFullViewingKey(recipientSk)
	recipientAddr := recipientFvk.DefaultAddress(note.External)

	params := ballot.BuildParams{
		Domain: merklehash.ElectionDomain([]byte("test-election")),
		Anchors: ballot.Anchors{
			Cmx: frontier.Root(),
			Nf:  nfFrontier.Root(),
		},
		CmxLeaves:         cmxLeaves,
		Ranges:            ranges,
		SignatureRequired: true,
	}

	inputs := []ballot.SpendInput{{Note: spent, FVK: fvk, Position: position}}
	outputs := []ballot.SendOutput{{Address: recipientAddr, FvkHash: recipientFvk.Hash(), Value: 100}}

	b, err := ballot.Build(rand.Reader, params, inputs, outputs)
	if err != nil {
		t.Fatalf("build ballot: %v", err)
	}
	if len(b.Data.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(b.Data.Actions))
	}

	domainNfs, err := ballot.Validate(b, ballot.ValidateParams{
		Domain:            params.Domain,
		Anchors:           params.Anchors,
		SignatureRequired: true,
	})
	if err != nil {
		t.Fatalf("validate ballot: %v", err)
	}
	if len(domainNfs) != 1 {
		t.Fatalf("expected 1 domain-nullifier, got %d", len(domainNfs))
	}
	want := merklehash.DomainNullifier(spent.Nullifier(), params.Domain)
	if !domainNfs[0].Equal(want) {
		t.Fatal("domain-nullifier does not match expected derivation")
	}
}

func TestBuildRejectsValueImbalance(t *testing.T) {
	devSetupBallotCircuit(t)

	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)

	frontier := merkletree.NewFrontier()
	spent, position := buildSpendableNote(t, fvk, 100, frontier)
	ranges := nfrange.Build(nil)

	params := ballot.BuildParams{
		Domain:    merklehash.ElectionDomain([]byte("test-election")),
		Anchors:   ballot.Anchors{Cmx: frontier.Root(), Nf: field.Zero()},
		CmxLeaves: []field.Element{spent.Cmx()},
		Ranges:    ranges,
	}

	inputs := []ballot.SpendInput{{Note: spent, FVK: fvk, Position: position}}
	outputs := []ballot.SendOutput{{Address: fvk.DefaultAddress(note.External), FvkHash: fvk.Hash(), Value: 50}}

	_, err := ballot.Build(rand.Reader, params, inputs, outputs)
	if err == nil {
		t.Fatal("expected an error for mismatched input/output value")
	}
}

func TestBallotWireRoundTrip(t *testing.T) {
	devSetupBallotCircuit(t)

	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)

	frontier := merkletree.NewFrontier()
	spent, position := buildSpendableNote(t, fvk, 10, frontier)
	ranges := nfrange.Build(nil)
	nfLeaves := nfrange.Leaves(ranges)
	nfFrontier := merkletree.NewFrontier()
	for _, l := range nfLeaves {
		nfFrontier.Append(l)
	}

	params := ballot.BuildParams{
		Domain:    merklehash.ElectionDomain([]byte("wire-test")),
		Anchors:   ballot.Anchors{Cmx: frontier.Root(), Nf: nfFrontier.Root()},
		CmxLeaves: []field.Element{spent.Cmx()},
		Ranges:    ranges,
	}
	inputs := []ballot.SpendInput{{Note: spent, FVK: fvk, Position: position}}
	outputs := []ballot.SendOutput{{Address: fvk.DefaultAddress(note.External), FvkHash: fvk.Hash(), Value: 10}}

	b, err := ballot.Build(rand.Reader, params, inputs, outputs)
	if err != nil {
		t.Fatalf("build ballot: %v", err)
	}

	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal ballot: %v", err)
	}

	var roundTripped ballot.Ballot
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("unmarshal ballot: %v", err)
	}

	if roundTripped.Data.Sighash() != b.Data.Sighash() {
		t.Fatal("sighash changed across wire round-trip")
	}
	if len(roundTripped.Witnesses.Proofs) != len(b.Witnesses.Proofs) {
		t.Fatal("proof count changed across wire round-trip")
	}
}
