package tally_test

import (
	"crypto/rand"
	"testing"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/election"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/merkletree"
	"github.com/hhanh00/shielded-vote/nfrange"
	"github.com/hhanh00/shielded-vote/note"
	"github.com/hhanh00/shielded-vote/tally"
)

func devSetup(t *testing.T, c circuit.Circuit) {
	t.Helper()
	dir := t.TempDir()
	if err := circuit.DevSetup(c, dir); err != nil {
		t.Fatalf("dev setup %s circuit: %v", c, err)
	}
	circuit.SetKeyDir(dir)
}

func TestTallyAcceptAndReveal(t *testing.T) {
	devSetup(t, circuit.BallotCircuit)
	devSetup(t, circuit.CountCircuit)

	electionSeed := []byte("tally-test-election")
	candidateAddr, err := election.CandidateAddress(electionSeed, 0)
	if err != nil {
		t.Fatalf("derive candidate address: %v", err)
	}
	candidateFvk, err := election.CandidateFullViewingKey(electionSeed, 0)
	if err != nil {
		t.Fatalf("derive candidate fvk: %v", err)
	}

	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	voterFvk := note.DeriveFullViewingKey(sk)

	frontier := merkletree.NewFrontier()
	d := voterFvk.IVK().DefaultDiversifier(note.External)
	var rseed [32]byte
	if _, err := rand.Read(rseed[:]); err != nil {
		t.Fatalf("read rseed: %v", err)
	}
	spent := note.New(voterFvk, d, 25, field.Zero(), rseed)
	position := frontier.Position()
	frontier.Append(spent.Cmx())

	ranges := nfrange.Build(nil)
	nfLeaves := nfrange.Leaves(ranges)
	nfFrontier := merkletree.NewFrontier()
	for _, l := range nfLeaves {
		nfFrontier.Append(l)
	}

	domain := merklehash.ElectionDomain([]byte("tally-test-election"))
	params := ballot.BuildParams{
		Domain:    domain,
		Anchors:   ballot.Anchors{Cmx: frontier.Root(), Nf: nfFrontier.Root()},
		CmxLeaves: []field.Element{spent.Cmx()},
		Ranges:    ranges,
	}
	inputs := []ballot.SpendInput{{Note: spent, FVK: voterFvk, Position: position}}
	outputs := []ballot.SendOutput{{Address: candidateAddr, FvkHash: candidateFvk.Hash(), Value: 25}}

	b, err := ballot.Build(rand.Reader, params, inputs, outputs)
	if err != nil {
		t.Fatalf("build ballot: %v", err)
	}

	tl, err := tally.New(electionSeed, domain, 1)
	if err != nil {
		t.Fatalf("new tally: %v", err)
	}

	validateParams := ballot.ValidateParams{Domain: domain, Anchors: params.Anchors}
	if err := tl.Accept(b, validateParams); err != nil {
		t.Fatalf("accept ballot: %v", err)
	}

	// Re-accepting the same ballot must fail: its domain-nullifier was
	// already recorded.
	if err := tl.Accept(b, validateParams); err == nil {
		t.Fatal("expected double-nullifier rejection on re-accept")
	}

	results, err := tl.Reveal()
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 candidate result, got %d", len(results))
	}
	if results[0].Total != 25 {
		t.Fatalf("expected total 25, got %d", results[0].Total)
	}
	if err := tally.VerifyReveal(results[0]); err != nil {
		t.Fatalf("verify reveal: %v", err)
	}

	// A Tally only accepts ballots validated against its own election
	// domain; passing params for a different election must be rejected
	// before the ballot is even validated.
	otherParams := validateParams
	otherParams.Domain = merklehash.ElectionDomain([]byte("a-different-election"))
	if err := tl.Accept(b, otherParams); err == nil {
		t.Fatal("expected rejection when params.Domain does not match the tally's own domain")
	}
}
