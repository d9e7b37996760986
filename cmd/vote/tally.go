package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/tally"
)

// runTally implements `vote tally --election JSON --ballots DIR` (spec §6,
// §4.G): accept every ballot file in a directory and publish each
// candidate's revealed total alongside its count proof.
func runTally(args []string) int {
	fs, v := newFlags("tally")
	fs.String("election", "", "path to the election JSON file")
	fs.String("ballots", "", "directory of accepted ballot JSON files")
	fs.String("keys", "keys", "directory holding proving/verifying keys")
	fs.String("log-level", "info", "log level")
	if err := parseFlags(fs, v, args); err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}
	initLogging(v)
	log := logFor("tally")

	electionPath := v.GetString("election")
	ballotsDir := v.GetString("ballots")
	if electionPath == "" || ballotsDir == "" {
		fmt.Fprintln(os.Stderr, "vote: --election and --ballots are both required")
		return exitInvalidInput
	}

	e, err := loadElection(electionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}

	circuit.SetKeyDir(v.GetString("keys"))

	t, err := tally.New([]byte(e.ID), e.Domain(), len(e.Candidates))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: init tally: %v\n", err)
		return exitInvalidInput
	}

	entries, err := os.ReadDir(ballotsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: read ballots dir: %v\n", err)
		return exitIOFailure
	}

	params := ballot.ValidateParams{
		Domain:            e.Domain(),
		Anchors:           ballot.Anchors{Cmx: e.CmxRoot, Nf: e.NfRoot},
		SignatureRequired: e.SignatureRequired,
	}

	rejected := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(ballotsDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vote: read %s: %v\n", path, err)
			return exitIOFailure
		}
		var b ballot.Ballot
		if err := json.Unmarshal(raw, &b); err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("skipping malformed ballot")
			rejected++
			continue
		}
		if err := t.Accept(&b, params); err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("rejecting ballot")
			rejected++
			continue
		}
	}

	results, err := t.Reveal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: reveal counts: %v\n", err)
		return exitIOFailure
	}
	for _, r := range results {
		if err := tally.VerifyReveal(r); err != nil {
			fmt.Fprintf(os.Stderr, "vote: candidate %d count proof failed self-check: %v\n", r.Candidate, err)
			return exitProtocolViolation
		}
	}

	type publishedResult struct {
		Candidate  uint32 `json:"candidate"`
		Total      uint64 `json:"total"`
		Commitment string `json:"commitment"`
		Proof      string `json:"proof"`
	}
	published := make([]publishedResult, len(results))
	for i, r := range results {
		commitment := r.Commitment.Bytes()
		published[i] = publishedResult{
			Candidate:  r.Candidate,
			Total:      r.Total,
			Commitment: hex.EncodeToString(commitment[:]),
			Proof:      hex.EncodeToString(r.Proof),
		}
	}
	out, err := json.MarshalIndent(published, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: encode results: %v\n", err)
		return exitIOFailure
	}
	fmt.Println(string(out))

	if rejected > 0 {
		log.Warn().Int("rejected", rejected).Msg("some ballots were rejected")
		return exitProtocolViolation
	}
	return exitSuccess
}
