package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
)

// runVerifyBallot implements `vote verify-ballot --election JSON FILE`
// (spec §6, §4.F): validate a single ballot standalone, with no store
// involved, against an election's published anchors.
func runVerifyBallot(args []string) int {
	fs, v := newFlags("verify-ballot")
	fs.String("election", "", "path to the election JSON file")
	fs.String("keys", "keys", "directory holding proving/verifying keys")
	fs.String("log-level", "info", "log level")
	if err := parseFlags(fs, v, args); err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}
	initLogging(v)
	log := logFor("verify-ballot")

	electionPath := v.GetString("election")
	if electionPath == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "vote: usage: verify-ballot --election JSON FILE")
		return exitInvalidInput
	}
	ballotPath := fs.Arg(0)

	e, err := loadElection(electionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}

	raw, err := os.ReadFile(ballotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: read ballot: %v\n", err)
		return exitIOFailure
	}
	var b ballot.Ballot
	if err := json.Unmarshal(raw, &b); err != nil {
		fmt.Fprintf(os.Stderr, "vote: decode ballot: %v\n", err)
		return exitInvalidInput
	}

	circuit.SetKeyDir(v.GetString("keys"))

	params := ballot.ValidateParams{
		Domain:            e.Domain(),
		Anchors:           ballot.Anchors{Cmx: e.CmxRoot, Nf: e.NfRoot},
		SignatureRequired: e.SignatureRequired,
	}
	domainNfs, err := ballot.Validate(&b, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: reject ballot: %v\n", err)
		return classifyValidateErr(err)
	}

	log.Info().Int("domain_nfs", len(domainNfs)).Msg("ballot valid")
	fmt.Println("OK")
	return exitSuccess
}

func classifyValidateErr(err error) int {
	switch {
	case errors.Is(err, ballot.ErrActionArityMismatch):
		return exitInvalidInput
	case errors.Is(err, ballot.ErrBadAnchor),
		errors.Is(err, ballot.ErrInvalidProof),
		errors.Is(err, ballot.ErrInvalidSignature),
		errors.Is(err, ballot.ErrMissingSignature),
		errors.Is(err, ballot.ErrDoubleNullifier):
		return exitProtocolViolation
	default:
		return exitProtocolViolation
	}
}
