package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hhanh00/shielded-vote/ballot"
	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/election"
	"github.com/hhanh00/shielded-vote/nfrange"
	"github.com/hhanh00/shielded-vote/note"
	"github.com/hhanh00/shielded-vote/store"
	"github.com/hhanh00/shielded-vote/walletkey"
)

// runBuildBallot implements `vote build-ballot --key MNEMONIC --notes IDS
// --weights W0,W1,... --election JSON --out FILE` (spec §6, §4.E).
func runBuildBallot(args []string) int {
	fs, v := newFlags("build-ballot")
	fs.String("key", "", "spending key mnemonic")
	fs.Uint32("account", 0, "account index within the mnemonic")
	fs.String("notes", "", "comma-separated snapshot positions of notes to spend")
	fs.String("weights", "", "comma-separated values, one per election candidate in order")
	fs.String("election", "", "path to the election JSON file")
	fs.String("db", "", "PostgreSQL connection string")
	fs.String("keys", "keys", "directory holding proving/verifying keys")
	fs.String("out", "ballot.json", "output ballot file")
	fs.String("log-level", "info", "log level")
	if err := parseFlags(fs, v, args); err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}
	initLogging(v)
	log := logFor("build-ballot")

	mnemonic := v.GetString("key")
	notesFlag := v.GetString("notes")
	weightsFlag := v.GetString("weights")
	electionPath := v.GetString("election")
	dsn := v.GetString("db")
	if mnemonic == "" || notesFlag == "" || weightsFlag == "" || electionPath == "" || dsn == "" {
		fmt.Fprintln(os.Stderr, "vote: --key, --notes, --weights, --election, and --db are all required")
		return exitInvalidInput
	}

	if err := walletkey.ValidateKeyMaterial(mnemonic); err != nil {
		fmt.Fprintf(os.Stderr, "vote: invalid key: %v\n", err)
		return exitInvalidInput
	}
	sk, err := walletkey.SpendingKeyFromMnemonic(mnemonic, v.GetUint32("account"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: derive spending key: %v\n", err)
		return exitInvalidInput
	}
	fvk := note.DeriveFullViewingKey(sk)

	positions, err := parseUintList(notesFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: --notes: %v\n", err)
		return exitInvalidInput
	}
	weights, err := parseUintList(weightsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: --weights: %v\n", err)
		return exitInvalidInput
	}

	e, err := loadElection(electionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: %v\n", err)
		return exitInvalidInput
	}
	if len(weights) != len(e.Candidates) {
		fmt.Fprintf(os.Stderr, "vote: --weights has %d entries, election has %d candidates\n", len(weights), len(e.Candidates))
		return exitInvalidInput
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: connect store: %v\n", err)
		return exitIOFailure
	}
	defer st.Close()

	inputs := make([]ballot.SpendInput, len(positions))
	for i, pos := range positions {
		n, err := st.LoadNote(ctx, e.ID, pos)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vote: load note %d: %v\n", pos, err)
			return exitIOFailure
		}
		if n == nil {
			fmt.Fprintf(os.Stderr, "vote: no own note recorded at position %d\n", pos)
			return exitInvalidInput
		}
		inputs[i] = ballot.SpendInput{
			Note:     note.Note{D: n.Div, Value: n.Value, Rho: n.Rho, Rseed: n.Rseed, FvkSum: fvk.Hash()},
			FVK:      fvk,
			Position: pos,
		}
	}

	electionSeed := []byte(e.ID)
	var outputs []ballot.SendOutput
	for i, w := range weights {
		if w == 0 {
			continue
		}
		if i >= len(e.Candidates) {
			break
		}
		candFvk, err := election.CandidateFullViewingKey(electionSeed, uint32(i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "vote: derive candidate %d key: %v\n", i, err)
			return exitInvalidInput
		}
		outputs = append(outputs, ballot.SendOutput{
			Address: e.Candidates[i].Address,
			FvkHash: candFvk.Hash(),
			Value:   w,
		})
	}

	cmxLeaves, err := st.LoadCMXs(ctx, e.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: load cmxs: %v\n", err)
		return exitIOFailure
	}
	nfs, err := st.LoadNullifiers(ctx, e.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: load nullifiers: %v\n", err)
		return exitIOFailure
	}
	ranges := nfrange.Build(nfs)

	circuit.SetKeyDir(v.GetString("keys"))

	params := ballot.BuildParams{
		Domain:            e.Domain(),
		Anchors:           ballot.Anchors{Cmx: e.CmxRoot, Nf: e.NfRoot},
		CmxLeaves:         cmxLeaves,
		Ranges:            ranges,
		SignatureRequired: e.SignatureRequired,
	}

	b, err := ballot.Build(rand.Reader, params, inputs, outputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: build ballot: %v\n", err)
		return classifyBuildErr(err)
	}

	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "vote: encode ballot: %v\n", err)
		return exitIOFailure
	}
	if err := os.WriteFile(v.GetString("out"), out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "vote: write ballot: %v\n", err)
		return exitIOFailure
	}

	log.Info().Int("actions", len(b.Data.Actions)).Str("out", v.GetString("out")).Msg("ballot built")
	return exitSuccess
}

func classifyBuildErr(err error) int {
	if errors.Is(err, ballot.ErrDoubleNullifier) {
		return exitProtocolViolation
	}
	return exitInvalidInput
}

func parseUintList(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, p, err)
		}
		out[i] = n
	}
	return out, nil
}
