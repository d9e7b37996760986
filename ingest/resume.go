package ingest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/merkletree"
)

// Persistence is the subset of a durable store's contract a restartable
// ingestion run depends on (spec §4.B: "restartable: it persists the last
// processed height and may resume"; §6's properties/cmxs/nfs/notes/
// cmx_frontiers tables). Declaring it here, rather than importing the
// store package directly, keeps ingest usable against any backend that
// satisfies it — store.Store does, without modification.
type Persistence interface {
	Property(ctx context.Context, name string) (string, bool, error)
	SetProperty(ctx context.Context, name, value string) error
	LoadCMXs(ctx context.Context, election string) ([]field.Element, error)
	AppendCMX(ctx context.Context, election string, leaf field.Element) error
	LoadNullifiers(ctx context.Context, election string) ([]field.Element, error)
	InsertNullifier(ctx context.Context, election string, nf field.Element) error
	LoadLatestFrontier(ctx context.Context, election string) (*merkletree.Frontier, error)
	SaveFrontier(ctx context.Context, election string, height uint64, f *merkletree.Frontier) error
	RecordAnchor(ctx context.Context, election string, height uint64, root field.Element) error
}

// heightProperty is the properties-table key a given election's resumable
// ingestion progress is recorded under.
func heightProperty(election string) string {
	return "ingest.last_height." + election
}

// Resume loads election's previously persisted ingestion progress from p,
// if any, ingests every remaining block up to end, and persists the new
// progress back to p before returning — so a second Resume call for the
// same election and end height is a no-op, and a crash between calls
// loses at most the in-flight window (spec §4.B; §8's "running twice over
// the same block window yields bit-identical CMXs, NFSET, and anchors").
//
// The returned State holds the complete reconstructed ingestion state
// (prior CMXs/nullifiers plus everything ingested this call); ing's own
// OwnNotes/noteCache bookkeeping behaves exactly as in a fresh Run.
func (ing *Ingestor) Resume(ctx context.Context, p Persistence, election string, end uint64) (*State, error) {
	state := NewState()

	if h, ok, err := p.Property(ctx, heightProperty(election)); err != nil {
		return nil, fmt.Errorf("ingest: resume: read height: %w", err)
	} else if ok {
		height, err := strconv.ParseUint(h, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: resume: parse height %q: %w", h, err)
		}
		state.LastHeight = height
	}

	cmxs, err := p.LoadCMXs(ctx, election)
	if err != nil {
		return nil, fmt.Errorf("ingest: resume: load cmxs: %w", err)
	}
	state.CMXs = cmxs

	nfs, err := p.LoadNullifiers(ctx, election)
	if err != nil {
		return nil, fmt.Errorf("ingest: resume: load nullifiers: %w", err)
	}
	priorNfs := make(map[field.Element]struct{}, len(nfs))
	for _, nf := range nfs {
		state.NFSet[nf] = struct{}{}
		priorNfs[nf] = struct{}{}
	}

	frontier, err := p.LoadLatestFrontier(ctx, election)
	if err != nil {
		return nil, fmt.Errorf("ingest: resume: load frontier: %w", err)
	}
	if frontier == nil {
		frontier = merkletree.NewFrontier()
	}
	if frontier.Position() != uint64(len(cmxs)) {
		return nil, fmt.Errorf("ingest: resume: frontier position %d does not match %d loaded cmxs", frontier.Position(), len(cmxs))
	}

	baseCMXs := len(state.CMXs)
	baseHeight := state.LastHeight

	if err := ing.Run(ctx, state, end); err != nil {
		return state, fmt.Errorf("ingest: resume: %w", err)
	}

	if state.LastHeight == baseHeight {
		return state, nil
	}

	for _, leaf := range state.CMXs[baseCMXs:] {
		if err := p.AppendCMX(ctx, election, leaf); err != nil {
			return state, fmt.Errorf("ingest: resume: persist cmx: %w", err)
		}
		frontier.Append(leaf)
	}

	for nf := range state.NFSet {
		if _, existed := priorNfs[nf]; existed {
			continue
		}
		if err := p.InsertNullifier(ctx, election, nf); err != nil {
			return state, fmt.Errorf("ingest: resume: persist nullifier: %w", err)
		}
	}

	root := merklehash.EmptyHashAt(config.Depth)
	if frontier.Position() > 0 {
		root = frontier.Root()
	}
	if err := p.RecordAnchor(ctx, election, state.LastHeight, root); err != nil {
		return state, fmt.Errorf("ingest: resume: record anchor: %w", err)
	}
	if err := p.SaveFrontier(ctx, election, state.LastHeight, frontier); err != nil {
		return state, fmt.Errorf("ingest: resume: save frontier: %w", err)
	}
	if err := p.SetProperty(ctx, heightProperty(election), strconv.FormatUint(state.LastHeight, 10)); err != nil {
		return state, fmt.Errorf("ingest: resume: persist height: %w", err)
	}

	return state, nil
}
