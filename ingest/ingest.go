package ingest

import (
	"context"
	"fmt"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/note"
)

// OwnNote is one note this ingestor recognized as belonging to the
// watched viewing key, together with its absolute position in CMXs (spec
// §4.B: "record the resulting note together with its position").
type OwnNote struct {
	Note     note.Note
	Position uint64
	Scope    note.Scope
	Height   uint64
	TxID     [32]byte

	// Spent is set once this same ingestion window reveals this note's
	// own nullifier, via Ingestor's noteCache (SPEC_FULL.md §12,
	// "spend-note cache keyed by nullifier during ingestion"). A note
	// created and spent outside the ingestor's current window is marked
	// spent by the caller (e.g. store.MarkSpent), not here.
	Spent bool
}

// Progress reports ingestion progress after each processed block (spec
// §5: "exposes a progress callback for UI").
type Progress struct {
	Height uint64
	CMXs   int
	NFs    int
}

// ErrDuplicateNullifier is a fatal corruption: a real chain never reveals
// the same nullifier twice (spec §4.B, §7: "Corruption").
var ErrDuplicateNullifier = fmt.Errorf("ingest: duplicate nullifier in snapshot")

// State is the durable, restartable output of ingestion: the ordered cmx
// array, the nullifier set, and every own note detected so far, plus the
// last height processed so ingestion can resume (spec §4.B: "restartable:
// it persists the last processed height and may resume").
type State struct {
	LastHeight uint64
	CMXs       []field.Element
	NFSet      map[field.Element]struct{}
	OwnNotes   []OwnNote
}

// NewState creates an empty State for ingestion starting from height 0.
func NewState() *State {
	return &State{NFSet: make(map[field.Element]struct{})}
}

// WatchKey is the viewing key material an ingestor tries own-note trial
// decryption against, at both derivation scopes (spec §4.B: "with each
// incoming-viewing-key derived from fvk at both scopes").
type WatchKey struct {
	FVK note.FullViewingKey
}

// Ingestor consumes a BlockSource and folds its compact blocks into a
// State (spec §4.B). It never reads its own output during ingestion — all
// of its working state lives in the State value passed to Run.
type Ingestor struct {
	Source BlockSource
	Watch  []WatchKey

	// OnProgress, if set, is invoked after every block with the state's
	// progress so far (spec §5's progress callback).
	OnProgress func(Progress)

	// noteCache maps a tracked own note's nullifier to its index in
	// state.OwnNotes, so a spend revealed later in the same ingestion
	// window marks that note spent in memory instead of falling back to
	// a store lookup (SPEC_FULL.md §12, "spend-note cache keyed by
	// nullifier during ingestion"). It is rebuilt from state.OwnNotes at
	// the start of every Run call, so notes already recorded in the State
	// passed to Run stay tracked across calls; Resume starts every call
	// from a State with no own notes, so it tracks only the current
	// window's notes.
	noteCache map[field.Element]int
}

// Run ingests every block in (state.LastHeight, end] from ing.Source into
// state, mutating it in place. It stops and returns an error on any
// corruption or I/O failure. state.LastHeight then still names the last
// fully ingested block, but the failing block's earlier actions may
// already be in CMXs, NFSet and OwnNotes (spec §7: "partial snapshots must
// not be marked final" — callers must not treat a State returned alongside
// an error as a sealed snapshot).
func (ing *Ingestor) Run(ctx context.Context, state *State, end uint64) error {
	ing.noteCache = make(map[field.Element]int, len(state.OwnNotes))
	for i, n := range state.OwnNotes {
		ing.noteCache[n.Note.Nullifier()] = i
	}

	blocks, errs := ing.Source.StreamBlocks(ctx, state.LastHeight, end)

	for blk := range blocks {
		if blk.Height <= state.LastHeight {
			return fmt.Errorf("ingest: non-monotonic height %d after %d", blk.Height, state.LastHeight)
		}

		for _, tx := range blk.Txs {
			for _, action := range tx.Actions {
				if err := ing.ingestAction(state, blk.Height, tx.TxID, action); err != nil {
					return err
				}
			}
		}

		state.LastHeight = blk.Height
		if ing.OnProgress != nil {
			ing.OnProgress(Progress{Height: blk.Height, CMXs: len(state.CMXs), NFs: len(state.NFSet)})
		}
	}

	if err := <-errs; err != nil {
		return fmt.Errorf("ingest: stream blocks: %w", err)
	}

	return nil
}

// Seal pads CMXs with an empty leaf if its length is odd, so the tree is
// always built over an even leaf count at layer 0 (spec §4.B: "After the
// final action, if |CMXs| is odd, append empty_hash(0)"). Call this only
// once ingestion through the snapshot's end_height is complete.
func Seal(state *State) {
	if len(state.CMXs)%2 == 1 {
		state.CMXs = append(state.CMXs, merklehash.EmptyHashAt(0))
	}
}

func (ing *Ingestor) ingestAction(state *State, height uint64, txid [32]byte, action CompactAction) error {
	position := uint64(len(state.CMXs))

	cmx, err := field.FromLEBytes(action.Cmx[:])
	if err != nil {
		return fmt.Errorf("ingest: decode cmx at position %d: %w", position, err)
	}
	state.CMXs = append(state.CMXs, cmx)

	nf, err := field.FromLEBytes(action.Nullifier[:])
	if err != nil {
		return fmt.Errorf("ingest: decode nullifier at position %d: %w", position, err)
	}
	if _, dup := state.NFSet[nf]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateNullifier, hexNf(nf))
	}
	state.NFSet[nf] = struct{}{}

	if idx, ok := ing.noteCache[nf]; ok {
		state.OwnNotes[idx].Spent = true
	}

	ing.detectOwnNote(state, height, txid, position, action)
	return nil
}

// detectOwnNote attempts trial decryption of action's ciphertext against
// every watched key at both scopes (spec §4.B: "attempt trial decryption
// with each incoming-viewing-key derived from fvk at both scopes"). At
// most one (key, scope) pair can succeed for a genuine action, since
// EncryptNote ties the ciphertext to one specific recipient; this loop
// still tries every combination because which watched key, if any, owns
// this action is exactly what's unknown going in.
func (ing *Ingestor) detectOwnNote(state *State, height uint64, txid [32]byte, position uint64, action CompactAction) {
	for _, wk := range ing.Watch {
		ivk := wk.FVK.IVK()
		for _, scope := range []note.Scope{note.External, note.Internal} {
			n, _, ok := note.DecryptNote(action.Ciphertext, action.EphemeralKey, ivk, scope)
			if !ok {
				continue
			}
			// DecryptNote leaves Rho and FvkSum to the caller: an output
			// note's rho is the nullifier its own action reveals (already
			// decoded successfully by ingestAction).
			n.Rho = field.MustFromLEBytes(action.Nullifier[:])
			n.FvkSum = wk.FVK.Hash()
			state.OwnNotes = append(state.OwnNotes, OwnNote{
				Note:     n,
				Position: position,
				Scope:    scope,
				Height:   height,
				TxID:     txid,
			})
			ing.noteCache[n.Nullifier()] = len(state.OwnNotes) - 1
		}
	}
}

func hexNf(nf field.Element) string {
	b := nf.Bytes()
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0xf]
	}
	return string(out)
}
