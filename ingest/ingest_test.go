package ingest_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/ingest"
	"github.com/hhanh00/shielded-vote/note"
)

// sliceSource is an in-memory ingest.BlockSource, used so tests don't need
// a real lightwalletd endpoint.
type sliceSource struct {
	blocks []ingest.CompactBlock
}

func (s *sliceSource) StreamBlocks(ctx context.Context, start, end uint64) (<-chan ingest.CompactBlock, <-chan error) {
	blocks := make(chan ingest.CompactBlock, len(s.blocks))
	errs := make(chan error, 1)
	for _, b := range s.blocks {
		if b.Height > start && b.Height <= end {
			blocks <- b
		}
	}
	close(blocks)
	close(errs)
	return blocks, errs
}

func TestIngestDetectsOwnNoteAndTracksNullifiers(t *testing.T) {
	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)
	addr := fvk.DefaultAddress(note.External)

	var rseed [32]byte
	if _, err := rand.Read(rseed[:]); err != nil {
		t.Fatalf("read rseed: %v", err)
	}
	n := note.New(fvk, addr.D, 42, field.Zero(), rseed)

	enc, epk, _, err := note.EncryptNote(n, addr, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt note: %v", err)
	}

	var nullifier, cmx [32]byte
	nfBytes := n.Nullifier().Bytes()
	cmxBytes := n.Cmx().Bytes()
	copy(nullifier[:], nfBytes[:])
	copy(cmx[:], cmxBytes[:])

	action := ingest.CompactAction{
		Nullifier:    nullifier,
		Cmx:          cmx,
		EphemeralKey: epk,
		Ciphertext:   enc,
	}
	block := ingest.CompactBlock{
		Height: 1,
		Txs: []ingest.CompactTx{
			{TxID: [32]byte{1}, Actions: []ingest.CompactAction{action}},
		},
	}

	src := &sliceSource{blocks: []ingest.CompactBlock{block}}
	ing := &ingest.Ingestor{Source: src, Watch: []ingest.WatchKey{{FVK: fvk}}}
	state := ingest.NewState()

	if err := ing.Run(context.Background(), state, 1); err != nil {
		t.Fatalf("run ingestor: %v", err)
	}

	if len(state.CMXs) != 1 {
		t.Fatalf("expected 1 cmx, got %d", len(state.CMXs))
	}
	if len(state.NFSet) != 1 {
		t.Fatalf("expected 1 nullifier, got %d", len(state.NFSet))
	}
	if len(state.OwnNotes) != 1 {
		t.Fatalf("expected 1 own note, got %d", len(state.OwnNotes))
	}
	if state.OwnNotes[0].Note.Value != 42 {
		t.Fatalf("expected recovered value 42, got %d", state.OwnNotes[0].Note.Value)
	}

	ingest.Seal(state)
	if len(state.CMXs) != 2 {
		t.Fatalf("expected padding to make cmx count even, got %d", len(state.CMXs))
	}
}

func TestIngestMarksNoteSpentInSameWindow(t *testing.T) {
	var sk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)
	addr := fvk.DefaultAddress(note.External)

	var rseed [32]byte
	if _, err := rand.Read(rseed[:]); err != nil {
		t.Fatalf("read rseed: %v", err)
	}
	n := note.New(fvk, addr.D, 7, field.Zero(), rseed)

	enc, epk, _, err := note.EncryptNote(n, addr, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt note: %v", err)
	}

	var cmx [32]byte
	cmxBytes := n.Cmx().Bytes()
	copy(cmx[:], cmxBytes[:])
	recvAction := ingest.CompactAction{Cmx: cmx, EphemeralKey: epk, Ciphertext: enc}

	var spendNf [32]byte
	nfBytes := n.Nullifier().Bytes()
	copy(spendNf[:], nfBytes[:])
	spendAction := ingest.CompactAction{Nullifier: spendNf}

	block := ingest.CompactBlock{
		Height: 1,
		Txs: []ingest.CompactTx{
			{TxID: [32]byte{1}, Actions: []ingest.CompactAction{recvAction}},
			{TxID: [32]byte{2}, Actions: []ingest.CompactAction{spendAction}},
		},
	}

	src := &sliceSource{blocks: []ingest.CompactBlock{block}}
	ing := &ingest.Ingestor{Source: src, Watch: []ingest.WatchKey{{FVK: fvk}}}
	state := ingest.NewState()

	if err := ing.Run(context.Background(), state, 1); err != nil {
		t.Fatalf("run ingestor: %v", err)
	}

	if len(state.OwnNotes) != 1 {
		t.Fatalf("expected 1 own note, got %d", len(state.OwnNotes))
	}
	if !state.OwnNotes[0].Spent {
		t.Fatal("expected note spent in the same ingestion window to be marked Spent")
	}
}

func TestIngestRejectsDuplicateNullifier(t *testing.T) {
	var nullifier [32]byte
	nullifier[0] = 7

	action := ingest.CompactAction{Nullifier: nullifier}
	block := ingest.CompactBlock{
		Height: 1,
		Txs: []ingest.CompactTx{
			{TxID: [32]byte{1}, Actions: []ingest.CompactAction{action, action}},
		},
	}

	src := &sliceSource{blocks: []ingest.CompactBlock{block}}
	ing := &ingest.Ingestor{Source: src}
	state := ingest.NewState()

	err := ing.Run(context.Background(), state, 1)
	if err == nil {
		t.Fatal("expected duplicate-nullifier error")
	}
}

