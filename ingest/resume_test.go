package ingest_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/ingest"
	"github.com/hhanh00/shielded-vote/merkletree"
	"github.com/hhanh00/shielded-vote/note"
)

// memPersistence is an in-memory ingest.Persistence, standing in for
// store.Store in tests so Resume's restart logic can be exercised without a
// real PostgreSQL instance.
type memPersistence struct {
	props     map[string]string
	cmxs      map[string][]field.Element
	nfs       map[string][]field.Element
	frontiers map[string]*merkletree.Frontier
	anchors   map[string]field.Element
}

func newMemPersistence() *memPersistence {
	return &memPersistence{
		props:     map[string]string{},
		cmxs:      map[string][]field.Element{},
		nfs:       map[string][]field.Element{},
		frontiers: map[string]*merkletree.Frontier{},
		anchors:   map[string]field.Element{},
	}
}

func (m *memPersistence) Property(ctx context.Context, name string) (string, bool, error) {
	v, ok := m.props[name]
	return v, ok, nil
}

func (m *memPersistence) SetProperty(ctx context.Context, name, value string) error {
	m.props[name] = value
	return nil
}

func (m *memPersistence) LoadCMXs(ctx context.Context, election string) ([]field.Element, error) {
	return append([]field.Element(nil), m.cmxs[election]...), nil
}

func (m *memPersistence) AppendCMX(ctx context.Context, election string, leaf field.Element) error {
	m.cmxs[election] = append(m.cmxs[election], leaf)
	return nil
}

func (m *memPersistence) LoadNullifiers(ctx context.Context, election string) ([]field.Element, error) {
	return append([]field.Element(nil), m.nfs[election]...), nil
}

func (m *memPersistence) InsertNullifier(ctx context.Context, election string, nf field.Element) error {
	m.nfs[election] = append(m.nfs[election], nf)
	return nil
}

func (m *memPersistence) LoadLatestFrontier(ctx context.Context, election string) (*merkletree.Frontier, error) {
	return m.frontiers[election], nil
}

func (m *memPersistence) SaveFrontier(ctx context.Context, election string, height uint64, f *merkletree.Frontier) error {
	m.frontiers[election] = f
	return nil
}

func (m *memPersistence) RecordAnchor(ctx context.Context, election string, height uint64, root field.Element) error {
	m.anchors[election] = root
	return nil
}

func actionFor(t *testing.T, value uint64, nullifierSeed byte) (ingest.CompactAction, note.FullViewingKey) {
	t.Helper()
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
	n := note.New(fvk, addr.D, value, field.Zero(), rseed)

	enc, epk, _, err := note.EncryptNote(n, addr, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt note: %v", err)
	}

	var cmx, nullifier [32]byte
	cmxBytes := n.Cmx().Bytes()
	copy(cmx[:], cmxBytes[:])
	nullifier[0] = nullifierSeed

	return ingest.CompactAction{Nullifier: nullifier, Cmx: cmx, EphemeralKey: epk, Ciphertext: enc}, fvk
}

func TestResumePicksUpFromLastPersistedHeight(t *testing.T) {
	const election = "resume-test"
	p := newMemPersistence()

	action1, fvk1 := actionFor(t, 10, 1)
	block1 := ingest.CompactBlock{
		Height: 1,
		Txs:    []ingest.CompactTx{{TxID: [32]byte{1}, Actions: []ingest.CompactAction{action1}}},
	}
	action2, fvk2 := actionFor(t, 20, 2)
	block2 := ingest.CompactBlock{
		Height: 2,
		Txs:    []ingest.CompactTx{{TxID: [32]byte{2}, Actions: []ingest.CompactAction{action2}}},
	}

	src1 := &sliceSource{blocks: []ingest.CompactBlock{block1}}
	ing1 := &ingest.Ingestor{Source: src1, Watch: []ingest.WatchKey{{FVK: fvk1}}}
	state1, err := ing1.Resume(context.Background(), p, election, 1)
	if err != nil {
		t.Fatalf("first resume: %v", err)
	}
	if state1.LastHeight != 1 || len(state1.CMXs) != 1 {
		t.Fatalf("unexpected state after first resume: %+v", state1)
	}

	src2 := &sliceSource{blocks: []ingest.CompactBlock{block1, block2}}
	ing2 := &ingest.Ingestor{Source: src2, Watch: []ingest.WatchKey{{FVK: fvk2}}}
	state2, err := ing2.Resume(context.Background(), p, election, 2)
	if err != nil {
		t.Fatalf("second resume: %v", err)
	}
	if state2.LastHeight != 2 {
		t.Fatalf("expected resumed height 2, got %d", state2.LastHeight)
	}
	if len(state2.CMXs) != 2 {
		t.Fatalf("expected 2 cmxs after resume (1 prior + 1 new), got %d", len(state2.CMXs))
	}
	if len(state2.OwnNotes) != 1 || state2.OwnNotes[0].Note.Value != 20 {
		t.Fatalf("expected resume to detect only the new own note, got %+v", state2.OwnNotes)
	}
	if len(p.cmxs[election]) != 2 {
		t.Fatalf("expected persistence to hold 2 cmxs, got %d", len(p.cmxs[election]))
	}

	stateAgain, err := ing2.Resume(context.Background(), p, election, 2)
	if err != nil {
		t.Fatalf("idempotent resume: %v", err)
	}
	if stateAgain.LastHeight != 2 || len(stateAgain.CMXs) != 2 {
		t.Fatalf("expected idempotent resume to be a no-op, got %+v", stateAgain)
	}
}
