package note_test

import (
	"crypto/rand"
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/note"
)

func TestEncryptDecryptNoteRoundTrip(t *testing.T) {
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
	n := note.New(fvk, addr.D, 12345, field.FromUint64(1), rseed)

	enc, epk, rcvOut, err := note.EncryptNote(n, addr, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, gotRcvOut, ok := note.DecryptNote(enc, epk, fvk.IVK(), note.External)
	if !ok {
		t.Fatal("expected decryption to succeed for the note's own owner")
	}
	if got.D != addr.D {
		t.Fatal("decrypted diversifier does not match")
	}
	if got.Value != n.Value {
		t.Fatalf("decrypted value mismatch: want %d got %d", n.Value, got.Value)
	}
	if got.Rseed != n.Rseed {
		t.Fatal("decrypted rseed does not match")
	}
	if !gotRcvOut.Equal(rcvOut) {
		t.Fatal("expected the recipient to derive the same cv_out trapdoor as the sender")
	}
}

func TestDecryptNoteFailsForWrongOwner(t *testing.T) {
	var sk, otherSk note.SpendingKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	if _, err := rand.Read(otherSk[:]); err != nil {
		t.Fatalf("read spending key: %v", err)
	}
	fvk := note.DeriveFullViewingKey(sk)
	otherFvk := note.DeriveFullViewingKey(otherSk)
	addr := fvk.DefaultAddress(note.External)

	var rseed [32]byte
	n := note.New(fvk, addr.D, 1, field.FromUint64(1), rseed)
	enc, epk, _, err := note.EncryptNote(n, addr, rand.Reader)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, _, ok := note.DecryptNote(enc, epk, otherFvk.IVK(), note.External); ok {
		t.Fatal("expected decryption to fail for a different owner's viewing key")
	}
}

func TestCmxAndNullifierDeterministic(t *testing.T) {
	var sk note.SpendingKey
	sk[0] = 0x42
	fvk := note.DeriveFullViewingKey(sk)
	d := fvk.IVK().DefaultDiversifier(note.External)
	var rseed [32]byte
	rseed[0] = 1

	n1 := note.New(fvk, d, 50, field.FromUint64(3), rseed)
	n2 := note.New(fvk, d, 50, field.FromUint64(3), rseed)

	if !n1.Cmx().Equal(n2.Cmx()) {
		t.Fatal("expected identical notes to produce the same commitment")
	}
	if !n1.Nullifier().Equal(n2.Nullifier()) {
		t.Fatal("expected identical notes to produce the same nullifier")
	}

	n3 := note.New(fvk, d, 51, field.FromUint64(3), rseed)
	if n1.Cmx().Equal(n3.Cmx()) {
		t.Fatal("expected a different value to change the commitment")
	}
}
