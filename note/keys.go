// Package note implements the shielded note type this protocol moves value
// with — spending keys, viewing keys, diversified addresses, and the note
// itself together with its commitment/nullifier derivations (spec §3).
package note

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
)

// Scope distinguishes addresses a full viewing key derives for outgoing
// (External) versus internal change (Internal) use, mirroring the
// Orchard-family key hierarchy's two derivation scopes.
type Scope uint8

const (
	External Scope = 0
	Internal Scope = 1
)

// SpendingKey is the root secret a single note-owning account derives
// everything else from.
type SpendingKey [32]byte

// Diversifier is the 11-byte tag that lets one viewing key produce many
// unlinkable receiving addresses.
type Diversifier [config.DiversifierSize]byte

// FullViewingKey holds the three derived components this protocol needs to
// recognize, spend, and prove ownership of notes: Ask, the spend
// authorizing scalar (handed to spendauth for signing); Nk, the nullifier
// deriving key; and Rivk, the commitment/address randomness base.
type FullViewingKey struct {
	Ask  [32]byte
	Nk   field.Element
	Rivk field.Element
}

func kdf(personal string, parts ...[]byte) [32]byte {
	h, err := blake2b.New256([]byte(personal))
	if err != nil {
		panic(fmt.Sprintf("note: blake2b personalization %q too long: %v", personal, err))
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveFullViewingKey expands a spending key into its full viewing key,
// mirroring original_source/src/decrypt.rs's to_fvk (there, decoding a
// UFVK string; here, deriving one directly from the spending key the way
// to_sk's mnemonic-derived seed eventually feeds a key derivation path).
func DeriveFullViewingKey(sk SpendingKey) FullViewingKey {
	ask := kdf("ShieldedVote_Ask", sk[:])
	nkBytes := kdf("ShieldedVote_Nk", sk[:])
	rivkBytes := kdf("ShieldedVote_Rivk", sk[:])
	return FullViewingKey{
		Ask:  ask,
		Nk:   field.MustFromLEBytes(reduceTo32(nkBytes[:])),
		Rivk: field.MustFromLEBytes(reduceTo32(rivkBytes[:])),
	}
}

// reduceTo32 is used instead of a direct FromLEBytes when the input is raw
// KDF output rather than an already-canonical field encoding: it clears the
// top three bits, leaving a value below 2^253 and so below the field
// characteristic, which means the result always decodes without a
// canonicity error; callers here do not depend on preserving the KDF
// output's exact numeric value beyond uniqueness.
func reduceTo32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out, b)
	out[31] &= 0x1f
	return out
}

// AskField reduces Ask into a BN254 field element the same way reduceTo32
// treats other raw KDF output, for use wherever Ask needs to enter a
// Poseidon-hashed commitment rather than secp256k1 scalar arithmetic (spec
// §4.E step 2(vi); see ballot.Builder's RkCommit computation).
func (fvk FullViewingKey) AskField() field.Element {
	return field.MustFromLEBytes(reduceTo32(fvk.Ask[:]))
}

// Hash binds an FVK's three components into the single field element
// merklehash.NoteCommitment/Nullifier use as the "owner" input, so two
// notes owned by different keys never share a commitment by coincidence.
func (fvk FullViewingKey) Hash() field.Element {
	nk := fvk.Nk.Bytes()
	rivk := fvk.Rivk.Bytes()
	b := kdf("ShieldedVote_FvkHash", fvk.Ask[:], nk[:], rivk[:])
	return field.MustFromLEBytes(reduceTo32(b[:]))
}

// IncomingViewingKey is the pair (Nk, Rivk) without Ask: enough to detect
// and decrypt notes sent to this key's addresses but not to spend them.
type IncomingViewingKey struct {
	Nk   field.Element
	Rivk field.Element
}

func (fvk FullViewingKey) IVK() IncomingViewingKey {
	return IncomingViewingKey{Nk: fvk.Nk, Rivk: fvk.Rivk}
}

// Address is a diversified shielded payment address: a diversifier plus the
// diversified transmission key derived from it and an incoming viewing key.
// Pkd is the X coordinate of a secp256k1 point (see crypto.go): enough on
// its own, with the even-Y convention evenY/liftX agree on, to run a
// Diffie-Hellman exchange with a note's ephemeral key.
type Address struct {
	D   Diversifier
	Pkd [32]byte
}

// DeriveAddress computes the diversified address an IVK controls for a
// given diversifier (spec §3's "address" field on a candidate choice, and
// the address a ballot action's output note is sent to).
func DeriveAddress(ivk IncomingViewingKey, d Diversifier) Address {
	gx, gy := diversifierBasePoint(d)
	_, px, _ := evenY(gx, gy, ivk.Rivk.BigInt())
	var pkd [32]byte
	b := px.Bytes()
	copy(pkd[32-len(b):], b)
	return Address{D: d, Pkd: pkd}
}

// DefaultDiversifier derives the one canonical diversifier this package uses
// per scope for an account's own receiving address, so trial decryption
// (spec §4.B) only ever needs to try one diversifier per scope instead of
// searching an unbounded diversifier space — matching how light wallets
// commonly track a single default diversifier per account scope.
func (ivk IncomingViewingKey) DefaultDiversifier(scope Scope) Diversifier {
	b := kdf("ShieldedVote_DefaultD", ivk.Rivk.Bytes()[:], []byte{byte(scope)})
	var d Diversifier
	copy(d[:], b[:config.DiversifierSize])
	return d
}

// DefaultAddress is the address DefaultDiversifier/DeriveAddress would
// produce together, for convenience.
func (fvk FullViewingKey) DefaultAddress(scope Scope) Address {
	ivk := fvk.IVK()
	return DeriveAddress(ivk, ivk.DefaultDiversifier(scope))
}
