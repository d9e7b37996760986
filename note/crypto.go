package note

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
)

// This file implements the Diffie-Hellman key exchange and note-payload
// encryption a ballot action's `enc`/`epk` fields carry (spec §3, §4.B's
// "attempt trial decryption"). The protocol's native scheme runs the
// exchange over the Pallas curve with a genuine hash-to-curve diversifier
// base point; this repo substitutes secp256k1 (the curve spendauth already
// uses) with an x-only point encoding so every on-wire point still fits in
// the spec's 32-byte field widths — see DESIGN.md, "note: x-only
// Diffie-Hellman".

func curve() *secp256k1Curve { return &secp256k1Curve{} }

// secp256k1Curve is a thin wrapper so this file's point arithmetic reads as
// plain (x,y) big.Int pairs instead of threading crypto.S256() through
// every call site.
type secp256k1Curve struct{}

func (secp256k1Curve) scalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return crypto.S256().ScalarBaseMult(k)
}

func (secp256k1Curve) scalarMult(x, y *big.Int, k []byte) (*big.Int, *big.Int) {
	return crypto.S256().ScalarMult(x, y, k)
}

func curveOrder() *big.Int { return crypto.S256().Params().N }
func curveP() *big.Int     { return crypto.S256().Params().P }

// diversifierBasePoint derives g_d, the diversifier-dependent base point
// both a diversified address's transmission key and a note's ephemeral key
// are scalar multiples of — a nothing-up-my-sleeve hash-to-scalar standing
// in for the protocol's native hash-to-curve diversifier group element.
func diversifierBasePoint(d Diversifier) (x, y *big.Int) {
	h := kdf("ShieldedVote_Gd", d[:])
	s := new(big.Int).SetBytes(h[:])
	s.Mod(s, curveOrder())
	if s.Sign() == 0 {
		s.SetInt64(1)
	}
	return curve().scalarBaseMult(s.Bytes())
}

// evenY normalizes scalar (mod the curve order) to whichever of {scalar,
// -scalar} yields a point with an even Y coordinate, and returns that
// scalar along with the point itself. Every point this package puts on the
// wire is produced through evenY, so liftX's modular square root always
// recovers the exact point a peer computed, never its negation (see
// DESIGN.md for the argument that this keeps both sides of the exchange
// in agreement despite only ever encoding an X coordinate).
func evenY(gx, gy *big.Int, scalar *big.Int) (*big.Int, *big.Int, *big.Int) {
	n := curveOrder()
	s := new(big.Int).Mod(scalar, n)
	x, y := curve().scalarMult(gx, gy, s.Bytes())
	if y.Bit(0) == 1 {
		s = new(big.Int).Sub(n, s)
		x, y = curve().scalarMult(gx, gy, s.Bytes())
	}
	return s, x, y
}

// liftX recovers the even-Y point whose X coordinate is x. secp256k1's
// prime is 3 mod 4, so a modular square root is one exponentiation.
func liftX(x *big.Int) (*big.Int, *big.Int, error) {
	p := curveP()
	ySq := new(big.Int).Exp(x, big.NewInt(3), p)
	ySq.Add(ySq, big.NewInt(7))
	ySq.Mod(ySq, p)
	exp := new(big.Int).Rsh(new(big.Int).Add(p, big.NewInt(1)), 2)
	y := new(big.Int).Exp(ySq, exp, p)
	check := new(big.Int).Exp(y, big.NewInt(2), p)
	if check.Cmp(ySq) != 0 {
		return nil, nil, fmt.Errorf("note: %s is not a valid curve point X coordinate", x)
	}
	if y.Bit(0) == 1 {
		y.Sub(p, y)
	}
	return x, y, nil
}

// notePlaintextSize is the padded, unauthenticated note payload size: an
// 11-byte diversifier, an 8-byte little-endian value, a 32-byte rseed, and
// 17 reserved bytes — chosen so that, once sealed with a 16-byte Poly1305
// tag, the ciphertext is exactly config.CiphertextSize bytes (spec §3:
// "enc:[84]"). rho is never encrypted: an output note's rho is always the
// nullifier of its paired input within the same action (see
// ballot.Builder), so a recipient recovers it from the action's own public
// fields instead.
const notePlaintextSize = config.DiversifierSize + 8 + 32 + 17

// EncryptNote seals n's payload to addr, returning the ciphertext and the
// ephemeral public key a recipient needs to derive the same symmetric key
// (spec §3: the `enc`/`epk` action fields; §4.E step 1: "encrypt the note
// payload producing enc_k"). It also returns rcvOut, the trapdoor the
// ballot action's cv_out commitment (spec §4.G) is built with: rather than
// drawing it as independent randomness and growing the fixed-size
// ciphertext to carry it, rcvOut is derived from the same ECDH shared
// secret sx this function already computes, with a distinct domain tag —
// so DecryptNote can recompute the identical value from the recipient side
// without any extra wire bytes (see config.CiphertextSize's "enc:[84]" in
// spec §3, which pins the ciphertext length).
func EncryptNote(n Note, addr Address, rng io.Reader) (enc [config.CiphertextSize]byte, epk [32]byte, rcvOut field.Element, err error) {
	gx, gy := diversifierBasePoint(addr.D)

	var eskBuf [32]byte
	if _, err = io.ReadFull(rng, eskBuf[:]); err != nil {
		return enc, epk, rcvOut, fmt.Errorf("note: read ephemeral randomness: %w", err)
	}
	esk := new(big.Int).SetBytes(eskBuf[:])
	effEsk, ex, _ := evenY(gx, gy, esk)
	eb := ex.Bytes()
	copy(epk[32-len(eb):], eb)

	pkdX := new(big.Int).SetBytes(addr.Pkd[:])
	pkx, pky, err := liftX(pkdX)
	if err != nil {
		return enc, epk, rcvOut, fmt.Errorf("note: recipient address: %w", err)
	}
	sx, _ := curve().scalarMult(pkx, pky, effEsk.Bytes())
	key := kdf("ShieldedVote_NoteKey", sx.Bytes())
	rcvOut = deriveCvOutTrapdoor(sx)

	plain := make([]byte, 0, notePlaintextSize)
	plain = append(plain, n.D[:]...)
	var vbuf [8]byte
	binary.LittleEndian.PutUint64(vbuf[:], n.Value)
	plain = append(plain, vbuf[:]...)
	plain = append(plain, n.Rseed[:]...)
	plain = append(plain, make([]byte, notePlaintextSize-len(plain))...)

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return enc, epk, rcvOut, fmt.Errorf("note: init AEAD: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	ct := aead.Seal(nil, nonce, plain, nil)
	copy(enc[:], ct)
	return enc, epk, rcvOut, nil
}

// deriveCvOutTrapdoor derives rcvOut from an ECDH shared secret's x
// coordinate, under a domain tag distinct from the note's own symmetric
// key derivation so the two never collide.
func deriveCvOutTrapdoor(sx *big.Int) field.Element {
	h := kdf("ShieldedVote_CvOutTrapdoor", sx.Bytes())
	return field.FromWideBytes(h[:])
}

// DecryptNote attempts to open enc against ivk's default address for scope,
// returning the recovered note and its paired cv_out trapdoor on success.
// rho and fvkHash are supplied by the caller (rho from the action's own
// nullifier-deriving sibling field; fvkHash the caller's own, since a note
// one decrypts is always one's own note) rather than carried in the
// ciphertext, matching spec §4.B's "on success, record the resulting
// note". rcvOut lets a tally authority that successfully decrypts an
// action verify its own accumulated S_k against the action's published
// cv_out (spec §4.G) — see tally.Tally.Accept.
func DecryptNote(enc [config.CiphertextSize]byte, epk [32]byte, ivk IncomingViewingKey, scope Scope) (n Note, rcvOut field.Element, ok bool) {
	d := ivk.DefaultDiversifier(scope)
	gx, gy := diversifierBasePoint(d)
	effRivk, _, _ := evenY(gx, gy, ivk.Rivk.BigInt())

	ex := new(big.Int).SetBytes(epk[:])
	epx, epy, err := liftX(ex)
	if err != nil {
		return Note{}, field.Element{}, false
	}
	sx, _ := curve().scalarMult(epx, epy, effRivk.Bytes())
	key := kdf("ShieldedVote_NoteKey", sx.Bytes())

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return Note{}, field.Element{}, false
	}
	nonce := make([]byte, aead.NonceSize())
	plain, err := aead.Open(nil, nonce, enc[:], nil)
	if err != nil {
		return Note{}, field.Element{}, false
	}

	var dd Diversifier
	copy(dd[:], plain[:config.DiversifierSize])
	value := binary.LittleEndian.Uint64(plain[config.DiversifierSize : config.DiversifierSize+8])
	var rseed [32]byte
	copy(rseed[:], plain[config.DiversifierSize+8:config.DiversifierSize+8+32])

	return Note{D: dd, Value: value, Rseed: rseed}, deriveCvOutTrapdoor(sx), true
}
