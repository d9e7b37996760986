// Package field wraps the scalar field the ballot circuit operates over.
//
// The original protocol runs over the Pallas base field; this module keeps
// the teacher's choice of field instead (the BN254 scalar field from
// github.com/consensys/gnark-crypto, the native field of the gnark circuits
// this repo carries forward — see DESIGN.md, "Field substitution"). Every
// invariant spec.md states about "the field" — canonical little-endian
// encoding, total order by encoding, characteristic p — holds here with
// p = the BN254 scalar field modulus.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Element is a canonical field element, stored as a gnark-crypto fr.Element
// (Montgomery form internally, but every accessor below deals in the
// canonical non-Montgomery representation).
type Element struct {
	v fr.Element
}

// Zero returns the additive identity.
func Zero() Element { return Element{} }

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.v.SetOne()
	return e
}

// FromUint64 lifts a small integer into the field.
func FromUint64(x uint64) Element {
	var e Element
	e.v.SetUint64(x)
	return e
}

// FromLEBytes decodes 32 little-endian bytes into a field element. It fails
// (returns an error) if the value is >= the field characteristic, matching
// spec §4.A: "fails if >= p".
func FromLEBytes(b []byte) (Element, error) {
	if len(b) != 32 {
		return Element{}, fmt.Errorf("field: expected 32 bytes, got %d", len(b))
	}
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = b[31-i]
	}
	var e Element
	// SetBytesCanonical reduces silently on some versions; enforce strict
	// canonicity ourselves by checking against the modulus directly.
	bi := new(big.Int).SetBytes(be[:])
	if bi.Cmp(fr.Modulus()) >= 0 {
		return Element{}, fmt.Errorf("field: value is not canonical (>= field characteristic)")
	}
	e.v.SetBigInt(bi)
	return e, nil
}

// MustFromLEBytes is FromLEBytes but panics on error; for constants and
// tests where the input is known-good.
func MustFromLEBytes(b []byte) Element {
	e, err := FromLEBytes(b)
	if err != nil {
		panic(err)
	}
	return e
}

// Bytes encodes the element as 32 little-endian bytes.
func (e Element) Bytes() [32]byte {
	be := e.v.Bytes() // big-endian canonical
	var le [32]byte
	for i := 0; i < 32; i++ {
		le[i] = be[31-i]
	}
	return le
}

// BigInt returns the element's canonical non-negative representative.
func (e Element) BigInt() *big.Int {
	z := new(big.Int)
	e.v.BigInt(z)
	return z
}

// Add returns e + o.
func (e Element) Add(o Element) Element {
	var r Element
	r.v.Add(&e.v, &o.v)
	return r
}

// Sub returns e - o.
func (e Element) Sub(o Element) Element {
	var r Element
	r.v.Sub(&e.v, &o.v)
	return r
}

// Neg returns -e.
func (e Element) Neg() Element {
	var r Element
	r.v.Neg(&e.v)
	return r
}

// Equal reports whether the two elements are identical.
func (e Element) Equal(o Element) bool {
	return e.v.Equal(&o.v)
}

// Cmp gives the total order over canonical encodings required by spec §3
// ("total order by encoding"). It compares big-endian canonical bytes, which
// is equivalent to comparing the integer representatives.
func (e Element) Cmp(o Element) int {
	ae := e.v.Bytes()
	be := o.v.Bytes()
	for i := range ae {
		if ae[i] != be[i] {
			if ae[i] < be[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// MaxValue returns p - 1, the largest representable field element — used as
// the upper bound of the final nullifier-range leaf (spec §3, §4.C: "p-1
// encoded as -1 mod p").
func MaxValue() Element {
	return One().Neg()
}

// Random draws a uniformly random field element, used for trapdoors
// (rcv), spend-authorization randomizers (alpha) and other circuit blinding
// factors (spec §4.E step 2).
func Random(rng interface {
	Read(p []byte) (n int, err error)
}) (Element, error) {
	var buf [64]byte
	if _, err := rng.Read(buf[:]); err != nil {
		return Element{}, fmt.Errorf("field: read randomness: %w", err)
	}
	var e Element
	e.v.SetBytesCanonical(reduceWide(buf[:]))
	return e, nil
}

// FromWideBytes reduces an arbitrary-length big-endian byte string mod p,
// the same wide-reduction Random uses for its entropy draws. It is for
// deriving a field element from a hash or KDF output (e.g. note.EncryptNote
// deriving a commitment trapdoor from a shared secret) rather than decoding
// a canonical encoding, so unlike FromLEBytes it never rejects its input.
func FromWideBytes(b []byte) Element {
	var e Element
	e.v.SetBytesCanonical(reduceWide(b))
	return e
}

// reduceWide takes a big-endian byte string of any length (64 bytes of
// entropy for Random) and returns the 32 canonical big-endian bytes of its
// reduction mod p, so that Random draws are close to uniform even though
// SetBytesCanonical expects exactly 32 canonical bytes.
func reduceWide(wide []byte) []byte {
	bi := new(big.Int).SetBytes(wide)
	bi.Mod(bi, fr.Modulus())
	out := make([]byte, 32)
	b := bi.Bytes()
	copy(out[32-len(b):], b)
	return out
}
