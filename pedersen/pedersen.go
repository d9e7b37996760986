// Package pedersen implements the additively-homomorphic value commitment a
// ballot action's `cv_net`/`cv_out` carry (spec §3, §4.E step 2(iv)) and the
// Schnorr-style binding signature the validator checks against their sum
// (spec §4.F step 3).
//
// merklehash.ValueCommit used to be a Poseidon2 hash of (value, trapdoor),
// which is not homomorphic: Commit(a,r1) + Commit(b,r2) != Commit(a+b,
// r1+r2) under any operation a hash output supports. Spec §4.F step 3's
// "total_cv = Σ action.cv_net - Commit(0,0)" binding check is only possible
// against a commitment that genuinely is homomorphic, so this package
// replaces it with a real Pedersen commitment — value*G + trapdoor*H — on
// BN254's companion twisted-Edwards curve, using the same
// github.com/consensys/gnark-crypto dependency the teacher's field and
// circuit packages already use, and the matching
// github.com/consensys/gnark std/algebra/native/twistededwards gadget for
// the in-circuit half (see circuit/ballotcircuit.go). The companion curve
// (base field = BN254 Fr, the SNARK's own native field) is used instead of
// BN254's G1 curve proper (base field = BN254 Fp) so the ballot circuit can
// perform this arithmetic natively, without non-native/emulated field
// arithmetic — see DESIGN.md, "pedersen: EC value commitment".
package pedersen

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	tedwards "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"golang.org/x/crypto/blake2b"

	"github.com/hhanh00/shielded-vote/field"
)

// Commitment is a compressed point on BN254's twisted-Edwards companion
// curve, 32 bytes on the wire like every other hash-shaped field this repo
// carries (spec §3 "cv_net:H").
type Commitment [32]byte

var (
	setupOnce sync.Once
	curve     tedwards.CurveParams
	genG      tedwards.PointAffine
	genH      tedwards.PointAffine
)

func setup() {
	curve = tedwards.GetEdwardsCurve()
	genG = curve.Base
	genH = hashToPoint("ShieldedVote_Pedersen_H")
}

// hashToPoint derives a second generator with no known discrete-log
// relation to genG: it hashes tag with an increasing counter into a
// candidate Y coordinate and recovers X from the twisted-Edwards curve
// equation a*x^2 + y^2 = 1 + d*x^2*y^2 whenever that X is a quadratic
// residue, retrying otherwise — the same hash-then-recover-X technique
// note/crypto.go's liftX uses for secp256k1, adapted to this curve's
// equation. Because nobody ever observes a scalar relating genG and genH
// (only the coordinates, recovered by a square root), this is safe to use
// as Pedersen's second, "nothing up my sleeve" base point: unlike deriving
// H = s*G for a public scalar s, it does not let anyone open a commitment
// to an arbitrary value.
func hashToPoint(tag string) tedwards.PointAffine {
	for ctr := uint32(0); ; ctr++ {
		var ctrBuf [4]byte
		binary.LittleEndian.PutUint32(ctrBuf[:], ctr)

		h, err := blake2b.New256([]byte("ShieldedVote_HashToCurve"))
		if err != nil {
			panic(err)
		}
		h.Write([]byte(tag))
		h.Write(ctrBuf[:])
		digest := h.Sum(nil)

		var y fr.Element
		y.SetBytes(digest)

		var y2, num, den fr.Element
		y2.Square(&y)
		num.SetOne()
		num.Sub(&num, &y2) // 1 - y^2

		den.Mul(&curve.D, &y2)
		den.Sub(&curve.A, &den) // a - d*y^2
		if den.IsZero() {
			continue
		}
		den.Inverse(&den)

		var x2, x fr.Element
		x2.Mul(&num, &den)
		if x.Sqrt(&x2) == nil {
			continue
		}

		p := tedwards.PointAffine{X: x, Y: y}
		if !p.IsOnCurve() {
			continue
		}
		return p
	}
}

// netToField reduces a possibly-negative net value into its BN254 Fr
// canonical representative exactly the way the ballot circuit's own
// api.Sub(Value, ValueOut) does, so the off-circuit and in-circuit scalars
// Commit multiplies by always agree.
func netToField(value int64) field.Element {
	if value >= 0 {
		return field.FromUint64(uint64(value))
	}
	return field.Zero().Sub(field.FromUint64(uint64(-value)))
}

// Commit computes value*G + trapdoor*H (spec §4.E step 2(iv)).
func Commit(value int64, trapdoor field.Element) Commitment {
	setupOnce.Do(setup)

	v := netToField(value)
	var vG, rH, sum tedwards.PointAffine
	vG.ScalarMultiplication(&genG, v.BigInt())
	rH.ScalarMultiplication(&genH, trapdoor.BigInt())
	sum.Add(&vG, &rH)
	return Commitment(sum.Bytes())
}

// Identity is Commit(0, 0), the curve's neutral element (0,1) — spec §4.F
// step 3's "- Commit(0,0)" value-balance adjustment.
func Identity() Commitment {
	var p tedwards.PointAffine
	p.X.SetZero()
	p.Y.SetOne()
	return Commitment(p.Bytes())
}

// Bytes returns c's 32-byte compressed wire encoding.
func (c Commitment) Bytes() [32]byte {
	return [32]byte(c)
}

func (c Commitment) point() (tedwards.PointAffine, error) {
	var p tedwards.PointAffine
	if _, err := p.SetBytes(c[:]); err != nil {
		return p, fmt.Errorf("pedersen: decode commitment: %w", err)
	}
	return p, nil
}

// XY decompresses c into its affine coordinates, for embedding as the
// ballot circuit's public CvNetX/CvNetY (or CvOutX/CvOutY, or the count
// circuit's CommitmentX/CommitmentY) inputs.
func (c Commitment) XY() (x, y *big.Int, err error) {
	p, err := c.point()
	if err != nil {
		return nil, nil, err
	}
	return p.X.BigInt(new(big.Int)), p.Y.BigInt(new(big.Int)), nil
}

// FromXY re-compresses a public-input (x,y) pair — the inverse of XY, used
// where the circuit's public coordinates need to round-trip back into a
// Commitment.
func FromXY(x, y *big.Int) Commitment {
	var p tedwards.PointAffine
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	return Commitment(p.Bytes())
}

// Add computes the homomorphic sum of c and o:
//
//	Commit(a,r1).Add(Commit(b,r2)) == Commit(a+b, r1+r2)
//
// the property spec §4.F step 3's binding-signature check, and §4.G's
// per-candidate running commitment, both depend on.
func (c Commitment) Add(o Commitment) (Commitment, error) {
	p1, err := c.point()
	if err != nil {
		return Commitment{}, err
	}
	p2, err := o.point()
	if err != nil {
		return Commitment{}, err
	}
	var sum tedwards.PointAffine
	sum.Add(&p1, &p2)
	return Commitment(sum.Bytes()), nil
}

// Sum folds cs into their homomorphic total, starting from Identity (spec
// §4.F step 3: "total_cv = Σ action.cv_net − Commit(0, 0)"; subtracting the
// identity is a no-op, so starting the fold there is equivalent).
func Sum(cs []Commitment) (Commitment, error) {
	total := Identity()
	for i, c := range cs {
		var err error
		total, err = total.Add(c)
		if err != nil {
			return Commitment{}, fmt.Errorf("pedersen: sum commitment %d: %w", i, err)
		}
	}
	return total, nil
}

func challenge(r, pubkey Commitment, digest [32]byte) *big.Int {
	h, err := blake2b.New256([]byte("ShieldedVote_BindingChallenge"))
	if err != nil {
		panic(err)
	}
	h.Write(r[:])
	h.Write(pubkey[:])
	h.Write(digest[:])
	e := new(big.Int).SetBytes(h.Sum(nil))
	e.Mod(e, &curve.Order)
	return e
}

// Signature is a Schnorr signature over the companion curve: R = k*H (the
// nonce commitment) and s = k + e*sk mod order (the response), with
// e = Hash(R, pubkey, digest) the Fiat-Shamir challenge. Unlike
// spendauth.Signature, there is no recovery byte — the verifier is always
// given the public key directly.
type Signature struct {
	R [32]byte
	S [32]byte
}

// VerifyingKey derives sk*H, the point a Signature verifies against. For
// the ballot's binding signature, sk is rcv_total and this is never called
// directly — spec §4.F step 3 says the verification key is *recomputed* by
// summing the ballot's own cv_net commitments (see ballot.Validate), not
// supplied by the builder; VerifyingKey is used by Sign, which binds the
// public key into its challenge, and by tests.
func VerifyingKey(sk field.Element) Commitment {
	setupOnce.Do(setup)
	var p tedwards.PointAffine
	p.ScalarMultiplication(&genH, sk.BigInt())
	return Commitment(p.Bytes())
}

// Sign produces a Schnorr signature over digest under sk, deterministically
// deriving its nonce from sk and digest so signing needs no external
// randomness and the same inputs always produce the same signature.
func Sign(sk field.Element, digest [32]byte) (Signature, error) {
	setupOnce.Do(setup)

	nonceHasher, err := blake2b.New256([]byte("ShieldedVote_BindingNonce"))
	if err != nil {
		return Signature{}, fmt.Errorf("pedersen: init nonce derivation: %w", err)
	}
	skBytes := sk.Bytes()
	nonceHasher.Write(skBytes[:])
	nonceHasher.Write(digest[:])
	k := new(big.Int).SetBytes(nonceHasher.Sum(nil))
	k.Mod(k, &curve.Order)
	if k.Sign() == 0 {
		k.SetInt64(1)
	}

	var rPoint tedwards.PointAffine
	rPoint.ScalarMultiplication(&genH, k)
	rCommit := Commitment(rPoint.Bytes())

	pubkey := VerifyingKey(sk)
	e := challenge(rCommit, pubkey, digest)

	s := new(big.Int).Mul(e, sk.BigInt())
	s.Add(s, k)
	s.Mod(s, &curve.Order)

	var sig Signature
	copy(sig.R[:], rCommit[:])
	sBytes := s.Bytes()
	copy(sig.S[32-len(sBytes):], sBytes)
	return sig, nil
}

// Verify checks a Schnorr signature against pubkey = sk*H and digest (spec
// §4.F step 3: "the binding verification key is total_cv interpreted as a
// public key; verify binding_signature over sighash").
func Verify(pubkey Commitment, digest [32]byte, sig Signature) (bool, error) {
	setupOnce.Do(setup)

	var rPoint tedwards.PointAffine
	if _, err := rPoint.SetBytes(sig.R[:]); err != nil {
		return false, fmt.Errorf("pedersen: decode signature R: %w", err)
	}
	pubPoint, err := Commitment(pubkey).point()
	if err != nil {
		return false, fmt.Errorf("pedersen: decode verifying key: %w", err)
	}

	e := challenge(Commitment(sig.R), pubkey, digest)

	s := new(big.Int).SetBytes(sig.S[:])
	s.Mod(s, &curve.Order)

	var lhs tedwards.PointAffine
	lhs.ScalarMultiplication(&genH, s)

	var eTimesPub, rhs tedwards.PointAffine
	eTimesPub.ScalarMultiplication(&pubPoint, e)
	rhs.Add(&rPoint, &eTimesPub)

	return lhs.Equal(&rhs), nil
}

// GeneratorCoords exposes G and H's affine coordinates so the ballot and
// count circuits can embed the identical constants in-circuit (see
// circuit/ballotcircuit.go's ecCommitGadget). G is the companion curve's own
// canonical base point — gnark's std/algebra/native/twistededwards package
// hardcodes the same constant, so the in-circuit side can use
// curve.Params().Base instead and the two will agree by construction. H is
// this package's own derived generator and has no such shared constant, so
// the circuit embeds these coordinates directly.
func GeneratorCoords() (gx, gy, hx, hy *big.Int) {
	setupOnce.Do(setup)
	return genG.X.BigInt(new(big.Int)), genG.Y.BigInt(new(big.Int)),
		genH.X.BigInt(new(big.Int)), genH.Y.BigInt(new(big.Int))
}
