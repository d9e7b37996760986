// Package spendauth implements the randomizable spend-authorization
// signature scheme a ballot action carries (spec §3, §4.E step
//2(vi)-2(vii), §4.F step 4). Every action randomizes its owner's spend
// authorizing key by a fresh per-action scalar before signing, so the same
// owning key never appears twice on-chain even across many ballots.
//
// The protocol's native scheme is a randomizable Schnorr-style signature
// over the Pallas scalar field (redpallas). This repo substitutes secp256k1
// ECDSA with additive key randomization, grounded on
// vocdoni-davinci-node/crypto/signatures/ethereum, the pack's only worked
// example of a randomizable-verification-key-shaped signature API (see
// DESIGN.md).
package spendauth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hhanh00/shielded-vote/field"
)

// SigningKey is a spend authorizing scalar before per-action randomization.
type SigningKey [32]byte

// Signature is a randomized spend-authorization signature: a
// compact secp256k1 ECDSA signature (R, S, recovery id) over a 32-byte
// message digest.
type Signature struct {
	R  [32]byte
	S  [32]byte
	V  byte
}

func curveOrder() *big.Int {
	return crypto.S256().Params().N
}

// Randomize computes rsk = ask + alpha (mod n), the per-action randomized
// signing key a spend-authorization signature is produced with, mirroring
// how a redpallas randomized key rk is derived from ak and a fresh alpha.
func Randomize(ask SigningKey, alpha field.Element) (SigningKey, error) {
	askInt := new(big.Int).SetBytes(ask[:])
	alphaInt := alpha.BigInt()
	n := curveOrder()

	rsk := new(big.Int).Add(askInt, alphaInt)
	rsk.Mod(rsk, n)
	if rsk.Sign() == 0 {
		return SigningKey{}, fmt.Errorf("spendauth: randomized key reduced to zero, draw a new alpha")
	}

	var out SigningKey
	b := rsk.Bytes()
	copy(out[32-len(b):], b)
	return out, nil
}

// VerifyingKey derives the secp256k1 public key a signing key signs for.
func VerifyingKey(sk SigningKey) ([]byte, error) {
	priv, err := toECDSA(sk)
	if err != nil {
		return nil, err
	}
	return crypto.CompressPubkey(&priv.PublicKey), nil
}

// Sign produces a spend-authorization signature over a 32-byte digest — a
// ballot's sighash (spec §4.E step 2(vii)). The ballot's aggregate binding
// signature is produced by pedersen.Sign, not by this function.
func Sign(sk SigningKey, digest [32]byte) (Signature, error) {
	priv, err := toECDSA(sk)
	if err != nil {
		return Signature{}, err
	}
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return Signature{}, fmt.Errorf("spendauth: sign: %w", err)
	}
	var out Signature
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	return out, nil
}

// Verify checks a signature against a compressed secp256k1 public key and
// the digest it was produced over (spec §4.F step 4, "spend-auth
// signatures verify against rk").
func Verify(pubkey []byte, digest [32]byte, sig Signature) (bool, error) {
	pub, err := crypto.DecompressPubkey(pubkey)
	if err != nil {
		return false, fmt.Errorf("spendauth: decompress pubkey: %w", err)
	}
	raw := make([]byte, 64)
	copy(raw[:32], sig.R[:])
	copy(raw[32:], sig.S[:])
	return crypto.VerifySignature(crypto.CompressPubkey(pub), digest[:], raw), nil
}

func toECDSA(sk SigningKey) (*ecdsa.PrivateKey, error) {
	priv, err := crypto.ToECDSA(sk[:])
	if err != nil {
		return nil, fmt.Errorf("spendauth: invalid signing key: %w", err)
	}
	return priv, nil
}

// AggregateScalars sums a set of per-action binding trapdoors (rcv values)
// into the single binding signing key rcv_total, which is what a ballot's
// aggregate binding signature actually signs with (spec §4.E step 4,
// §4.F step 3: "the sum of all rcv acts as the binding signing key").
func AggregateScalars(rcvs []field.Element) field.Element {
	total := field.Zero()
	for _, r := range rcvs {
		total = total.Add(r)
	}
	return total
}

// SigningKeyFromScalar converts an aggregated field scalar (e.g. rcv_total)
// into a signing key suitable for Sign, reducing into the secp256k1 scalar
// range the same way Randomize does.
func SigningKeyFromScalar(s field.Element) (SigningKey, error) {
	si := s.BigInt()
	n := curveOrder()
	si = new(big.Int).Mod(si, n)
	if si.Sign() == 0 {
		return SigningKey{}, fmt.Errorf("spendauth: aggregate scalar reduced to zero")
	}
	var out SigningKey
	b := si.Bytes()
	copy(out[32-len(b):], b)
	return out, nil
}
