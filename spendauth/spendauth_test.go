package spendauth_test

import (
	"crypto/rand"
	"testing"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/spendauth"
)

func randomSigningKey(t *testing.T) spendauth.SigningKey {
	t.Helper()
	var sk spendauth.SigningKey
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatalf("read signing key: %v", err)
	}
	return sk
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := randomSigningKey(t)
	vk, err := spendauth.VerifyingKey(sk)
	if err != nil {
		t.Fatalf("verifying key: %v", err)
	}

	var digest [32]byte
	digest[0] = 0xAB

	sig, err := spendauth.Sign(sk, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := spendauth.Verify(vk, digest, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	sk := randomSigningKey(t)
	vk, err := spendauth.VerifyingKey(sk)
	if err != nil {
		t.Fatalf("verifying key: %v", err)
	}

	var digest, other [32]byte
	digest[0] = 1
	other[0] = 2

	sig, err := spendauth.Sign(sk, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := spendauth.Verify(vk, other, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected signature over a different digest to fail verification")
	}
}

func TestRandomizeProducesVerifiableKey(t *testing.T) {
	ask := randomSigningKey(t)
	var alphaBytes [32]byte
	alphaBytes[31] = 7
	alpha := field.MustFromLEBytes(alphaBytes[:])

	rsk, err := spendauth.Randomize(ask, alpha)
	if err != nil {
		t.Fatalf("randomize: %v", err)
	}
	if rsk == ask {
		t.Fatal("expected the randomized key to differ from the base key")
	}

	vk, err := spendauth.VerifyingKey(rsk)
	if err != nil {
		t.Fatalf("verifying key: %v", err)
	}
	var digest [32]byte
	digest[0] = 9
	sig, err := spendauth.Sign(rsk, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := spendauth.Verify(vk, digest, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected randomized key's own signature to verify")
	}
}

func TestAggregateScalarsSumsTrapdoors(t *testing.T) {
	r1 := field.FromUint64(3)
	r2 := field.FromUint64(4)
	total := spendauth.AggregateScalars([]field.Element{r1, r2})
	want := r1.Add(r2)
	if !total.Equal(want) {
		t.Fatal("expected AggregateScalars to sum all trapdoors")
	}
}
