package circuit

import (
	gcedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/pedersen"
)

// BallotActionCircuit proves, for one ballot action, that:
//   - the spent note's commitment is included in the commitment tree at
//     CmxRoot (spec §4.D, §4.E step 2(ii));
//   - the spent note's nullifier, Nf, is correctly derived from that note
//     and is NOT already spent — it falls inside an unspent range whose
//     endpoints are both included in the nullifier-range tree at NfRoot
//     (spec §4.C, §4.E step 2(iii));
//   - the action's net value change is bound to the public value
//     commitment (CvNetX, CvNetY) without revealing the value itself (spec
//     §4.E step 2(iv)), and the output note's own value is separately bound
//     to (CvOutX, CvOutY) — the per-candidate commitment the tally
//     authority accumulates (spec §4.G) — using the same homomorphic
//     commitment so cv_net and cv_out can both be summed across actions;
//   - the freshly created output note's commitment is CmxOut (spec §4.E
//     step 1, 2(i));
//   - the action is bound to a specific randomized spend-authorization key
//     via RkCommit, so an external signature under that key cannot be
//     swapped for a different proof (spec §4.E step 2(vi)-2(vii); the
//     signature itself is verified outside the circuit by spendauth.Verify
//     — see ballot/validator.go).
//
// This generalizes the teacher's circuits/poi/circuit.go (which proved
// membership of 8 parallel leaves plus a single VRF-style commitment) to
// this protocol's one-membership-plus-one-non-membership-plus-balance
// shape, and subsumes circuits/keyleak/circuit.go's "publicKey == H(secretKey)"
// ownership check into the RkCommit constraint below.
type BallotActionCircuit struct {
	// Public inputs.
	CmxRoot  frontend.Variable `gnark:",public"`
	NfRoot   frontend.Variable `gnark:",public"`
	Domain   frontend.Variable `gnark:",public"`
	Nf       frontend.Variable `gnark:",public"`
	DomainNf frontend.Variable `gnark:",public"`
	CvNetX   frontend.Variable `gnark:",public"`
	CvNetY   frontend.Variable `gnark:",public"`
	CvOutX   frontend.Variable `gnark:",public"`
	CvOutY   frontend.Variable `gnark:",public"`
	CmxOut   frontend.Variable `gnark:",public"`
	RkCommit frontend.Variable `gnark:",public"`

	// Spent note.
	Diversifier frontend.Variable
	Value       frontend.Variable
	Rho         frontend.Variable
	Rseed       frontend.Variable
	FvkHash     frontend.Variable

	CmxSiblings [config.Depth]frontend.Variable
	CmxPathBits [config.Depth]frontend.Variable

	RangeStart         frontend.Variable
	RangeEnd           frontend.Variable
	RangeStartSiblings [config.Depth]frontend.Variable
	RangeStartPathBits [config.Depth]frontend.Variable
	RangeEndSiblings   [config.Depth]frontend.Variable
	RangeEndPathBits   [config.Depth]frontend.Variable

	// Output note.
	DiversifierOut frontend.Variable
	ValueOut       frontend.Variable
	RhoOut         frontend.Variable
	RseedOut       frontend.Variable
	FvkHashOut     frontend.Variable

	// Balance and ownership witnesses.
	Rcv    frontend.Variable
	RcvOut frontend.Variable
	Ask    frontend.Variable
	Alpha  frontend.Variable
}

func (c *BallotActionCircuit) Define(api frontend.API) error {
	cmxIn, err := noteCommitGadget(api, c.Diversifier, c.Value, c.Rho, c.Rseed, c.FvkHash)
	if err != nil {
		return err
	}
	cmxRootComputed, err := foldMerklePath(api, cmxIn, c.CmxSiblings[:], c.CmxPathBits[:])
	if err != nil {
		return err
	}
	api.AssertIsEqual(cmxRootComputed, c.CmxRoot)

	nfIn, err := nullifierGadget(api, cmxIn, c.Rho, c.FvkHash)
	if err != nil {
		return err
	}
	api.AssertIsEqual(nfIn, c.Nf)

	domainNfComputed, err := domainNullifierGadget(api, c.Nf, c.Domain)
	if err != nil {
		return err
	}
	api.AssertIsEqual(domainNfComputed, c.DomainNf)

	// nf must fall within [RangeStart, RangeEnd], both of which must
	// genuinely be leaves of the nullifier-range tree at NfRoot.
	api.AssertIsLessOrEqual(c.RangeStart, c.Nf)
	api.AssertIsLessOrEqual(c.Nf, c.RangeEnd)

	startRoot, err := foldMerklePath(api, c.RangeStart, c.RangeStartSiblings[:], c.RangeStartPathBits[:])
	if err != nil {
		return err
	}
	api.AssertIsEqual(startRoot, c.NfRoot)

	endRoot, err := foldMerklePath(api, c.RangeEnd, c.RangeEndSiblings[:], c.RangeEndPathBits[:])
	if err != nil {
		return err
	}
	api.AssertIsEqual(endRoot, c.NfRoot)

	cmxOutComputed, err := noteCommitGadget(api, c.DiversifierOut, c.ValueOut, c.RhoOut, c.RseedOut, c.FvkHashOut)
	if err != nil {
		return err
	}
	api.AssertIsEqual(cmxOutComputed, c.CmxOut)

	net := api.Sub(c.Value, c.ValueOut)
	cvNetX, cvNetY, err := ecCommitGadget(api, net, c.Rcv)
	if err != nil {
		return err
	}
	api.AssertIsEqual(cvNetX, c.CvNetX)
	api.AssertIsEqual(cvNetY, c.CvNetY)

	cvOutX, cvOutY, err := ecCommitGadget(api, c.ValueOut, c.RcvOut)
	if err != nil {
		return err
	}
	api.AssertIsEqual(cvOutX, c.CvOutX)
	api.AssertIsEqual(cvOutY, c.CvOutY)

	rkCommitComputed, err := ownershipCommitGadget(api, c.Ask, c.Alpha)
	if err != nil {
		return err
	}
	api.AssertIsEqual(rkCommitComputed, c.RkCommit)

	return nil
}

func noteCommitGadget(api frontend.API, diversifier, value, rho, rseed, fvkHash frontend.Variable) (frontend.Variable, error) {
	h, err := newInCircuitHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(config.DomainTagNoteCommit, diversifier, value, rho, rseed, fvkHash)
	return h.Sum(), nil
}

func nullifierGadget(api frontend.API, cmx, rho, fvkHash frontend.Variable) (frontend.Variable, error) {
	h, err := newInCircuitHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(config.DomainTagNullifier, cmx, rho, fvkHash)
	return h.Sum(), nil
}

// domainNullifierGadget re-derives merklehash.DomainNullifier inside the
// circuit: domain_nf = Hash_domain(nf, election_domain) (spec §4.E step
// 2(v)). Binding this as a public input (alongside Domain itself) is what
// ties a proof to one election's domain — without it, a proof built
// against one election's (cmx_root, nf_root) could be replayed by simply
// relabeling Data.Domain, since nothing else in the public instance would
// catch the substitution (spec §4.F step 4, GLOSSARY "Domain").
func domainNullifierGadget(api frontend.API, nf, domain frontend.Variable) (frontend.Variable, error) {
	h, err := newInCircuitHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(config.DomainTagDomainNF, nf, domain)
	return h.Sum(), nil
}

// ecCommitGadget computes value*G + trapdoor*H on BN254's twisted-Edwards
// companion curve — the in-circuit half of pedersen.Commit. The curve's
// base field equals BN254 Fr, this circuit's own native field, so this
// performs genuine elliptic-curve arithmetic natively rather than through
// non-native/emulated field gadgets (see pedersen package doc, DESIGN.md).
// G and H are fixed constants shared with pedersen.Commit via
// pedersen.GeneratorCoords so both sides always agree.
func ecCommitGadget(api frontend.API, value, trapdoor frontend.Variable) (x, y frontend.Variable, err error) {
	curve, err := twistededwards.NewEdCurve(api, gcedwards.BN254)
	if err != nil {
		return nil, nil, err
	}
	gx, gy, hx, hy := pedersen.GeneratorCoords()
	g := twistededwards.Point{X: gx, Y: gy}
	h := twistededwards.Point{X: hx, Y: hy}

	vG := curve.ScalarMul(g, value)
	rH := curve.ScalarMul(h, trapdoor)
	sum := curve.Add(vG, rH)
	return sum.X, sum.Y, nil
}

// ownershipCommitGadget binds a randomized spend-authorization key to the
// proof without performing secp256k1 arithmetic in-circuit (see
// spendauth's substitution note in DESIGN.md): it commits to the pair
// (ask, alpha) that spendauth.Randomize mixes out-of-circuit, so a proof
// cannot be replayed under a different signing key.
func ownershipCommitGadget(api frontend.API, ask, alpha frontend.Variable) (frontend.Variable, error) {
	h, err := newInCircuitHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(config.DomainTagMerkleNode+100, ask, alpha)
	return h.Sum(), nil
}
