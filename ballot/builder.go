package ballot

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/hhanh00/shielded-vote/circuit"
	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merklehash"
	"github.com/hhanh00/shielded-vote/merkletree"
	"github.com/hhanh00/shielded-vote/nfrange"
	"github.com/hhanh00/shielded-vote/note"
	"github.com/hhanh00/shielded-vote/pedersen"
	"github.com/hhanh00/shielded-vote/spendauth"
)

// Version is the only ballot wire-format version this repo produces or
// accepts (spec §3: "data = { version, ... }").
const Version = 1

// SpendInput is one note a ballot spends: the note itself, the key that
// owns it, and the position it occupies in the commitment-tree snapshot
// the ballot is built against (spec §4.E step 1: "caller supplies the
// notes to spend").
type SpendInput struct {
	Note     note.Note
	FVK      note.FullViewingKey
	Position uint64
}

// SendOutput is one new note a ballot creates: the recipient's address, the
// FVK hash needed to compute that note's commitment (see
// note.NewForRecipient), and the value it carries.
type SendOutput struct {
	Address note.Address
	FvkHash field.Element
	Value   uint64
}

// BuildParams bundles the per-election context every action in a ballot is
// proved against: the two snapshot anchors, the full leaf sets needed to
// build Merkle witnesses against them, and the election's own domain and
// signature policy (spec §3 "Snapshot", §4.D, §4.C).
type BuildParams struct {
	Domain            field.Element
	Anchors           Anchors
	CmxLeaves         []field.Element
	Ranges            []nfrange.Range
	SignatureRequired bool

	// ProofConcurrency caps how many actions are proved at once; 0 means
	// unlimited (circuit.ProveAll's convention, spec §5).
	ProofConcurrency int
}

// Build assembles, proves, and signs a ballot spending inputs and sending
// outputs (spec §4.E). Outputs are paired with inputs in order; if there
// are fewer outputs than inputs, the remainder are padded with zero-value
// change back to each unpaired input's own address (spec §4.E step 1's
// arity policy) so every action still has exactly one input and one
// output. More outputs than inputs is always an error: there is no action
// slot to carry them.
func Build(rng io.Reader, params BuildParams, inputs []SpendInput, outputs []SendOutput) (*Ballot, error) {
	if len(outputs) > len(inputs) {
		return nil, ErrActionArityMismatch
	}

	var sumIn, sumOut uint64
	for _, in := range inputs {
		sumIn += in.Note.Value
	}
	for _, out := range outputs {
		sumOut += out.Value
	}
	if sumIn != sumOut {
		return nil, ErrValueImbalance
	}

	padded := make([]SendOutput, len(inputs))
	copy(padded, outputs)
	for i := len(outputs); i < len(inputs); i++ {
		in := inputs[i]
		padded[i] = SendOutput{
			Address: in.FVK.DefaultAddress(note.Internal),
			FvkHash: in.FVK.Hash(),
			Value:   0,
		}
	}

	nfLeaves := nfrange.Leaves(params.Ranges)

	actions := make([]Action, len(inputs))
	circuitAssignments := make([]*circuit.BallotActionCircuit, len(inputs))
	rcvs := make([]field.Element, len(inputs))
	rsks := make([]spendauth.SigningKey, len(inputs))

	seenNf := make(map[field.Element]bool, len(inputs))

	for i, in := range inputs {
		out := padded[i]

		nf := in.Note.Nullifier()
		if seenNf[nf] {
			return nil, ErrDoubleNullifier
		}
		seenNf[nf] = true

		cmxPaths, err := merkletree.BuildPaths(params.CmxLeaves, []uint64{in.Position})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
		}
		cmxPath := cmxPaths[in.Position]

		rangeIdx, err := nfrange.Search(params.Ranges, nf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDoubleNullifier, err)
		}
		rangePaths, err := merkletree.BuildPaths(nfLeaves, []uint64{rangeIdx, rangeIdx + 1})
		if err != nil {
			return nil, fmt.Errorf("ballot: build range paths: %w", err)
		}
		rangeStartPath := rangePaths[rangeIdx]
		rangeEndPath := rangePaths[rangeIdx+1]

		var rseedOut [32]byte
		if _, err := io.ReadFull(rng, rseedOut[:]); err != nil {
			return nil, fmt.Errorf("ballot: read output rseed: %w", err)
		}
		rhoOut := nf // output's rho is its paired input's nullifier (see note/crypto.go)
		outNote := note.NewForRecipient(out.Address.D, out.Value, rhoOut, rseedOut, out.FvkHash)
		cmxOut := outNote.Cmx()

		enc, epk, rcvOut, err := note.EncryptNote(outNote, out.Address, rng)
		if err != nil {
			return nil, fmt.Errorf("ballot: encrypt output note: %w", err)
		}

		rcv, err := field.Random(rng)
		if err != nil {
			return nil, fmt.Errorf("ballot: draw value-commitment trapdoor: %w", err)
		}
		rcvs[i] = rcv
		net := int64(in.Note.Value) - int64(out.Value)
		cvNet := pedersen.Commit(net, rcv)
		cvOut := pedersen.Commit(int64(out.Value), rcvOut)

		cvNetX, cvNetY, err := cvNet.XY()
		if err != nil {
			return nil, fmt.Errorf("ballot: decompress cv_net: %w", err)
		}
		cvOutX, cvOutY, err := cvOut.XY()
		if err != nil {
			return nil, fmt.Errorf("ballot: decompress cv_out: %w", err)
		}

		alpha, err := field.Random(rng)
		if err != nil {
			return nil, fmt.Errorf("ballot: draw spend-authorization randomizer: %w", err)
		}
		askField := in.FVK.AskField()
		rkCommit := merklehash.OwnershipCommit(askField, alpha)

		rsk, err := spendauth.Randomize(spendauth.SigningKey(in.FVK.Ask), alpha)
		if err != nil {
			return nil, fmt.Errorf("ballot: randomize spend-authorization key: %w", err)
		}
		rsks[i] = rsk

		actions[i] = Action{
			CvNet: cvNet,
			CvOut: cvOut,
			Rk:    rkCommit,
			Nf:    nf,
			Cmx:   cmxOut,
			Epk:   epk,
			Enc:   enc,
		}

		domainNf := merklehash.DomainNullifier(nf, params.Domain)

		circuitAssignments[i] = &circuit.BallotActionCircuit{
			CmxRoot:  params.Anchors.Cmx.BigInt(),
			NfRoot:   params.Anchors.Nf.BigInt(),
			Domain:   params.Domain.BigInt(),
			Nf:       nf.BigInt(),
			DomainNf: domainNf.BigInt(),
			CvNetX:   cvNetX,
			CvNetY:   cvNetY,
			CvOutX:   cvOutX,
			CvOutY:   cvOutY,
			CmxOut:   cmxOut.BigInt(),
			RkCommit: rkCommit.BigInt(),

			Diversifier: new(big.Int).SetBytes(in.Note.D[:]),
			Value:       in.Note.Value,
			Rho:         in.Note.Rho.BigInt(),
			Rseed:       new(big.Int).SetBytes(in.Note.Rseed[:]),
			FvkHash:     in.FVK.Hash().BigInt(),

			CmxSiblings: fieldArrayToBigInt(cmxPath.Siblings),
			CmxPathBits: positionBits(in.Position),

			RangeStart:         nfLeaves[rangeIdx].BigInt(),
			RangeEnd:           nfLeaves[rangeIdx+1].BigInt(),
			RangeStartSiblings: fieldArrayToBigInt(rangeStartPath.Siblings),
			RangeStartPathBits: positionBits(rangeIdx),
			RangeEndSiblings:   fieldArrayToBigInt(rangeEndPath.Siblings),
			RangeEndPathBits:   positionBits(rangeIdx + 1),

			DiversifierOut: new(big.Int).SetBytes(out.Address.D[:]),
			ValueOut:       out.Value,
			RhoOut:         rhoOut.BigInt(),
			RseedOut:       new(big.Int).SetBytes(rseedOut[:]),
			FvkHashOut:     out.FvkHash.BigInt(),

			Rcv:    rcv.BigInt(),
			RcvOut: rcvOut.BigInt(),
			Ask:    askField.BigInt(),
			Alpha:  alpha.BigInt(),
		}
	}

	frontendAssignments := make([]frontend.Circuit, len(circuitAssignments))
	for i, a := range circuitAssignments {
		frontendAssignments[i] = a
	}
	proofs, err := circuit.ProveAll(context.Background(), circuit.BallotCircuit, frontendAssignments, params.ProofConcurrency)
	if err != nil {
		return nil, fmt.Errorf("ballot: prove actions: %w", err)
	}

	serializedProofs := make([][]byte, len(proofs))
	for i, p := range proofs {
		b, err := circuit.SerializeProof(p)
		if err != nil {
			return nil, fmt.Errorf("ballot: serialize proof %d: %w", i, err)
		}
		serializedProofs[i] = b
	}

	data := Data{
		Version: Version,
		Domain:  params.Domain,
		Actions: actions,
		Anchors: params.Anchors,
	}
	sighash := data.Sighash()

	witnesses := Witnesses{Proofs: serializedProofs}
	if params.SignatureRequired {
		witnesses.SpAuthVerifyingKeys = make([][]byte, len(inputs))
		witnesses.SpSignatures = make([]spendauth.Signature, len(inputs))
		for i, rsk := range rsks {
			vk, err := spendauth.VerifyingKey(rsk)
			if err != nil {
				return nil, fmt.Errorf("ballot: spend-authorization verifying key: %w", err)
			}
			sig, err := spendauth.Sign(rsk, sighash)
			if err != nil {
				return nil, fmt.Errorf("ballot: spend-authorization signature: %w", err)
			}
			witnesses.SpAuthVerifyingKeys[i] = vk
			witnesses.SpSignatures[i] = sig
		}
	}

	// total_cv = Σ cv_net = Commit(Σ net_i, Σ rcv_i); a balanced ballot has
	// Σ net_i = 0, so total_cv = (Σ rcv_i)*H and signing with bindingScalar
	// against the Schnorr base H produces a signature the validator's own
	// recomputed total_cv verifies against — without the validator ever
	// trusting a verifying key this builder supplies (spec §4.F step 3; see
	// ballot.Validate).
	bindingScalar := spendauth.AggregateScalars(rcvs)
	bindingSig, err := pedersen.Sign(bindingScalar, sighash)
	if err != nil {
		return nil, fmt.Errorf("ballot: binding signature: %w", err)
	}
	witnesses.BindingSignature = bindingSig

	return &Ballot{Data: data, Witnesses: witnesses}, nil
}

func fieldArrayToBigInt(arr [config.Depth]field.Element) [config.Depth]frontend.Variable {
	var out [config.Depth]frontend.Variable
	for i, e := range arr {
		out[i] = e.BigInt()
	}
	return out
}

func positionBits(position uint64) [config.Depth]frontend.Variable {
	var out [config.Depth]frontend.Variable
	for i := 0; i < config.Depth; i++ {
		out[i] = big.NewInt(int64((position >> uint(i)) & 1))
	}
	return out
}
