package ballot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/pedersen"
	"github.com/hhanh00/shielded-vote/spendauth"
)

// wireAction is one action's JSON wire shape: every fixed-size byte field
// hex-encoded, matching spec §6's "ballot wire form... byte fields in hex
// when textual". CvOut extends spec §3's action fields with the
// output-value commitment the tally authority accumulates per candidate
// (spec §4.G); it is appended here after Enc in the struct literal to
// mirror Data.Encode's append-at-the-end placement, even though JSON field
// order carries no sighash significance.
type wireAction struct {
	CvNet string `json:"cv_net"`
	Rk    string `json:"rk"`
	Nf    string `json:"nf"`
	Cmx   string `json:"cmx"`
	Epk   string `json:"epk"`
	Enc   string `json:"enc"`
	CvOut string `json:"cv_out"`
}

type wireAnchors struct {
	Cmx string `json:"cmx_root"`
	Nf  string `json:"nf_root"`
}

type wireData struct {
	Version uint32       `json:"version"`
	Domain  string       `json:"domain"`
	Actions []wireAction `json:"actions"`
	Anchors wireAnchors  `json:"anchors"`
}

type wireSignature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

// wireBindingSignature is the binding signature's own wire shape, distinct
// from wireSignature: pedersen.Signature has no recovery byte (it is
// always verified against an explicit public key — the validator's own
// recomputed total_cv — never a recovered one), so there is no `v` field.
type wireBindingSignature struct {
	R string `json:"r"`
	S string `json:"s"`
}

// wireWitnesses no longer carries a binding_verifying_key: spec §4.F step 3
// requires the validator to recompute that key itself by summing the
// ballot's own cv_net commitments, so trusting one supplied here would
// reopen the value-minting hole the binding signature exists to close.
type wireWitnesses struct {
	Proofs              []string             `json:"proofs"`
	SpAuthVerifyingKeys []string             `json:"sp_auth_verifying_keys,omitempty"`
	SpSignatures        []wireSignature      `json:"sp_signatures,omitempty"`
	BindingSignature    wireBindingSignature `json:"binding_signature"`
}

type wireBallot struct {
	Data      wireData      `json:"data"`
	Witnesses wireWitnesses `json:"witnesses"`
}

func hexOf(b []byte) string { return hex.EncodeToString(b) }

func hexField(e field.Element) string {
	b := e.Bytes()
	return hexOf(b[:])
}

func decodeField(s string) (field.Element, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return field.Element{}, fmt.Errorf("ballot: decode hex field: %w", err)
	}
	return field.FromLEBytes(b)
}

func hexCommitment(c pedersen.Commitment) string {
	b := c.Bytes()
	return hexOf(b[:])
}

func decodeCommitment(s string) (pedersen.Commitment, error) {
	b, err := decodeFixed(s, 32)
	if err != nil {
		return pedersen.Commitment{}, fmt.Errorf("decode commitment: %w", err)
	}
	var c pedersen.Commitment
	copy(c[:], b)
	return c, nil
}

func decodeSignature(ws wireSignature) (spendauth.Signature, error) {
	var sig spendauth.Signature
	r, err := decodeFixed(ws.R, 32)
	if err != nil {
		return sig, fmt.Errorf("r: %w", err)
	}
	s, err := decodeFixed(ws.S, 32)
	if err != nil {
		return sig, fmt.Errorf("s: %w", err)
	}
	copy(sig.R[:], r)
	copy(sig.S[:], s)
	sig.V = ws.V
	return sig, nil
}

func decodeBindingSignature(ws wireBindingSignature) (pedersen.Signature, error) {
	var sig pedersen.Signature
	r, err := decodeFixed(ws.R, 32)
	if err != nil {
		return sig, fmt.Errorf("r: %w", err)
	}
	s, err := decodeFixed(ws.S, 32)
	if err != nil {
		return sig, fmt.Errorf("s: %w", err)
	}
	copy(sig.R[:], r)
	copy(sig.S[:], s)
	return sig, nil
}

func decodeFixed(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ballot: decode hex bytes: %w", err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("ballot: expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// MarshalJSON encodes b in the hex-fielded wire form (spec §6).
func (b Ballot) MarshalJSON() ([]byte, error) {
	w := wireBallot{
		Data: wireData{
			Version: b.Data.Version,
			Domain:  hexField(b.Data.Domain),
			Anchors: wireAnchors{
				Cmx: hexField(b.Data.Anchors.Cmx),
				Nf:  hexField(b.Data.Anchors.Nf),
			},
		},
		Witnesses: wireWitnesses{
			BindingSignature: wireBindingSignature{
				R: hexOf(b.Witnesses.BindingSignature.R[:]),
				S: hexOf(b.Witnesses.BindingSignature.S[:]),
			},
		},
	}

	w.Data.Actions = make([]wireAction, len(b.Data.Actions))
	for i, a := range b.Data.Actions {
		w.Data.Actions[i] = wireAction{
			CvNet: hexCommitment(a.CvNet),
			Rk:    hexField(a.Rk),
			Nf:    hexField(a.Nf),
			Cmx:   hexField(a.Cmx),
			Epk:   hexOf(a.Epk[:]),
			Enc:   hexOf(a.Enc[:]),
			CvOut: hexCommitment(a.CvOut),
		}
	}

	w.Witnesses.Proofs = make([]string, len(b.Witnesses.Proofs))
	for i, p := range b.Witnesses.Proofs {
		w.Witnesses.Proofs[i] = hexOf(p)
	}

	if len(b.Witnesses.SpSignatures) > 0 {
		w.Witnesses.SpAuthVerifyingKeys = make([]string, len(b.Witnesses.SpAuthVerifyingKeys))
		for i, k := range b.Witnesses.SpAuthVerifyingKeys {
			w.Witnesses.SpAuthVerifyingKeys[i] = hexOf(k)
		}
		w.Witnesses.SpSignatures = make([]wireSignature, len(b.Witnesses.SpSignatures))
		for i, s := range b.Witnesses.SpSignatures {
			w.Witnesses.SpSignatures[i] = wireSignature{R: hexOf(s.R[:]), S: hexOf(s.S[:]), V: s.V}
		}
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes the hex-fielded wire form back into a Ballot.
func (b *Ballot) UnmarshalJSON(data []byte) error {
	var w wireBallot
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ballot: decode wire form: %w", err)
	}

	domain, err := decodeField(w.Data.Domain)
	if err != nil {
		return err
	}
	cmxRoot, err := decodeField(w.Data.Anchors.Cmx)
	if err != nil {
		return err
	}
	nfRoot, err := decodeField(w.Data.Anchors.Nf)
	if err != nil {
		return err
	}

	actions := make([]Action, len(w.Data.Actions))
	for i, wa := range w.Data.Actions {
		cvNet, err := decodeCommitment(wa.CvNet)
		if err != nil {
			return fmt.Errorf("ballot: action %d cv_net: %w", i, err)
		}
		rk, err := decodeField(wa.Rk)
		if err != nil {
			return fmt.Errorf("ballot: action %d rk: %w", i, err)
		}
		nf, err := decodeField(wa.Nf)
		if err != nil {
			return fmt.Errorf("ballot: action %d nf: %w", i, err)
		}
		cmx, err := decodeField(wa.Cmx)
		if err != nil {
			return fmt.Errorf("ballot: action %d cmx: %w", i, err)
		}
		epk, err := decodeFixed(wa.Epk, 32)
		if err != nil {
			return fmt.Errorf("ballot: action %d epk: %w", i, err)
		}
		enc, err := decodeFixed(wa.Enc, config.CiphertextSize)
		if err != nil {
			return fmt.Errorf("ballot: action %d enc: %w", i, err)
		}
		cvOut, err := decodeCommitment(wa.CvOut)
		if err != nil {
			return fmt.Errorf("ballot: action %d cv_out: %w", i, err)
		}
		var action Action
		action.CvNet = cvNet
		action.Rk = rk
		action.Nf = nf
		action.Cmx = cmx
		copy(action.Epk[:], epk)
		copy(action.Enc[:], enc)
		action.CvOut = cvOut
		actions[i] = action
	}

	proofs := make([][]byte, len(w.Witnesses.Proofs))
	for i, p := range w.Witnesses.Proofs {
		raw, err := hex.DecodeString(p)
		if err != nil {
			return fmt.Errorf("ballot: proof %d: %w", i, err)
		}
		proofs[i] = raw
	}

	bindingSig, err := decodeBindingSignature(w.Witnesses.BindingSignature)
	if err != nil {
		return fmt.Errorf("ballot: binding signature: %w", err)
	}

	witnesses := Witnesses{
		Proofs:           proofs,
		BindingSignature: bindingSig,
	}

	if len(w.Witnesses.SpSignatures) > 0 {
		witnesses.SpAuthVerifyingKeys = make([][]byte, len(w.Witnesses.SpAuthVerifyingKeys))
		for i, k := range w.Witnesses.SpAuthVerifyingKeys {
			raw, err := hex.DecodeString(k)
			if err != nil {
				return fmt.Errorf("ballot: spend-auth verifying key %d: %w", i, err)
			}
			witnesses.SpAuthVerifyingKeys[i] = raw
		}
		witnesses.SpSignatures = make([]spendauth.Signature, len(w.Witnesses.SpSignatures))
		for i, ws := range w.Witnesses.SpSignatures {
			sig, err := decodeSignature(ws)
			if err != nil {
				return fmt.Errorf("ballot: spend-auth signature %d: %w", i, err)
			}
			witnesses.SpSignatures[i] = sig
		}
	}

	b.Data = Data{
		Version: w.Data.Version,
		Domain:  domain,
		Actions: actions,
		Anchors: Anchors{Cmx: cmxRoot, Nf: nfRoot},
	}
	b.Witnesses = witnesses
	return nil
}
