package election

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/note"
)

// wireCandidate is one candidate's JSON wire shape: the payout address's
// diversifier and pkd hex-encoded, matching ballot/wire.go's hex-fielded
// convention for the rest of this repo's wire forms (spec §6).
type wireCandidate struct {
	Diversifier string `json:"diversifier"`
	Pkd         string `json:"pkd"`
	Choice      uint32 `json:"choice"`
}

type wireElection struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	StartHeight       uint64          `json:"start_height"`
	EndHeight         uint64          `json:"end_height"`
	Question          string          `json:"question"`
	Candidates        []wireCandidate `json:"candidates"`
	SignatureRequired bool            `json:"signature_required"`
	CmxRoot           string          `json:"cmx_root"`
	NfRoot            string          `json:"nf_root"`
	CmxFrontier       string          `json:"cmx_frontier,omitempty"`
}

// MarshalJSON encodes e in the hex-fielded wire form the CLI's --election
// flag reads and writes (spec §6: "byte fields in hex when textual").
func (e Election) MarshalJSON() ([]byte, error) {
	w := wireElection{
		ID:                e.ID,
		Name:              e.Name,
		StartHeight:       e.StartHeight,
		EndHeight:         e.EndHeight,
		Question:          e.Question,
		SignatureRequired: e.SignatureRequired,
		CmxRoot:           hexField(e.CmxRoot),
		NfRoot:            hexField(e.NfRoot),
	}
	if len(e.CmxFrontier) > 0 {
		w.CmxFrontier = hex.EncodeToString(e.CmxFrontier)
	}
	w.Candidates = make([]wireCandidate, len(e.Candidates))
	for i, c := range e.Candidates {
		w.Candidates[i] = wireCandidate{
			Diversifier: hex.EncodeToString(c.Address.D[:]),
			Pkd:         hex.EncodeToString(c.Address.Pkd[:]),
			Choice:      c.Choice,
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the hex-fielded wire form back into an Election.
func (e *Election) UnmarshalJSON(data []byte) error {
	var w wireElection
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("election: decode wire form: %w", err)
	}

	cmxRoot, err := decodeField(w.CmxRoot)
	if err != nil {
		return fmt.Errorf("election: cmx_root: %w", err)
	}
	nfRoot, err := decodeField(w.NfRoot)
	if err != nil {
		return fmt.Errorf("election: nf_root: %w", err)
	}

	var frontier []byte
	if w.CmxFrontier != "" {
		frontier, err = hex.DecodeString(w.CmxFrontier)
		if err != nil {
			return fmt.Errorf("election: cmx_frontier: %w", err)
		}
	}

	candidates := make([]CandidateChoice, len(w.Candidates))
	for i, wc := range w.Candidates {
		d, err := hex.DecodeString(wc.Diversifier)
		if err != nil || len(d) != len(note.Diversifier{}) {
			return fmt.Errorf("election: candidate %d diversifier: %w", i, err)
		}
		pkd, err := hex.DecodeString(wc.Pkd)
		if err != nil || len(pkd) != 32 {
			return fmt.Errorf("election: candidate %d pkd: %w", i, err)
		}
		var addr note.Address
		copy(addr.D[:], d)
		copy(addr.Pkd[:], pkd)
		candidates[i] = CandidateChoice{Address: addr, Choice: wc.Choice}
	}

	*e = Election{
		ID:                w.ID,
		Name:              w.Name,
		StartHeight:       w.StartHeight,
		EndHeight:         w.EndHeight,
		Question:          w.Question,
		Candidates:        candidates,
		SignatureRequired: w.SignatureRequired,
		CmxRoot:           cmxRoot,
		NfRoot:            nfRoot,
		CmxFrontier:       frontier,
	}
	return nil
}

func hexField(e field.Element) string {
	b := e.Bytes()
	return hex.EncodeToString(b[:])
}

func decodeField(s string) (field.Element, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return field.Element{}, fmt.Errorf("decode hex field: %w", err)
	}
	return field.FromLEBytes(b)
}
