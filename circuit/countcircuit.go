package circuit

import (
	"github.com/consensys/gnark/frontend"
)

// CountRevealCircuit proves that a publicly revealed per-candidate tally
// T_k matches a commitment S_k published earlier (and therefore fixed)
// without revealing the blinding factor R_k used to build S_k until reveal
// time (spec §4.G: "Tallier ... reveal T_k with S_k = Commit(T_k, R_k)").
// S_k is itself the homomorphic sum of every accepted ballot's cv_out
// (see tally/tally.go), so this is the same ecCommitGadget the ballot
// circuit uses for cv_net/cv_out, not a distinct scheme.
type CountRevealCircuit struct {
	CommitmentX frontend.Variable `gnark:",public"`
	CommitmentY frontend.Variable `gnark:",public"`
	Tally       frontend.Variable `gnark:",public"`

	Blind frontend.Variable
}

func (c *CountRevealCircuit) Define(api frontend.API) error {
	x, y, err := ecCommitGadget(api, c.Tally, c.Blind)
	if err != nil {
		return err
	}
	api.AssertIsEqual(x, c.CommitmentX)
	api.AssertIsEqual(y, c.CommitmentY)
	return nil
}
