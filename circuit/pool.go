package circuit

import (
	"context"

	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/sync/errgroup"
)

// ProveAll proves every assignment for circuit c concurrently, capped at
// limit simultaneous provers (0 means no cap). Path building, proving, and
// verifying are pure functions of immutable inputs and are freely
// parallelizable across actions and across ballots (spec §5). The first
// error aborts the remaining work and is returned; on success the i-th
// result corresponds to the i-th assignment.
func ProveAll(ctx context.Context, c Circuit, assignments []frontend.Circuit, limit int) ([]plonk.Proof, error) {
	proofs := make([]plonk.Proof, len(assignments))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, a := range assignments {
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			proof, _, err := Prove(c, a)
			if err != nil {
				return err
			}
			proofs[i] = proof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return proofs, nil
}

// VerifyAll verifies every (proof, publicAssignment) pair concurrently. It
// does NOT short-circuit on the first failure — the validator evaluates
// every action's proof independently for observability (spec §7: "Validator
// evaluates all proofs independently ... aggregates into a single
// failure") — and returns one error per failing index, aggregated by the
// caller.
func VerifyAll(ctx context.Context, c Circuit, proofs []plonk.Proof, publicAssignments []frontend.Circuit) []error {
	errs := make([]error, len(proofs))
	var wg errgroup.Group
	for i := range proofs {
		i := i
		wg.Go(func() error {
			errs[i] = Verify(c, proofs[i], publicAssignments[i])
			return nil
		})
	}
	_ = wg.Wait()
	return errs
}
