package ballot

import "fmt"

// Error kinds a builder or validator surfaces, matching spec §7's
// taxonomy: input validation, protocol violation, cryptographic failure,
// and corruption. Each is a sentinel wrapped with fmt.Errorf so callers
// can still match with errors.Is while getting a human-readable message,
// the teacher's plain-error style rather than a custom hierarchy.
var (
	// ErrValueImbalance is returned when a ballot's input notes don't sum
	// to its candidate weights (spec §4.E: "InvalidBallot(\"Notes do not
	// match Votes\")").
	ErrValueImbalance = fmt.Errorf("ballot: input notes do not match votes")

	// ErrOutOfRange is returned when a requested note position falls
	// outside the snapshot's commitment tree (spec §4.E: "OutOfRange").
	ErrOutOfRange = fmt.Errorf("ballot: position out of range")

	// ErrDoubleNullifier is returned when an input note's nullifier is
	// already spent in the snapshot (spec §4.E: "DoubleNullifier(hex)"),
	// or when a validated ballot's domain-nullifier collides with one
	// already accepted (spec §3: "uniqueness across accepted ballots").
	ErrDoubleNullifier = fmt.Errorf("ballot: nullifier already spent")

	// ErrMissingSignature is returned when election.SignatureRequired is
	// set but a ballot carries no spend-authorization signatures (spec
	// §4.F step 2: "Absence when election.signature_required is a hard
	// failure").
	ErrMissingSignature = fmt.Errorf("ballot: spend-authorization signature required")

	// ErrInvalidSignature covers both a failing spend-authorization
	// signature and a failing binding signature (spec §7: "invalid
	// signature").
	ErrInvalidSignature = fmt.Errorf("ballot: signature verification failed")

	// ErrInvalidProof is returned when a per-action ZK proof fails to
	// verify (spec §7: "invalid ZK proof").
	ErrInvalidProof = fmt.Errorf("ballot: proof verification failed")

	// ErrBadAnchor is returned when a ballot's anchors don't byte-exactly
	// match the election's (spec §4.F step 5).
	ErrBadAnchor = fmt.Errorf("ballot: anchor mismatch")

	// ErrActionArityMismatch is returned when Build is given more outputs
	// than inputs (spec §4.E step 1), or when a ballot's proof count does
	// not match its action count.
	ErrActionArityMismatch = fmt.Errorf("ballot: input/output action count mismatch")

	// ErrBadDomain is returned when a ballot's Domain doesn't match the
	// election being validated against (spec §4.F step 4, GLOSSARY
	// "Domain"): a ballot proved valid for one election's domain must not
	// be accepted as if it were cast in another.
	ErrBadDomain = fmt.Errorf("ballot: domain mismatch")
)
