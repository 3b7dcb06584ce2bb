package proofs

import "github.com/pkg/errors"

// CommitmentEqProof is the predecessor of EqualityProof: a single-basis
// discrete-log equality proof that bound a commitment to a balance
// directly rather than via the two-commitment construction EqualityProof
// uses. Kept callable but unused behind EnableLegacyCommitmentEq (Open
// Question 1) — original_source/common/src/crypto/proofs/commitment_eq.rs
// carries the equivalent type with the same "stub for compilation, not
// used" status.
type CommitmentEqProof struct {
	Data []byte
}

// Verify always fails unless EnableLegacyCommitmentEq is set, so a stray
// call path can never silently accept a legacy proof.
func (p *CommitmentEqProof) Verify() error {
	if !EnableLegacyCommitmentEq {
		return errors.New("proofs: legacy commitment-equality proof is disabled")
	}
	return nil
}
