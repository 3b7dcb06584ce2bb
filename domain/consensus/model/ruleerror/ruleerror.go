// Package ruleerror defines the closed set of deterministic-rejection
// errors a transaction or block can fail with (spec.md §4.4, §7). Two
// honest nodes given the same state must reach the same verdict, so
// every member here is a plain typed value with no clock, randomness,
// or host-dependent state baked in.
package ruleerror

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// StructuralError covers malformed version/chain-id/payload shape.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string { return "structural error: " + e.Reason }

// BadSignature reports a transaction whose signature doesn't verify
// under its claimed source public key.
type BadSignature struct{}

func (e *BadSignature) Error() string { return "signature does not verify" }

// NonceMismatch reports a transaction whose nonce doesn't match the
// sender's current stored nonce.
type NonceMismatch struct {
	Expected uint64
	Got      uint64
}

func (e *NonceMismatch) Error() string {
	return "nonce mismatch: expected " + uitoa(e.Expected) + ", got " + uitoa(e.Got)
}

// ReferenceStale reports a reference block that is not on the selected
// parent chain within the bounded replay-protection depth.
type ReferenceStale struct{}

func (e *ReferenceStale) Error() string { return "reference block is stale or not on selected chain" }

// InsufficientBalance reports a sender unable to cover fee+outputs in
// the named asset.
type InsufficientBalance struct {
	Asset  *externalapi.DomainHash
	Needed uint64
	Have   uint64
}

func (e *InsufficientBalance) Error() string {
	return "insufficient balance: needed " + uitoa(e.Needed) + ", have " + uitoa(e.Have)
}

// ProofInvalid reports a failed zero-knowledge proof verification, kind
// naming which proof (e.g. "ciphertext-validity", "equality", "shield").
type ProofInvalid struct {
	Kind string
}

func (e *ProofInvalid) Error() string { return "invalid proof: " + e.Kind }

// QueueFull reports an energy unfreeze queue already at MaxUnfreezeQueue.
type QueueFull struct{}

func (e *QueueFull) Error() string { return "unfreeze queue full" }

// ContractTrap reports a VM-level failure during contract execution.
type ContractTrap struct {
	Reason string
}

func (e *ContractTrap) Error() string { return "contract trap: " + e.Reason }

// PolicyViolation covers every other named consensus-rule violation not
// given its own type (lock-period bounds, committee threshold, negative
// delegation deltas, and similar).
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string { return "policy violation: " + e.Reason }

// ReorgDepthExceeded reports a reorg whose fork point is below
// pruned_topoheight + PruneSafetyLimit (spec.md §4.7 "Safety").
type ReorgDepthExceeded struct{}

func (e *ReorgDepthExceeded) Error() string { return "reorg depth exceeds prune safety limit" }

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
