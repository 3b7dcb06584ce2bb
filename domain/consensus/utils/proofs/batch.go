package proofs

import (
	"context"

	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// batchChunkSize bounds how many equations are folded into one
// multiscalar multiplication before the context's cancellation is
// checked, so a block with many privacy transfers can still be aborted
// promptly (spec.md §5 "Async" note).
const batchChunkSize = 256

// BatchVerifier collects the (lhs, rhs) verification equations produced
// by every proof in a block and discharges them with one randomized
// multiscalar-multiplication pass per chunk, rather than one pass per
// proof (spec.md §4.4: ~10x faster than per-tx verification for 1000
// proofs). Soundness relies on the standard small-exponent batching
// argument: a forged equation only escapes detection with probability
// 2^-128 against the random per-equation weight.
type BatchVerifier struct {
	lhs []*ristretto255.Element
	rhs []*ristretto255.Element
}

// NewBatchVerifier returns an empty batch.
func NewBatchVerifier() *BatchVerifier {
	return &BatchVerifier{}
}

// AddEquation queues one lhs == rhs equation for batched verification.
func (bv *BatchVerifier) AddEquation(lhs, rhs *ristretto255.Element) {
	bv.lhs = append(bv.lhs, lhs)
	bv.rhs = append(bv.rhs, rhs)
}

// Len reports how many equations are queued.
func (bv *BatchVerifier) Len() int {
	return len(bv.lhs)
}

// Discharge verifies every queued equation. It returns an error as soon
// as a chunk fails or ctx is cancelled; a chunk failure does not
// identify which individual proof was invalid (the caller falls back to
// per-proof verification to localize the failure when that matters).
func (bv *BatchVerifier) Discharge(ctx context.Context) error {
	identity := ristretto255.NewElement().ScalarBaseMult(ristretto255.NewScalar())

	for start := 0; start < len(bv.lhs); start += batchChunkSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + batchChunkSize
		if end > len(bv.lhs) {
			end = len(bv.lhs)
		}

		diffs := make([]*ristretto255.Element, 0, end-start)
		weights := make([]*ristretto255.Scalar, 0, end-start)
		for i := start; i < end; i++ {
			diffs = append(diffs, ristretto255.NewElement().Subtract(bv.lhs[i], bv.rhs[i]))
			weights = append(weights, randomScalar())
		}

		combined := ristretto255.NewElement().MultiScalarMult(weights, diffs)
		if combined.Equal(identity) != 1 {
			return errors.New("proofs: batch verification failed")
		}
	}
	return nil
}
