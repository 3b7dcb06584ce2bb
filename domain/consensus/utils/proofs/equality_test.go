package proofs

import (
	"context"
	"testing"

	"github.com/gtank/ristretto255"
)

func scalarFromUint64(v uint64) *ristretto255.Scalar {
	var buf [64]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	return ristretto255.NewScalar().FromUniformBytes(buf[:])
}

func commit(v, r *ristretto255.Scalar) *ristretto255.Element {
	return ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(v, basepointG),
		ristretto255.NewElement().ScalarMult(r, basepointH),
	)
}

func TestEqualityProofVerifiesForEqualValues(t *testing.T) {
	v := scalarFromUint64(42)
	r1 := randomScalar()
	r2 := randomScalar()

	c1 := commit(v, r1)
	c2 := commit(v, r2)

	proof := ProveEquality(v, r1, r2)
	if err := proof.Verify(c1, c2); err != nil {
		t.Errorf("Verify failed for a genuinely equal pair of commitments: %v", err)
	}
}

func TestEqualityProofRejectsUnequalValues(t *testing.T) {
	v1 := scalarFromUint64(42)
	v2 := scalarFromUint64(43)
	r1 := randomScalar()
	r2 := randomScalar()

	c1 := commit(v1, r1)
	c2 := commit(v2, r2)

	// ProveEquality is called with v1 as the shared opening, which does
	// not actually match c2's committed value v2 — the proof must fail.
	proof := ProveEquality(v1, r1, r2)
	if err := proof.Verify(c1, c2); err == nil {
		t.Errorf("Verify should fail when the commitments open to different values")
	}
}

func TestEqualityProofEncodeDecodeRoundTrip(t *testing.T) {
	v := scalarFromUint64(7)
	r1 := randomScalar()
	r2 := randomScalar()
	c1 := commit(v, r1)
	c2 := commit(v, r2)

	proof := ProveEquality(v, r1, r2)
	encoded := proof.Encode()
	if len(encoded) != 160 {
		t.Fatalf("Encode produced %d bytes, want 160", len(encoded))
	}

	decoded, err := DecodeEqualityProof(encoded)
	if err != nil {
		t.Fatalf("DecodeEqualityProof failed: %v", err)
	}
	if err := decoded.Verify(c1, c2); err != nil {
		t.Errorf("decoded proof failed to verify: %v", err)
	}
}

func TestDecodeEqualityProofRejectsWrongLength(t *testing.T) {
	if _, err := DecodeEqualityProof(make([]byte, 159)); err == nil {
		t.Errorf("DecodeEqualityProof should reject a truncated encoding")
	}
}

func TestBatchVerifierDischargesMultipleValidProofs(t *testing.T) {
	bv := NewBatchVerifier()

	for i := 0; i < 5; i++ {
		v := scalarFromUint64(uint64(i))
		r1 := randomScalar()
		r2 := randomScalar()
		c1 := commit(v, r1)
		c2 := commit(v, r2)
		proof := ProveEquality(v, r1, r2)
		proof.AddToBatch(bv, c1, c2)
	}

	if bv.Len() != 10 {
		t.Fatalf("expected 10 queued equations (2 per proof), got %d", bv.Len())
	}
	if err := bv.Discharge(context.Background()); err != nil {
		t.Errorf("Discharge failed for a batch of valid proofs: %v", err)
	}
}

func TestBatchVerifierDetectsForgedEquation(t *testing.T) {
	bv := NewBatchVerifier()
	bv.AddEquation(basepointG, basepointH) // G != H, a forged equation
	if err := bv.Discharge(context.Background()); err == nil {
		t.Errorf("Discharge should fail when a queued equation is forged")
	}
}
