package proofs

import (
	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// EqualityProof proves two Pedersen commitments open to the same value
// under independent randomness:
//
//	c1 = v*G + r1*H
//	c2 = v*G + r2*H
//
// Used to bind a privacy transfer's SourceCommitment (the sender's
// claimed post-transfer balance) to the same value the sender's tracked
// ElGamal balance ciphertext encrypts, without revealing v, r1, or r2.
type EqualityProof struct {
	R1, R2     *ristretto255.Element
	Zv, Z1, Z2 *ristretto255.Scalar
}

// ProveEquality is exposed for tests and wallet-side tooling.
func ProveEquality(v, r1, r2 *ristretto255.Scalar) *EqualityProof {
	rhoV, rho1, rho2 := randomScalar(), randomScalar(), randomScalar()

	rr1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(rhoV, basepointG),
		ristretto255.NewElement().ScalarMult(rho1, basepointH),
	)
	rr2 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(rhoV, basepointG),
		ristretto255.NewElement().ScalarMult(rho2, basepointH),
	)

	c1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(v, basepointG),
		ristretto255.NewElement().ScalarMult(r1, basepointH),
	)
	c2 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(v, basepointG),
		ristretto255.NewElement().ScalarMult(r2, basepointH),
	)

	transcript := newTranscript("tos-commitment-equality")
	appendElement(transcript, "c1", c1)
	appendElement(transcript, "c2", c2)
	appendElement(transcript, "r1", rr1)
	appendElement(transcript, "r2", rr2)
	c := challenge(transcript)

	zv := ristretto255.NewScalar().Add(rhoV, ristretto255.NewScalar().Multiply(c, v))
	z1 := ristretto255.NewScalar().Add(rho1, ristretto255.NewScalar().Multiply(c, r1))
	z2 := ristretto255.NewScalar().Add(rho2, ristretto255.NewScalar().Multiply(c, r2))

	return &EqualityProof{R1: rr1, R2: rr2, Zv: zv, Z1: z1, Z2: z2}
}

// Encode serializes the proof as R1 || R2 || Zv || Z1 || Z2, 160 bytes.
func (p *EqualityProof) Encode() []byte {
	out := make([]byte, 0, 160)
	out = p.R1.Encode(out)
	out = p.R2.Encode(out)
	out = p.Zv.Encode(out)
	out = p.Z1.Encode(out)
	out = p.Z2.Encode(out)
	return out
}

// DecodeEqualityProof parses a proof previously produced by Encode.
func DecodeEqualityProof(data []byte) (*EqualityProof, error) {
	if len(data) != 160 {
		return nil, errors.Errorf("proofs: equality proof must be 160 bytes, got %d", len(data))
	}
	p := &EqualityProof{}
	var offset int
	var chunk []byte
	var err error

	if chunk, offset, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.R1, err = decodeElement(chunk); err != nil {
		return nil, err
	}
	if chunk, offset, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.R2, err = decodeElement(chunk); err != nil {
		return nil, err
	}
	if chunk, offset, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Zv, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	if chunk, offset, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Z1, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	if chunk, _, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Z2, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *EqualityProof) equations(c1, c2 *ristretto255.Element) [][2]*ristretto255.Element {
	transcript := newTranscript("tos-commitment-equality")
	appendElement(transcript, "c1", c1)
	appendElement(transcript, "c2", c2)
	appendElement(transcript, "r1", p.R1)
	appendElement(transcript, "r2", p.R2)
	c := challenge(transcript)

	lhs1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(p.Zv, basepointG),
		ristretto255.NewElement().ScalarMult(p.Z1, basepointH),
	)
	rhs1 := ristretto255.NewElement().Add(p.R1, ristretto255.NewElement().ScalarMult(c, c1))

	lhs2 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(p.Zv, basepointG),
		ristretto255.NewElement().ScalarMult(p.Z2, basepointH),
	)
	rhs2 := ristretto255.NewElement().Add(p.R2, ristretto255.NewElement().ScalarMult(c, c2))

	return [][2]*ristretto255.Element{{lhs1, rhs1}, {lhs2, rhs2}}
}

// Verify checks the proof immediately (no batching).
func (p *EqualityProof) Verify(c1, c2 *ristretto255.Element) error {
	for _, eq := range p.equations(c1, c2) {
		if eq[0].Equal(eq[1]) != 1 {
			return errors.New("proofs: equality proof failed to verify")
		}
	}
	return nil
}

// AddToBatch queues this proof's verification equations onto bv.
func (p *EqualityProof) AddToBatch(bv *BatchVerifier, c1, c2 *ristretto255.Element) {
	for _, eq := range p.equations(c1, c2) {
		bv.AddEquation(eq[0], eq[1])
	}
}
