package proofs

import (
	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// ShieldCommitmentProof proves knowledge of randomness r consistent
// across a shield/unshield payload's commitment and decrypt handle, for
// a publicly revealed amount:
//
//	commitment - amount*G = r*H
//	handle                = r*publicKey
//
// The amount is public on both shield (plain -> private) and unshield
// (private -> plain) payloads, so only r is hidden.
type ShieldCommitmentProof struct {
	R1, R2 *ristretto255.Element
	Z      *ristretto255.Scalar
}

// ProveShieldCommitment is exposed for tests and wallet-side tooling.
func ProveShieldCommitment(r *ristretto255.Scalar, publicKey *ristretto255.Element) *ShieldCommitmentProof {
	rho := randomScalar()
	r1 := ristretto255.NewElement().ScalarMult(rho, basepointH)
	r2 := ristretto255.NewElement().ScalarMult(rho, publicKey)

	transcript := newTranscript("tos-shield-commitment")
	appendElement(transcript, "r1", r1)
	appendElement(transcript, "r2", r2)
	c := challenge(transcript)

	z := ristretto255.NewScalar().Add(rho, ristretto255.NewScalar().Multiply(c, r))
	return &ShieldCommitmentProof{R1: r1, R2: r2, Z: z}
}

// Encode serializes the proof as R1 || R2 || Z, 96 bytes.
func (p *ShieldCommitmentProof) Encode() []byte {
	out := make([]byte, 0, 96)
	out = p.R1.Encode(out)
	out = p.R2.Encode(out)
	out = p.Z.Encode(out)
	return out
}

// DecodeShieldCommitmentProof parses a proof previously produced by
// Encode.
func DecodeShieldCommitmentProof(data []byte) (*ShieldCommitmentProof, error) {
	if len(data) != 96 {
		return nil, errors.Errorf("proofs: shield commitment proof must be 96 bytes, got %d", len(data))
	}
	p := &ShieldCommitmentProof{}
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
	if chunk, _, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Z, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	return p, nil
}

// amountBasisElement computes commitment - amount*G, the public value
// the proof shows equals r*H for the same r as handle = r*publicKey.
func amountBasisElement(commitment *ristretto255.Element, amount uint64) *ristretto255.Element {
	amountScalar := scalarFromUint64(amount)
	return ristretto255.NewElement().Subtract(commitment, ristretto255.NewElement().ScalarMult(amountScalar, basepointG))
}

func scalarFromUint64(v uint64) *ristretto255.Scalar {
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(buf[:]); err != nil {
		panic("proofs: failed to decode uint64 scalar: " + err.Error())
	}
	return s
}

func (p *ShieldCommitmentProof) equations(commitment, handle, publicKey *ristretto255.Element, amount uint64) [][2]*ristretto255.Element {
	transcript := newTranscript("tos-shield-commitment")
	appendElement(transcript, "r1", p.R1)
	appendElement(transcript, "r2", p.R2)
	c := challenge(transcript)

	target := amountBasisElement(commitment, amount)

	lhs1 := ristretto255.NewElement().ScalarMult(p.Z, basepointH)
	rhs1 := ristretto255.NewElement().Add(p.R1, ristretto255.NewElement().ScalarMult(c, target))

	lhs2 := ristretto255.NewElement().ScalarMult(p.Z, publicKey)
	rhs2 := ristretto255.NewElement().Add(p.R2, ristretto255.NewElement().ScalarMult(c, handle))

	return [][2]*ristretto255.Element{{lhs1, rhs1}, {lhs2, rhs2}}
}

// Verify checks the proof immediately (no batching).
func (p *ShieldCommitmentProof) Verify(commitment, handle, publicKey *ristretto255.Element, amount uint64) error {
	for _, eq := range p.equations(commitment, handle, publicKey, amount) {
		if eq[0].Equal(eq[1]) != 1 {
			return errors.New("proofs: shield commitment proof failed to verify")
		}
	}
	return nil
}

// AddToBatch queues this proof's verification equations onto bv.
func (p *ShieldCommitmentProof) AddToBatch(bv *BatchVerifier, commitment, handle, publicKey *ristretto255.Element, amount uint64) {
	for _, eq := range p.equations(commitment, handle, publicKey, amount) {
		bv.AddEquation(eq[0], eq[1])
	}
}
