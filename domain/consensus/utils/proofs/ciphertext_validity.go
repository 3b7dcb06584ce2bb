package proofs

import (
	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// CiphertextValidityProof proves knowledge of (amount, r) such that a
// transfer's Pedersen commitment and both decrypt handles were derived
// from the same (amount, r) pair:
//
//	commitment     = amount*G + r*H
//	senderHandle   = r*senderPublicKey
//	receiverHandle = r*receiverPublicKey
//
// Grounded on original_source/common/src/crypto/proofs/commitment_eq.rs's
// compound-statement Sigma protocol, generalized here to three linear
// relations sharing two witnesses instead of one.
type CiphertextValidityProof struct {
	R1, R2, R3 *ristretto255.Element
	Za, Zr     *ristretto255.Scalar
}

// ProveCiphertextValidity is exposed for tests and wallet-side tooling
// that must produce proofs this package verifies.
func ProveCiphertextValidity(amount, r *ristretto255.Scalar, senderPublicKey, receiverPublicKey *ristretto255.Element) *CiphertextValidityProof {
	rhoA, rhoR := randomScalar(), randomScalar()

	r1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(rhoA, basepointG),
		ristretto255.NewElement().ScalarMult(rhoR, basepointH),
	)
	r2 := ristretto255.NewElement().ScalarMult(rhoR, senderPublicKey)
	r3 := ristretto255.NewElement().ScalarMult(rhoR, receiverPublicKey)

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(amount, basepointG),
		ristretto255.NewElement().ScalarMult(r, basepointH),
	)
	senderHandle := ristretto255.NewElement().ScalarMult(r, senderPublicKey)
	receiverHandle := ristretto255.NewElement().ScalarMult(r, receiverPublicKey)

	transcript := newTranscript("tos-ciphertext-validity")
	appendElement(transcript, "commitment", commitment)
	appendElement(transcript, "sender-handle", senderHandle)
	appendElement(transcript, "receiver-handle", receiverHandle)
	appendElement(transcript, "sender-pubkey", senderPublicKey)
	appendElement(transcript, "receiver-pubkey", receiverPublicKey)
	appendElement(transcript, "r1", r1)
	appendElement(transcript, "r2", r2)
	appendElement(transcript, "r3", r3)
	c := challenge(transcript)

	za := ristretto255.NewScalar().Add(rhoA, ristretto255.NewScalar().Multiply(c, amount))
	zr := ristretto255.NewScalar().Add(rhoR, ristretto255.NewScalar().Multiply(c, r))

	return &CiphertextValidityProof{R1: r1, R2: r2, R3: r3, Za: za, Zr: zr}
}

// Encode serializes the proof as R1 || R2 || R3 || Za || Zr, 160 bytes.
func (p *CiphertextValidityProof) Encode() []byte {
	out := make([]byte, 0, 160)
	out = p.R1.Encode(out)
	out = p.R2.Encode(out)
	out = p.R3.Encode(out)
	out = p.Za.Encode(out)
	out = p.Zr.Encode(out)
	return out
}

// DecodeCiphertextValidityProof parses a proof previously produced by
// Encode.
func DecodeCiphertextValidityProof(data []byte) (*CiphertextValidityProof, error) {
	if len(data) != 160 {
		return nil, errors.Errorf("proofs: ciphertext validity proof must be 160 bytes, got %d", len(data))
	}
	p := &CiphertextValidityProof{}
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
	if p.R3, err = decodeElement(chunk); err != nil {
		return nil, err
	}
	if chunk, offset, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Za, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	if chunk, _, err = take32(data, offset); err != nil {
		return nil, err
	}
	if p.Zr, err = decodeScalar(chunk); err != nil {
		return nil, err
	}
	return p, nil
}

// equations checks the proof against the public
// commitment, handles, and participant keys, returning the three
// verification equations' (lhs, rhs) pairs for batching instead of
// deciding immediately — callers that want a single-shot verdict should
// use Verify.
func (p *CiphertextValidityProof) equations(commitment, senderHandle, receiverHandle, senderPublicKey, receiverPublicKey *ristretto255.Element) [][2]*ristretto255.Element {
	transcript := newTranscript("tos-ciphertext-validity")
	appendElement(transcript, "commitment", commitment)
	appendElement(transcript, "sender-handle", senderHandle)
	appendElement(transcript, "receiver-handle", receiverHandle)
	appendElement(transcript, "sender-pubkey", senderPublicKey)
	appendElement(transcript, "receiver-pubkey", receiverPublicKey)
	appendElement(transcript, "r1", p.R1)
	appendElement(transcript, "r2", p.R2)
	appendElement(transcript, "r3", p.R3)
	c := challenge(transcript)

	lhs1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(p.Za, basepointG),
		ristretto255.NewElement().ScalarMult(p.Zr, basepointH),
	)
	rhs1 := ristretto255.NewElement().Add(p.R1, ristretto255.NewElement().ScalarMult(c, commitment))

	lhs2 := ristretto255.NewElement().ScalarMult(p.Zr, senderPublicKey)
	rhs2 := ristretto255.NewElement().Add(p.R2, ristretto255.NewElement().ScalarMult(c, senderHandle))

	lhs3 := ristretto255.NewElement().ScalarMult(p.Zr, receiverPublicKey)
	rhs3 := ristretto255.NewElement().Add(p.R3, ristretto255.NewElement().ScalarMult(c, receiverHandle))

	return [][2]*ristretto255.Element{{lhs1, rhs1}, {lhs2, rhs2}, {lhs3, rhs3}}
}

// Verify checks the proof immediately (no batching).
func (p *CiphertextValidityProof) Verify(commitment, senderHandle, receiverHandle, senderPublicKey, receiverPublicKey *ristretto255.Element) error {
	for _, eq := range p.equations(commitment, senderHandle, receiverHandle, senderPublicKey, receiverPublicKey) {
		if eq[0].Equal(eq[1]) != 1 {
			return errors.New("proofs: ciphertext validity proof failed to verify")
		}
	}
	return nil
}

// AddToBatch queues this proof's verification equations onto bv instead
// of discharging them immediately.
func (p *CiphertextValidityProof) AddToBatch(bv *BatchVerifier, commitment, senderHandle, receiverHandle, senderPublicKey, receiverPublicKey *ristretto255.Element) {
	for _, eq := range p.equations(commitment, senderHandle, receiverHandle, senderPublicKey, receiverPublicKey) {
		bv.AddEquation(eq[0], eq[1])
	}
}
