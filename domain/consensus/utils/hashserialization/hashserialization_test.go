package hashserialization

import (
	"bytes"
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

func sampleHeader() *externalapi.DomainBlockHeader {
	return &externalapi.DomainBlockHeader{
		Version:               1,
		Parents:                []*externalapi.DomainHash{{1, 2, 3}, {4, 5, 6}},
		MinerPublicKey:        [32]byte{9},
		TimestampMs:           1700000000000,
		ExtraNonce:            42,
		VRFOutput:             []byte{0xaa, 0xbb, 0xcc},
		TransactionMerkleRoot: &externalapi.DomainHash{7},
		AcceptedIDMerkleRoot:  &externalapi.DomainHash{8},
		StateCommitment:       &externalapi.DomainHash{9},
		Bits:                  0x1d00ffff,
		PruningPoint:          &externalapi.DomainHash{10},
	}
}

func TestHeaderSerializeDeserializeRoundTrip(t *testing.T) {
	header := sampleHeader()

	var buf bytes.Buffer
	if err := SerializeHeader(&buf, header); err != nil {
		t.Fatalf("SerializeHeader failed: %v", err)
	}

	got, err := DeserializeHeader(&buf)
	if err != nil {
		t.Fatalf("DeserializeHeader failed: %v", err)
	}

	if got.Version != header.Version {
		t.Errorf("Version = %d, want %d", got.Version, header.Version)
	}
	if len(got.Parents) != len(header.Parents) {
		t.Fatalf("Parents length = %d, want %d", len(got.Parents), len(header.Parents))
	}
	for i := range header.Parents {
		if !got.Parents[i].Equal(header.Parents[i]) {
			t.Errorf("Parents[%d] = %s, want %s", i, got.Parents[i], header.Parents[i])
		}
	}
	if got.MinerPublicKey != header.MinerPublicKey {
		t.Errorf("MinerPublicKey mismatch")
	}
	if got.TimestampMs != header.TimestampMs {
		t.Errorf("TimestampMs = %d, want %d", got.TimestampMs, header.TimestampMs)
	}
	if got.ExtraNonce != header.ExtraNonce {
		t.Errorf("ExtraNonce = %d, want %d", got.ExtraNonce, header.ExtraNonce)
	}
	if !bytes.Equal(got.VRFOutput, header.VRFOutput) {
		t.Errorf("VRFOutput = %x, want %x", got.VRFOutput, header.VRFOutput)
	}
	if !got.TransactionMerkleRoot.Equal(header.TransactionMerkleRoot) {
		t.Errorf("TransactionMerkleRoot mismatch")
	}
	if got.Bits != header.Bits {
		t.Errorf("Bits = %08x, want %08x", got.Bits, header.Bits)
	}
	if !got.PruningPoint.Equal(header.PruningPoint) {
		t.Errorf("PruningPoint mismatch")
	}
}

func TestHeaderHashIsDeterministic(t *testing.T) {
	header := sampleHeader()
	hash1 := HeaderHash(header)
	hash2 := HeaderHash(header)
	if !hash1.Equal(hash2) {
		t.Errorf("HeaderHash is not deterministic: %s != %s", hash1, hash2)
	}
}

func TestHeaderHashChangesWithExtraNonce(t *testing.T) {
	header := sampleHeader()
	before := HeaderHash(header)

	header.ExtraNonce++
	after := HeaderHash(header)

	if before.Equal(after) {
		t.Errorf("HeaderHash should change when ExtraNonce changes")
	}
}

func TestHeaderHashChangesWithParents(t *testing.T) {
	a := sampleHeader()
	b := sampleHeader()
	b.Parents = []*externalapi.DomainHash{{4, 5, 6}, {1, 2, 3}} // reordered

	if HeaderHash(a).Equal(HeaderHash(b)) {
		t.Errorf("HeaderHash should depend on parent order")
	}
}

func TestTransactionIDIsCachedAfterFirstCall(t *testing.T) {
	tx := &externalapi.DomainTransaction{
		Version: 1,
		Nonce:   3,
		Payload: &externalapi.TransferPayload{},
	}
	id1 := TransactionID(tx)
	if tx.CachedID() == nil {
		t.Fatalf("TransactionID should populate the transaction's ID cache")
	}

	// Mutating the transaction after the ID was cached must not change
	// the value TransactionID returns, since the cache is authoritative.
	tx.Nonce = 99
	id2 := TransactionID(tx)
	if !id1.Equal(id2) {
		t.Errorf("TransactionID should return the cached value once set")
	}
}

func TestTransactionHashIncludesSignatureUnlikeTransactionID(t *testing.T) {
	tx := &externalapi.DomainTransaction{
		Version: 1,
		Nonce:   3,
		Payload: &externalapi.TransferPayload{},
	}
	idBefore := TransactionID(tx)
	hashBefore := TransactionHash(tx)

	tx.Signature = [64]byte{1}
	hashAfter := TransactionHash(tx)
	idAfter := TransactionID(tx)

	if hashBefore.Equal(hashAfter) {
		t.Errorf("TransactionHash should change when the signature changes")
	}
	if !idBefore.Equal(idAfter) {
		t.Errorf("TransactionID should be unaffected by the signature")
	}
}
