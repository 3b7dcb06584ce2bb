package merkle

import (
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

func transferTx(nonce uint64, amount uint64) *externalapi.DomainTransaction {
	return &externalapi.DomainTransaction{
		Version: 1,
		Nonce:   nonce,
		Fee:     1,
		Payload: &externalapi.TransferPayload{
			Transfers: []externalapi.TransferEntry{
				{Asset: &externalapi.DomainHash{}, Destination: [32]byte{byte(amount)}, Amount: amount},
			},
		},
	}
}

func TestCalculateHashMerkleRootEmpty(t *testing.T) {
	root := CalculateHashMerkleRoot(nil)
	zero := externalapi.DomainHash{}
	if !root.Equal(&zero) {
		t.Errorf("CalculateHashMerkleRoot(nil) = %s, want the zero hash", root)
	}
}

func TestCalculateIDMerkleRootEmpty(t *testing.T) {
	root := CalculateIDMerkleRoot(nil)
	zero := externalapi.DomainHash{}
	if !root.Equal(&zero) {
		t.Errorf("CalculateIDMerkleRoot(nil) = %s, want the zero hash", root)
	}
}

func TestCalculateHashMerkleRootSingleTransaction(t *testing.T) {
	transactions := []*externalapi.DomainTransaction{transferTx(0, 10)}
	root := CalculateHashMerkleRoot(transactions)
	zero := externalapi.DomainHash{}
	if root.Equal(&zero) {
		t.Errorf("CalculateHashMerkleRoot of a single transaction should not be the zero hash")
	}
}

// The hash-merkle root commits to the full transaction, signature included,
// while the ID-merkle root commits only to the unsigned transaction ID.
// Signing a transaction therefore changes one root but not the other.
func TestHashMerkleRootDiffersFromIDMerkleRootAfterSigning(t *testing.T) {
	transactions := []*externalapi.DomainTransaction{transferTx(0, 10)}

	hashRootBefore := CalculateHashMerkleRoot(transactions)
	idRootBefore := CalculateIDMerkleRoot(transactions)

	transactions[0].Signature = [64]byte{1, 2, 3}

	hashRootAfter := CalculateHashMerkleRoot(transactions)
	idRootAfter := CalculateIDMerkleRoot(transactions)

	if hashRootBefore.Equal(hashRootAfter) {
		t.Errorf("CalculateHashMerkleRoot should change when a transaction's signature changes")
	}
	if !idRootBefore.Equal(idRootAfter) {
		t.Errorf("CalculateIDMerkleRoot should be unaffected by a transaction's signature")
	}
}

func TestCalculateHashMerkleRootOddCount(t *testing.T) {
	transactions := []*externalapi.DomainTransaction{
		transferTx(0, 10),
		transferTx(1, 20),
		transferTx(2, 30),
	}
	root := CalculateHashMerkleRoot(transactions)
	zero := externalapi.DomainHash{}
	if root.Equal(&zero) {
		t.Errorf("CalculateHashMerkleRoot of three transactions should not be the zero hash")
	}

	// Duplicating the last transaction (making the count even via the
	// standard odd-count padding rule) must reproduce the same root.
	padded := append(transactions, transferTx(2, 30))
	paddedRoot := CalculateHashMerkleRoot(padded)
	if !root.Equal(paddedRoot) {
		t.Errorf("CalculateHashMerkleRoot(odd count) = %s, want it to equal the duplicate-last-leaf padded root %s", root, paddedRoot)
	}
}

func TestCalculateHashMerkleRootOrderSensitive(t *testing.T) {
	a := []*externalapi.DomainTransaction{transferTx(0, 10), transferTx(1, 20)}
	b := []*externalapi.DomainTransaction{transferTx(1, 20), transferTx(0, 10)}

	rootA := CalculateHashMerkleRoot(a)
	rootB := CalculateHashMerkleRoot(b)
	if rootA.Equal(rootB) {
		t.Errorf("CalculateHashMerkleRoot should depend on transaction order")
	}
}
