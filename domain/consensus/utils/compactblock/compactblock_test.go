package compactblock

import (
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

func transferTx(sender [32]byte, nonce uint64) *externalapi.DomainTransaction {
	var dest [32]byte
	dest[0] = sender[0] + 1
	return &externalapi.DomainTransaction{
		SourcePublicKey: sender,
		Nonce:           nonce,
		Payload: &externalapi.TransferPayload{
			Transfers: []externalapi.TransferEntry{{Destination: dest, Amount: 1}},
		},
	}
}

func TestDeriveKeysDependsOnBlockHashAndNonce(t *testing.T) {
	var hashA, hashB externalapi.DomainHash
	hashA[0] = 1
	hashB[0] = 2

	k0a, k1a := DeriveKeys(&hashA, 7)
	k0b, k1b := DeriveKeys(&hashB, 7)
	if k0a == k0b && k1a == k1b {
		t.Fatalf("expected different block hashes to derive different keys")
	}

	k0c, k1c := DeriveKeys(&hashA, 8)
	if k0a == k0c && k1a == k1c {
		t.Fatalf("expected different nonces to derive different keys")
	}
}

func TestShortIDIsDeterministic(t *testing.T) {
	var blockHash externalapi.DomainHash
	blockHash[0] = 9
	k0, k1 := DeriveKeys(&blockHash, 42)

	var txID externalapi.DomainHash
	txID[0] = 5

	first := ShortID(k0, k1, &txID)
	second := ShortID(k0, k1, &txID)
	if first != second {
		t.Fatalf("expected ShortID to be deterministic for the same inputs")
	}
}

func TestBuildAndReconstructRoundTrip(t *testing.T) {
	var sender1, sender2, sender3 [32]byte
	sender1[0], sender2[0], sender3[0] = 10, 20, 30

	transactions := []*externalapi.DomainTransaction{
		transferTx(sender1, 0),
		transferTx(sender2, 0),
		transferTx(sender3, 0),
	}

	var blockHash externalapi.DomainHash
	blockHash[0] = 77

	compact := Build(&blockHash, transactions, 123)
	if len(compact.ShortIDs) != len(transactions)-1 {
		t.Fatalf("expected one short ID per non-prefilled transaction, got %d", len(compact.ShortIDs))
	}

	known := make(map[externalapi.DomainHash]*externalapi.DomainTransaction)
	for _, transaction := range transactions[1:] {
		known[*hashserialization.TransactionID(transaction)] = transaction
	}

	reconstructed, missing := Reconstruct(compact, known)
	if len(missing) != 0 {
		t.Fatalf("expected no missing transactions, got %v", missing)
	}
	if len(reconstructed) != len(transactions) {
		t.Fatalf("expected %d reconstructed transactions, got %d", len(transactions), len(reconstructed))
	}
	for i, transaction := range transactions {
		if *hashserialization.TransactionID(reconstructed[i]) != *hashserialization.TransactionID(transaction) {
			t.Fatalf("transaction at index %d did not round-trip", i)
		}
	}
}

func TestReconstructReportsMissingTransactions(t *testing.T) {
	var sender1, sender2 [32]byte
	sender1[0], sender2[0] = 11, 22

	transactions := []*externalapi.DomainTransaction{
		transferTx(sender1, 0),
		transferTx(sender2, 0),
	}

	var blockHash externalapi.DomainHash
	blockHash[0] = 88

	compact := Build(&blockHash, transactions, 5)

	reconstructed, missing := Reconstruct(compact, map[externalapi.DomainHash]*externalapi.DomainTransaction{})
	if len(missing) != 1 || missing[0] != 1 {
		t.Fatalf("expected index 1 reported missing, got %v", missing)
	}
	if reconstructed[1] != nil {
		t.Fatalf("expected unmatched slot to stay nil")
	}
}
