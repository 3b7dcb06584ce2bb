// Package compactblock derives the short transaction identifiers a
// compact-block announcement carries in place of full transaction
// bodies (spec.md §6.3/SPEC_FULL.md §6.3): a per-block SipHash key pair
// keyed by the block hash and an announcer-chosen nonce, and 6-byte
// short IDs derived from it. The always-prefilled entry (index 0, the
// block-producer's own reward-bearing transaction, this model's closest
// analogue to a coinbase) is sent in full since a receiving peer can
// never already hold it in its mempool.
package compactblock

import (
	"encoding/binary"

	"github.com/dchest/siphash"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

// ShortIDSize is the length, in bytes, of a compact-block short ID.
const ShortIDSize = 6

// PrefilledIndex is the transaction index always sent in full rather
// than as a short ID - this model's block-producer transaction, which
// a peer can never already have in its mempool.
const PrefilledIndex = 0

// DeriveKeys computes the per-announcement SipHash key pair from a
// block's hash and the announcer's chosen nonce, so two different
// nonces for the same block never produce colliding short-ID spaces.
func DeriveKeys(blockHash *externalapi.DomainHash, nonce uint64) (k0, k1 uint64) {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)

	w := hashserialization.NewHashWriter()
	_, _ = w.Write(blockHash[:])
	_, _ = w.Write(nonceBytes[:])
	keyMaterial := w.Finalize()

	k0 = binary.LittleEndian.Uint64(keyMaterial[0:8])
	k1 = binary.LittleEndian.Uint64(keyMaterial[8:16])
	return k0, k1
}

// ShortID derives a transaction's short ID from its signature-excluded
// ID, under the per-announcement key pair. github.com/dchest/siphash
// implements SipHash-2-4 (it does not expose a reduced-round variant);
// this is the closest available SipHash primitive in the pack to
// spec.md's named SipHash-1-3, documented as a deliberate substitution
// in DESIGN.md rather than a silent deviation.
func ShortID(k0, k1 uint64, txID *externalapi.DomainHash) [ShortIDSize]byte {
	full := siphash.Hash(k0, k1, txID[:])
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], full)
	var short [ShortIDSize]byte
	copy(short[:], buf[:ShortIDSize])
	return short
}

// Block is a compact announcement of a block's transaction set: short
// IDs for every transaction except PrefilledIndex, which is carried in
// full.
type Block struct {
	BlockHash      *externalapi.DomainHash
	Nonce          uint64
	ShortIDs       [][ShortIDSize]byte
	PrefilledIndex int
	PrefilledTX    *externalapi.DomainTransaction
}

// Build derives a compact announcement for block under nonce.
func Build(blockHash *externalapi.DomainHash, transactions []*externalapi.DomainTransaction, nonce uint64) *Block {
	k0, k1 := DeriveKeys(blockHash, nonce)

	shortIDs := make([][ShortIDSize]byte, 0, len(transactions))
	var prefilled *externalapi.DomainTransaction
	for i, transaction := range transactions {
		if i == PrefilledIndex {
			prefilled = transaction
			continue
		}
		txID := hashserialization.TransactionID(transaction)
		shortIDs = append(shortIDs, ShortID(k0, k1, txID))
	}
	return &Block{
		BlockHash:      blockHash,
		Nonce:          nonce,
		ShortIDs:       shortIDs,
		PrefilledIndex: PrefilledIndex,
		PrefilledTX:    prefilled,
	}
}

// Reconstruct attempts to rebuild the full ordered transaction list from
// a compact Block using known (already-validated-elsewhere) mempool
// transactions, indexed by their signature-excluded ID. It returns the
// indices (relative to the reconstructed list, skipping PrefilledIndex)
// whose short IDs matched no known transaction; the caller must fetch
// those by index (getblocktxn-equivalent) before the block is usable.
func Reconstruct(block *Block, knownByID map[externalapi.DomainHash]*externalapi.DomainTransaction) (transactions []*externalapi.DomainTransaction, missing []int) {
	k0, k1 := DeriveKeys(block.BlockHash, block.Nonce)

	byShortID := make(map[[ShortIDSize]byte]*externalapi.DomainTransaction, len(knownByID))
	for id, transaction := range knownByID {
		id := id
		byShortID[ShortID(k0, k1, &id)] = transaction
	}

	total := len(block.ShortIDs) + 1
	transactions = make([]*externalapi.DomainTransaction, total)
	transactions[block.PrefilledIndex] = block.PrefilledTX

	shortIDIndex := 0
	for i := 0; i < total; i++ {
		if i == block.PrefilledIndex {
			continue
		}
		shortID := block.ShortIDs[shortIDIndex]
		shortIDIndex++
		if transaction, ok := byShortID[shortID]; ok {
			transactions[i] = transaction
		} else {
			missing = append(missing, i)
		}
	}
	return transactions, missing
}
