// Package merkle computes the two transaction merkle roots a block
// header commits to (spec.md §3 "Block header"): one over transactions'
// full, signature-included hashes, one over their signature-excluded
// IDs. Grounded on the teacher's `utils/merkle` algorithm (binary tree,
// duplicate a dangling last node rather than leaving it unpaired), but
// restructured here as a level-by-level reduction instead of a flat
// power-of-two-sized array, since the account/payload transaction model
// has no UTXO-commitment analogue to carry over verbatim.
package merkle

import (
	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

// CalculateHashMerkleRoot roots DomainBlockHeader.TransactionMerkleRoot:
// the merkle root over each transaction's full (signature-included) hash.
func CalculateHashMerkleRoot(transactions []*externalapi.DomainTransaction) *externalapi.DomainHash {
	leaves := make([]*externalapi.DomainHash, len(transactions))
	for i, tx := range transactions {
		leaves[i] = hashserialization.TransactionHash(tx)
	}
	return treeRoot(leaves)
}

// CalculateIDMerkleRoot roots DomainBlockHeader.AcceptedIDMerkleRoot: the
// merkle root over each transaction's signature-excluded ID.
func CalculateIDMerkleRoot(transactions []*externalapi.DomainTransaction) *externalapi.DomainHash {
	leaves := make([]*externalapi.DomainHash, len(transactions))
	for i, tx := range transactions {
		leaves[i] = hashserialization.TransactionID(tx)
	}
	return treeRoot(leaves)
}

// treeRoot reduces a level of leaf hashes up to its root one level at a
// time. A nil/empty input (an empty block) yields the zero hash rather
// than panicking on an empty tree.
func treeRoot(level []*externalapi.DomainHash) *externalapi.DomainHash {
	if len(level) == 0 {
		zero := externalapi.DomainHash{}
		return &zero
	}
	for len(level) > 1 {
		level = collapseLevel(level)
	}
	return level[0]
}

// collapseLevel pairs adjacent nodes into their parent, one level up. A
// dangling last node (an odd-length level) is paired with itself rather
// than left unmatched, so the tree stays strictly binary at every level.
func collapseLevel(level []*externalapi.DomainHash) []*externalapi.DomainHash {
	parents := make([]*externalapi.DomainHash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		parents = append(parents, combineNodes(left, right))
	}
	return parents
}

// combineNodes returns the hash of two sibling nodes' concatenation.
func combineNodes(left, right *externalapi.DomainHash) *externalapi.DomainHash {
	w := hashserialization.NewHashWriter()
	if _, err := w.Write(left[:]); err != nil {
		panic(errors.Wrap(err, "hash writer should never fail"))
	}
	if _, err := w.Write(right[:]); err != nil {
		panic(errors.Wrap(err, "hash writer should never fail"))
	}
	hash := w.Finalize()
	return &hash
}
