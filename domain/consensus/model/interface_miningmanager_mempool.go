package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// Mempool is the nonce-indexed admission queue for not-yet-accepted
// transactions (spec.md mempool section): bounded by MAX_MEMPOOL,
// re-admitted in FIFO arrival order after a reorg evicts them.
type Mempool interface {
	ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction) error
	RemoveTransaction(transactionID *externalapi.DomainHash) error
	GetTransaction(transactionID *externalapi.DomainHash) (*externalapi.DomainTransaction, bool)
	AllTransactions() []*externalapi.DomainTransaction

	// NewTransactionSelector snapshots the pool's current contents into a
	// fee-rate-ordered TransactionSelector for BlockBuilder.BuildBlock to
	// pack from (spec.md §4.8 "packed greedily by fee rate").
	NewTransactionSelector() TransactionSelector

	// HandleNewBlockTransactions evicts transactions the new block made
	// redundant (matching nonce already applied) or invalid.
	HandleNewBlockTransactions(block *externalapi.DomainBlock) error

	// RevalidateAfterReorg re-admits transactions evicted by a rolled
	// back block, in their original arrival order, dropping any that no
	// longer validate against the new chain state.
	RevalidateAfterReorg(removedBlocks []*externalapi.DomainBlock) error
}
