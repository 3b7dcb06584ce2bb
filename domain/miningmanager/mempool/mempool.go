// Package mempool holds not-yet-accepted transactions (spec.md §4.6):
// nonce-ordered per account, bounded in total size, re-admitted after a
// reorg evicts the block that had included them.
package mempool

import (
	"sync"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.MEMP)

type mempool struct {
	mu sync.RWMutex

	databaseContext      model.DBReader
	transactionValidator model.TransactionValidator
	consensusStateStore  model.ConsensusStateStore
	ghostdagDataStore    model.GHOSTDAGDataStore
	topoheightStore      model.TopoheightStore

	maxSize int

	byID          map[externalapi.DomainHash]*externalapi.DomainTransaction
	arrivalOrder  []*externalapi.DomainHash
	byAccountNonce map[[32]byte]map[uint64]externalapi.DomainHash
}

// New instantiates a new Mempool.
func New(
	databaseContext model.DBReader,
	transactionValidator model.TransactionValidator,
	consensusStateStore model.ConsensusStateStore,
	ghostdagDataStore model.GHOSTDAGDataStore,
	topoheightStore model.TopoheightStore,
	maxSize int,
) model.Mempool {
	return &mempool{
		databaseContext:      databaseContext,
		transactionValidator: transactionValidator,
		consensusStateStore:  consensusStateStore,
		ghostdagDataStore:    ghostdagDataStore,
		topoheightStore:      topoheightStore,
		maxSize:              maxSize,
		byID:                 make(map[externalapi.DomainHash]*externalapi.DomainTransaction),
		byAccountNonce:       make(map[[32]byte]map[uint64]externalapi.DomainHash),
	}
}

// headTopoheight returns the topoheight of the heaviest current tip, the
// reference point transactions are validated against before a block
// actually includes them. Mirrors pruningManager.heaviestTipWithTopoheight.
func (mp *mempool) headTopoheight() (uint64, error) {
	stagingArea := model.NewStagingArea()
	tips, err := mp.consensusStateStore.Tips(mp.databaseContext, stagingArea)
	if err != nil {
		return 0, err
	}
	var best *externalapi.DomainHash
	var bestBlueScore uint64
	for _, tip := range tips {
		data, err := mp.ghostdagDataStore.Get(mp.databaseContext, stagingArea, tip)
		if err != nil {
			return 0, err
		}
		if best == nil || data.BlueScore > bestBlueScore {
			best = tip
			bestBlueScore = data.BlueScore
		}
	}
	if best == nil {
		return 0, nil
	}
	topoheight, _, err := mp.topoheightStore.Topoheight(mp.databaseContext, stagingArea, best)
	if err != nil {
		return 0, err
	}
	return topoheight, nil
}

// ValidateAndInsertTransaction admits transaction if it validates
// against the current chain head and the pool has room.
func (mp *mempool) ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction) error {
	if err := mp.transactionValidator.ValidateTransactionInIsolation(transaction); err != nil {
		return err
	}

	headTopoheight, err := mp.headTopoheight()
	if err != nil {
		return err
	}

	stagingArea := model.NewStagingArea()
	if err := mp.transactionValidator.ValidateTransactionInContext(stagingArea, transaction, headTopoheight); err != nil {
		return err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.byID) >= mp.maxSize {
		log.Warnf("Mempool full at %d transactions, rejecting new submission", mp.maxSize)
		return &ruleerror.PolicyViolation{Reason: "mempool full"}
	}

	mp.insertLocked(transaction)
	log.Tracef("Accepted transaction %s into the mempool (%d total)", hash(transaction), len(mp.byID))
	return nil
}

// insertLocked must be called with mu held for writes. A resubmission
// of the same (source, nonce) pair replaces the earlier entry — this is
// how a fee bump or RevalidateAfterReorg's re-admission overwrites a
// transaction the pool already holds under that nonce.
func (mp *mempool) insertLocked(transaction *externalapi.DomainTransaction) {
	txID := hash(transaction)

	if existing, ok := mp.byAccountNonce[transaction.SourcePublicKey][transaction.Nonce]; ok {
		mp.removeLocked(&existing)
	}

	mp.byID[*txID] = transaction
	mp.arrivalOrder = append(mp.arrivalOrder, txID)
	if mp.byAccountNonce[transaction.SourcePublicKey] == nil {
		mp.byAccountNonce[transaction.SourcePublicKey] = make(map[uint64]externalapi.DomainHash)
	}
	mp.byAccountNonce[transaction.SourcePublicKey][transaction.Nonce] = *txID
}

// removeLocked must be called with mu held for writes.
func (mp *mempool) removeLocked(transactionID *externalapi.DomainHash) {
	transaction, ok := mp.byID[*transactionID]
	if !ok {
		return
	}
	delete(mp.byID, *transactionID)
	delete(mp.byAccountNonce[transaction.SourcePublicKey], transaction.Nonce)
	if len(mp.byAccountNonce[transaction.SourcePublicKey]) == 0 {
		delete(mp.byAccountNonce, transaction.SourcePublicKey)
	}
	for i, id := range mp.arrivalOrder {
		if id.Equal(transactionID) {
			mp.arrivalOrder = append(mp.arrivalOrder[:i], mp.arrivalOrder[i+1:]...)
			break
		}
	}
}

// RemoveTransaction evicts transactionID if present; absence is not an
// error since HandleNewBlockTransactions and reorg handling race with
// each other by design.
func (mp *mempool) RemoveTransaction(transactionID *externalapi.DomainHash) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeLocked(transactionID)
	return nil
}

// GetTransaction looks up a pooled transaction by ID.
func (mp *mempool) GetTransaction(transactionID *externalapi.DomainHash) (*externalapi.DomainTransaction, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	transaction, ok := mp.byID[*transactionID]
	return transaction, ok
}

// AllTransactions returns every pooled transaction in arrival order.
func (mp *mempool) AllTransactions() []*externalapi.DomainTransaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	result := make([]*externalapi.DomainTransaction, len(mp.arrivalOrder))
	for i, id := range mp.arrivalOrder {
		result[i] = mp.byID[*id]
	}
	return result
}

// HandleNewBlockTransactions evicts every transaction the new block
// carried (now redundant) and, for each source account the block
// touched, any pooled transaction whose nonce the block's application
// has already consumed (nonce <= the account's post-block nonce would
// reject it as a NonceMismatch if left in the pool).
func (mp *mempool) HandleNewBlockTransactions(block *externalapi.DomainBlock) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	touchedAccounts := make(map[[32]byte]uint64)
	for _, transaction := range block.Transactions {
		txID := hash(transaction)
		mp.removeLocked(txID)
		if transaction.Nonce+1 > touchedAccounts[transaction.SourcePublicKey] {
			touchedAccounts[transaction.SourcePublicKey] = transaction.Nonce + 1
		}
	}

	for source, nextNonce := range touchedAccounts {
		for nonce, id := range mp.byAccountNonce[source] {
			if nonce < nextNonce {
				idCopy := id
				mp.removeLocked(&idCopy)
			}
		}
	}
	return nil
}

// RevalidateAfterReorg re-admits every transaction carried by a rolled
// back block, oldest block first, dropping any that no longer validate
// against the new chain head.
func (mp *mempool) RevalidateAfterReorg(removedBlocks []*externalapi.DomainBlock) error {
	for _, block := range removedBlocks {
		for _, transaction := range block.Transactions {
			// A failed re-admission simply drops the transaction; the
			// caller already lost the block, so there is nothing more
			// to roll back here.
			_ = mp.ValidateAndInsertTransaction(transaction)
		}
	}
	return nil
}

func hash(transaction *externalapi.DomainTransaction) *externalapi.DomainHash {
	return hashserialization.TransactionID(transaction)
}
