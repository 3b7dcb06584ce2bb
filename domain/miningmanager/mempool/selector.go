package mempool

import (
	"bytes"
	"container/heap"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

// feeRate is a transaction's fee per serialized byte - the priority
// metric spec.md §4.8's "packed greedily by fee rate" packs transaction
// templates by.
func feeRate(transaction *externalapi.DomainTransaction) float64 {
	var buf bytes.Buffer
	if err := hashserialization.SerializeTransaction(&buf, transaction); err != nil || buf.Len() == 0 {
		return 0
	}
	return float64(transaction.Fee) / float64(buf.Len())
}

// txPriorityQueue orders pending transactions by descending fee rate.
// Grounded on the teacher's mining.txPriorityQueue (container/heap with
// an injected less-func) generalized to a single fixed fee-rate
// ordering, since this model has no separate "free transaction"/orphan
// priority tier to choose between.
type txPriorityQueue struct {
	items []*externalapi.DomainTransaction
}

func (pq *txPriorityQueue) Len() int { return len(pq.items) }

func (pq *txPriorityQueue) Less(i, j int) bool {
	return feeRate(pq.items[i]) > feeRate(pq.items[j])
}

func (pq *txPriorityQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *txPriorityQueue) Push(x interface{}) {
	pq.items = append(pq.items, x.(*externalapi.DomainTransaction))
}

func (pq *txPriorityQueue) Pop() interface{} {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items[n-1] = nil
	pq.items = pq.items[:n-1]
	return item
}

// transactionSelector is a one-shot model.TransactionSelector snapshot
// over the pool's contents at the moment it was built: nonce ordering
// per sender is enforced by only ever queuing a sender's lowest
// not-yet-selected nonce, and Reject blocks the rest of that sender's
// queued transactions for the remainder of this selector's lifetime
// (spec.md §4.8; a later nonce can never apply before an earlier one a
// template has already passed over). Rejecting never mutates the
// mempool itself - the same transactions are eligible again the next
// time the pool builds a selector.
type transactionSelector struct {
	queue    *txPriorityQueue
	pending  map[[32]byte][]*externalapi.DomainTransaction // per sender, nonce-ascending, not yet queued
	blocked  map[[32]byte]bool
}

// NewTransactionSelector snapshots the pool's current contents into a
// fee-rate-ordered model.TransactionSelector.
func (mp *mempool) NewTransactionSelector() model.TransactionSelector {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	bySender := make(map[[32]byte][]*externalapi.DomainTransaction)
	for _, id := range mp.arrivalOrder {
		transaction := mp.byID[*id]
		bySender[transaction.SourcePublicKey] = append(bySender[transaction.SourcePublicKey], transaction)
	}
	for sender := range bySender {
		txs := bySender[sender]
		sortByNonce(txs)
		bySender[sender] = txs
	}

	queue := &txPriorityQueue{items: make([]*externalapi.DomainTransaction, 0, len(mp.byID))}
	pending := make(map[[32]byte][]*externalapi.DomainTransaction, len(bySender))
	for sender, txs := range bySender {
		if len(txs) == 0 {
			continue
		}
		queue.items = append(queue.items, txs[0])
		if len(txs) > 1 {
			pending[sender] = txs[1:]
		}
	}
	heap.Init(queue)

	return &transactionSelector{
		queue:   queue,
		pending: pending,
		blocked: make(map[[32]byte]bool),
	}
}

func sortByNonce(txs []*externalapi.DomainTransaction) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && txs[j-1].Nonce > txs[j].Nonce; j-- {
			txs[j-1], txs[j] = txs[j], txs[j-1]
		}
	}
}

// SelectNext pops the highest fee-rate transaction not blocked by an
// earlier rejection from the same sender, queuing that sender's next
// pending nonce (if any) behind it.
func (s *transactionSelector) SelectNext() *externalapi.DomainTransaction {
	for s.queue.Len() > 0 {
		transaction := heap.Pop(s.queue).(*externalapi.DomainTransaction)
		if s.blocked[transaction.SourcePublicKey] {
			continue
		}
		if next := s.pending[transaction.SourcePublicKey]; len(next) > 0 {
			heap.Push(s.queue, next[0])
			s.pending[transaction.SourcePublicKey] = next[1:]
		}
		return transaction
	}
	return nil
}

// Reject marks tx's sender blocked for the remainder of this
// selector's lifetime: tx's own nonce must apply before any later one
// from the same sender, so none of that sender's queued transactions
// can be included in this template either.
func (s *transactionSelector) Reject(tx *externalapi.DomainTransaction) {
	s.blocked[tx.SourcePublicKey] = true
}
