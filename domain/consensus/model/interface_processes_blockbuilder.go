package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// BlockBuilder assembles a block template over the current tip set
// (spec.md §4.8): tip selection, greedy fee-rate transaction packing
// subject to compute budgets, and header construction.
type BlockBuilder interface {
	BuildBlock(minerPublicKey [32]byte, extraData []byte, transactionSelector TransactionSelector) (*externalapi.DomainBlock, error)
}

// TransactionSelector yields transactions in priority order for block
// template packing; returning nil signals exhaustion.
type TransactionSelector interface {
	SelectNext() *externalapi.DomainTransaction
	Reject(tx *externalapi.DomainTransaction)
}
