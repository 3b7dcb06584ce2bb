package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// AccountStore is the versioned (key, topoheight) -> value store for
// account metadata (nonce, registration, multisig descriptor),
// spec.md §3 "Versioned world state".
type AccountStore interface {
	Stage(stagingArea *StagingArea, publicKey [32]byte, topoheight uint64, account *externalapi.Account)
	IsStaged(stagingArea *StagingArea) bool
	Account(dbContext DBReader, stagingArea *StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.Account, bool, error)
	DeleteFrom(stagingArea *StagingArea, topoheightExclusive uint64) error
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}

// BalanceStore is the versioned store for per-(account, asset) balances,
// each either a plain amount or an ElGamal ciphertext (spec.md §3, §5
// privacy transfers).
type BalanceStore interface {
	Stage(stagingArea *StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, topoheight uint64, balance *externalapi.Balance)
	IsStaged(stagingArea *StagingArea) bool
	Balance(dbContext DBReader, stagingArea *StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, atTopoheight uint64) (*externalapi.Balance, bool, error)
	DeleteFrom(stagingArea *StagingArea, topoheightExclusive uint64) error
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}

// FrozenBalanceStore is the versioned store for energy-staking frozen
// balances and their unfreeze queues (spec.md §3, energy/staking model).
type FrozenBalanceStore interface {
	Stage(stagingArea *StagingArea, publicKey [32]byte, topoheight uint64, frozen *externalapi.FrozenBalance)
	IsStaged(stagingArea *StagingArea) bool
	FrozenBalance(dbContext DBReader, stagingArea *StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.FrozenBalance, bool, error)
	DeleteFrom(stagingArea *StagingArea, topoheightExclusive uint64) error
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}

// DelegationStore is the versioned store for energy delegations between
// accounts.
type DelegationStore interface {
	Stage(stagingArea *StagingArea, publicKey [32]byte, topoheight uint64, delegations *externalapi.Delegations)
	IsStaged(stagingArea *StagingArea) bool
	Delegations(dbContext DBReader, stagingArea *StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.Delegations, bool, error)
	DeleteFrom(stagingArea *StagingArea, topoheightExclusive uint64) error
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}

// ContractStore is the versioned store for deployed contract bytecode
// and key/value storage slots.
type ContractStore interface {
	Stage(stagingArea *StagingArea, contractAddress [32]byte, topoheight uint64, contract *externalapi.Contract)
	IsStaged(stagingArea *StagingArea) bool
	Contract(dbContext DBReader, stagingArea *StagingArea, contractAddress [32]byte, atTopoheight uint64) (*externalapi.Contract, bool, error)
	DeleteFrom(stagingArea *StagingArea, topoheightExclusive uint64) error
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
